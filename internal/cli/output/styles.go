package output

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	enabled bool

	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Header  lipgloss.Style
}

// NewStyles returns coloured styles, or pass-through styles when enabled
// is false.
func NewStyles(enabled bool) *Styles {
	if !enabled {
		plain := lipgloss.NewStyle()
		return &Styles{Success: plain, Error: plain, Warning: plain, Muted: plain, Header: plain}
	}
	return &Styles{
		enabled: true,
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Header:  lipgloss.NewStyle().Bold(true),
	}
}

// Enabled reports whether styles emit ANSI codes.
func (s *Styles) Enabled() bool { return s.enabled }

// Render applies style when styles are enabled.
func (s *Styles) Render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

// Status colours a run or node status.
func (s *Styles) Status(status string) string {
	switch status {
	case "success", "completed":
		return s.Render(s.Success, status)
	case "failed":
		return s.Render(s.Error, status)
	case "skipped", "running":
		return s.Render(s.Warning, status)
	}
	return status
}
