package ingest

import (
	"fmt"
	"regexp"
	"strings"
)

var nonIdentifier = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SanitizeHeaders replaces every character outside [A-Za-z0-9_] with "_".
// Duplicate names get a numeric suffix.
func SanitizeHeaders(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		name := nonIdentifier.ReplaceAllString(strings.TrimSpace(h), "_")
		if name == "" {
			name = fmt.Sprintf("Col%d", i)
		}
		out[i] = name
	}
	return dedupe(out)
}

// SynthesizeHeaders returns Col0, Col1, ... for n columns.
func SynthesizeHeaders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("Col%d", i)
	}
	return out
}

// StripHeaders removes every character outside [A-Za-z0-9_], falling back
// to col_<i> for names that end up empty.
func StripHeaders(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		name := nonIdentifier.ReplaceAllString(h, "")
		if name == "" {
			name = fmt.Sprintf("col_%d", i)
		}
		out[i] = name
	}
	return dedupe(out)
}

func positionalHeaders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("col_%d", i)
	}
	return out
}

// dedupe appends _2, _3, ... to repeated names (compared case-insensitively,
// as MySQL compares column names).
func dedupe(names []string) []string {
	seen := make(map[string]int, len(names))
	for i, n := range names {
		key := strings.ToLower(n)
		seen[key]++
		if seen[key] == 1 {
			continue
		}
		for {
			candidate := fmt.Sprintf("%s_%d", n, seen[key])
			if _, taken := seen[strings.ToLower(candidate)]; !taken {
				names[i] = candidate
				seen[strings.ToLower(candidate)] = 1
				break
			}
			seen[key]++
		}
	}
	return names
}
