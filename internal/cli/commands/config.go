package commands

import (
	"github.com/spf13/cobra"
)

// NewConfigCommand creates the config command.
func NewConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print every configuration value after defaults, the config file,
SQLGRAPH_* environment variables and flags are merged. Passwords are
masked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			pairs := cc.Cfg.Redacted()
			rows := make([][]string, 0, len(pairs))
			for _, kv := range pairs {
				rows = append(rows, []string{kv[0], kv[1]})
			}
			return cc.Renderer.Table([]string{"key", "value"}, rows)
		},
	}
}
