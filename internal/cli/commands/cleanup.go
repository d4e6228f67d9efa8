package commands

import (
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/spf13/cobra"
)

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand() *cobra.Command {
	var database string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Drop every cache table",
		Long: `Drop every table whose name starts with the cache prefix in the default
database (or --in). A table that fails to drop is reported and the others
are still dropped.`,
		Example: `  sqlgraph cleanup
  sqlgraph cleanup --in scratch --prefix tmp_`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db := database
			if db == "" {
				db = cc.Cfg.DefaultDatabase
			}

			gw, err := cc.OpenGateway(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = gw.Close() }()

			dropped, err := materialize.Cleanup(ctx, gw, cc.Logger, db, cc.Cfg.CachePrefix)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(dropped))
			for _, t := range dropped {
				rows = append(rows, []string{t})
			}
			if err := cc.Renderer.Table([]string{"dropped"}, rows); err != nil {
				return err
			}
			cc.Renderer.Notice("Dropped %d cache tables from %s", len(dropped), db)
			return nil
		},
	}

	cmd.Flags().StringVar(&database, "in", "", "Database to clean (default: the configured default database)")

	return cmd
}
