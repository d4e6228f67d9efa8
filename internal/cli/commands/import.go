package commands

import (
	"github.com/leapstack-labs/sqlgraph/internal/ingest"
	"github.com/spf13/cobra"
)

// ImportOptions holds options for the import command.
type ImportOptions struct {
	NoHeader bool
	Index    string
}

// NewImportCommand creates the import command.
func NewImportCommand() *cobra.Command {
	opts := &ImportOptions{}

	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Load delimited files into a new typed table",
		Long: `Infer column types from the first file and load every file into one
new cache table. Rows whose width differs from the column count are
skipped.`,
		Example: `  # Import a CSV with a header row
  sqlgraph import data/orders.csv

  # Import several headerless logs and index the third column
  sqlgraph import logs/a.log logs/b.log --no-header --index=2`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NoHeader, "no-header", false, "Treat the first row as data")
	cmd.Flags().StringVar(&opts.Index, "index", "", "Column name or zero-based position to index after loading")

	return cmd
}

func runImport(cmd *cobra.Command, args []string, opts *ImportOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	paths, err := cc.resolveFiles(args)
	if err != nil {
		return err
	}

	gw, err := cc.OpenGateway(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	res, err := ingest.Import(ctx, gw, cc.Logger, paths, ingest.Options{
		HasHeader:   !opts.NoHeader,
		IndexColumn: opts.Index,
		Database:    cc.Cfg.DefaultDatabase,
		Prefix:      cc.Cfg.CachePrefix,
	})
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(res.Columns))
	for _, c := range res.Columns {
		rows = append(rows, []string{c.Name, c.Type.String(), c.Type.SQLType()})
	}
	if err := cc.Renderer.Table([]string{"column", "type", "sql type"}, rows); err != nil {
		return err
	}
	cc.Renderer.Notice("Imported %d rows into %s.%s (%d skipped)", res.Rows, cc.Cfg.DefaultDatabase, res.Table, res.Skipped)
	return nil
}
