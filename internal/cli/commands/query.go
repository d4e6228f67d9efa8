package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Input string
	Index string
	Limit int
	REPL  bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Materialize a query and preview its result",
		Long: `Run a SELECT (or WITH) statement into a new cache table and print a
preview plus the total row count. SHOW and DESCRIBE run directly.

SQL is taken from the arguments, --input or stdin. With no SQL and an
interactive terminal, or with --repl, an interactive shell starts.`,
		Example: `  # Materialize a query
  sqlgraph query "SELECT * FROM orders WHERE total > 100"

  # Read SQL from a file and index the customer column
  sqlgraph query --input report.sql --index=customer_id

  # Pipe SQL in
  echo "SHOW TABLES" | sqlgraph query

  # Interactive shell
  sqlgraph query --repl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "Read SQL from a file")
	cmd.Flags().StringVar(&opts.Index, "index", "", "Column name or zero-based position to index on the result table")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", materialize.DefaultPreviewLimit, "Number of preview rows")
	cmd.Flags().BoolVar(&opts.REPL, "repl", false, "Start the interactive shell")

	return cmd
}

func runQuery(cmd *cobra.Command, args []string, opts *QueryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	var sql string
	switch {
	case opts.REPL:
	case len(args) > 0:
		sql = strings.Join(args, " ")
	case opts.Input != "":
		data, err := os.ReadFile(opts.Input)
		if err != nil {
			return fmt.Errorf("failed to read query file: %w", err)
		}
		sql = string(data)
	case !stdinIsTerminal(cmd.InOrStdin()):
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		sql = string(data)
	default:
		opts.REPL = true
	}

	gw, err := cc.OpenGateway(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	if opts.REPL {
		return runQueryREPL(cmd, cc, gw, opts)
	}

	if strings.TrimSpace(sql) == "" {
		return fmt.Errorf("no query provided")
	}
	return executeQuery(ctx, cc, gw, sql, opts)
}

func executeQuery(ctx context.Context, cc *CommandContext, gw adapter.Gateway, sql string, opts *QueryOptions) error {
	res, err := materialize.Query(ctx, gw, cc.Logger, sql, materialize.QueryOptions{
		Database:     cc.Cfg.DefaultDatabase,
		Prefix:       cc.Cfg.CachePrefix,
		IndexColumn:  opts.Index,
		PreviewLimit: opts.Limit,
	})
	if err != nil {
		return err
	}

	var header []string
	var rows [][]string
	if res.Preview != nil {
		header, rows = res.Preview.Columns, res.Preview.Rows
	}
	if err := cc.Renderer.Table(header, rows); err != nil {
		return err
	}
	if res.Table != "" {
		cc.Renderer.Notice("%d total rows in %s", res.TotalRows, res.Table)
	}
	return nil
}

func stdinIsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
