package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/loader"
	"github.com/leapstack-labs/sqlgraph/internal/overrides"
	"github.com/spf13/cobra"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Files       []string
	Tables      []string
	Databases   []string
	FailOnError bool
	Watch       bool
	NoHistory   bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <graph>",
		Short: "Execute a pipeline graph",
		Long: `Execute every node of a graph in dependency order.

Overrides are consumed in execution order: each --file replaces the path of
the next FileNode (or empty-SQL QueryNode) that runs, each --table the table
of the next TableNode, and --db the database of the TableNode at the same
position. --var-<name>=<value> substitutes {name} in SQL text.`,
		Example: `  # Run a graph
  sqlgraph run pipeline.json

  # Swap the input files of the first two file nodes
  sqlgraph run pipeline.json --file=jan.csv --file=feb.csv

  # Override a table and supply a variable
  sqlgraph run pipeline.json --table=orders_2024 --db=sales --var-region=EU

  # Re-run whenever the graph changes
  sqlgraph run pipeline.json --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Files, "file", nil, "File override, consumed in execution order (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Tables, "table", nil, "Table override, consumed in execution order (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Databases, "db", nil, "Database override, paired with the table cursor (repeatable)")
	cmd.Flags().BoolVar(&opts.FailOnError, "fail-on-error", false, "Exit non-zero when any node fails")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when the graph file changes")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record the run in the history store")

	return cmd
}

func runRun(cmd *cobra.Command, graphPath string, opts *RunOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	graphPath, err = cc.graphPath(graphPath)
	if err != nil {
		return err
	}

	gw, err := cc.OpenGateway(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	var eng *engine.Engine
	if opts.NoHistory {
		eng, err = cc.NewEngine(gw, nil, cmd.OutOrStdout())
	} else {
		store, serr := cc.OpenStore()
		if serr != nil {
			return serr
		}
		defer func() { _ = store.Close() }()
		eng, err = cc.NewEngine(gw, store, cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	o := overrides.Overrides{
		Files:     opts.Files,
		Tables:    opts.Tables,
		Databases: opts.Databases,
		Vars:      cc.Vars,
	}

	runOnce := func(ctx context.Context) error {
		g, err := loader.LoadGraph(graphPath)
		if err != nil {
			return err
		}
		if g.Meta.Description == "" {
			g.Meta.Description = filepath.Base(graphPath)
		}
		result, err := eng.Run(ctx, g, o)
		if err != nil {
			return err
		}
		if err := renderRunResult(cc.Renderer, result); err != nil {
			return err
		}
		if failed := result.Failed(); opts.FailOnError && len(failed) > 0 {
			return fmt.Errorf("%d of %d nodes failed", len(failed), len(result.Nodes))
		}
		return nil
	}

	if !opts.Watch {
		return runOnce(ctx)
	}

	if err := runOnce(ctx); err != nil {
		cc.Logger.Error("run failed", "error", err)
	}
	cc.Renderer.Notice("Watching %s for changes (Ctrl+C to stop)", graphPath)
	return watchFile(ctx, graphPath, watchDebounce, cc.Logger, runOnce)
}

// graphPath resolves p against the working directory, then the project root.
func (cc *CommandContext) graphPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	if _, err := os.Stat(p); err == nil {
		return filepath.Abs(p)
	}
	if full, ok := cc.Workspace.Existing(p); ok {
		return full, nil
	}
	return "", fmt.Errorf("graph file not found: %s", p)
}

// statusCell colours status for terminal tables only.
func statusCell(r *output.Renderer, status string) string {
	if r.EffectiveMode() != output.ModeText {
		return status
	}
	return r.Status(status)
}

func (cc *CommandContext) statusCell(status string) string {
	return statusCell(cc.Renderer, status)
}

func renderRunResult(r *output.Renderer, result *engine.RunResult) error {
	header := []string{"#", "node", "type", "label", "status", "output", "duration", "error"}
	rows := make([][]string, 0, len(result.Nodes))
	for i, n := range result.Nodes {
		status := statusCell(r, string(n.Status))
		errText := ""
		if n.Err != nil {
			errText = n.Err.Error()
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			n.NodeID,
			n.Type,
			n.Label,
			status,
			n.Output,
			n.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}
	if err := r.Table(header, rows); err != nil {
		return err
	}

	failed := len(result.Failed())
	summary := fmt.Sprintf("Run %s: %d nodes, %d failed, finished in %s",
		result.RunID, len(result.Nodes), failed, result.Duration.Round(time.Millisecond))
	style := r.Styles().Success
	if failed > 0 {
		style = r.Styles().Error
	}
	r.Notice("%s", r.Styles().Render(style, summary))
	return nil
}
