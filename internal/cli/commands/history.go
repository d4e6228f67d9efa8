package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/sqlgraph/internal/state"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
	"github.com/spf13/cobra"
)

// HistoryOptions holds options for the history command.
type HistoryOptions struct {
	Limit     int
	OlderThan time.Duration
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `List recent runs, most recent first. Given a run id, show the outcome
of each of its nodes instead.`,
		Example: `  sqlgraph history
  sqlgraph history --limit 5
  sqlgraph history 3f0c2a9e-...
  sqlgraph history --purge-older-than 720h`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Number of runs to show (0 for all)")
	cmd.Flags().DurationVar(&opts.OlderThan, "purge-older-than", 0, "Delete runs started before now minus this duration")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := cc.OpenStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.OlderThan > 0 {
		n, err := store.DeleteRunsBefore(ctx, time.Now().Add(-opts.OlderThan))
		if err != nil {
			return err
		}
		cc.Renderer.Notice("Deleted %d runs", n)
		return nil
	}

	if len(args) == 1 {
		return showRun(cmd, cc, store, args[0])
	}

	runs, err := store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Graph,
			cc.statusCell(string(r.Status)),
			r.StartedAt.Local().Format(time.DateTime),
			runDuration(r),
			strconv.Itoa(r.Nodes),
			strconv.Itoa(r.Failed),
		})
	}
	return cc.Renderer.Table([]string{"id", "graph", "status", "started", "duration", "nodes", "failed"}, rows)
}

func showRun(cmd *cobra.Command, cc *CommandContext, store state.Store, id string) error {
	ctx := cmd.Context()
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	nodes, err := store.ListNodeRuns(ctx, id)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, []string{
			n.NodeID,
			n.Type,
			n.Label,
			cc.statusCell(string(n.Status)),
			n.Output,
			(time.Duration(n.ExecutionMS) * time.Millisecond).String(),
			n.Error,
		})
	}
	if err := cc.Renderer.Table([]string{"node", "type", "label", "status", "output", "duration", "error"}, rows); err != nil {
		return err
	}
	cc.Renderer.Notice("Run %s of %s: %s (%d nodes, %d failed)", run.ID, run.Graph, run.Status, run.Nodes, run.Failed)
	return nil
}

func runDuration(r *core.Run) string {
	if r.CompletedAt == nil {
		return "-"
	}
	return r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
