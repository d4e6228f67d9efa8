package commands

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/loader"
	"github.com/spf13/cobra"
)

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "plan <graph>",
		Short: "Show the execution order of a graph without running it",
		Long: `Validate a graph and print the order its nodes would run in.

Each node is listed with its level: nodes on the same level have no
dependency on each other.`,
		Example: `  sqlgraph plan pipeline.json
  sqlgraph plan pipeline.json -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, args[0])
		},
	}
}

func runPlan(cmd *cobra.Command, graphPath string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	graphPath, err = cc.graphPath(graphPath)
	if err != nil {
		return err
	}

	g, err := loader.LoadGraph(graphPath)
	if err != nil {
		return err
	}
	order, levels, err := engine.Plan(g)
	if err != nil {
		return err
	}

	level := make(map[string]int, len(order))
	for i, ids := range levels {
		for _, id := range ids {
			level[id] = i
		}
	}

	rows := make([][]string, 0, len(order))
	for i, id := range order {
		n, _ := g.Node(id)
		var deps []string
		for _, c := range g.ConnectionsTo(id) {
			deps = append(deps, c.From+":"+c.Socket())
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(level[id]),
			id,
			n.Type,
			n.Label,
			strings.Join(deps, ", "),
		})
	}
	if err := cc.Renderer.Table([]string{"#", "level", "node", "type", "label", "depends on"}, rows); err != nil {
		return err
	}
	cc.Renderer.Notice("%d nodes in %d levels", len(order), len(levels))
	return nil
}
