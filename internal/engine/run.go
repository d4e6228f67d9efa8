package engine

// run.go - Execution orchestration for running graphs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/sqlgraph/internal/overrides"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// NodeResult is the outcome of one scheduled node.
type NodeResult struct {
	NodeID string
	Type   string
	Label  string
	Status core.NodeStatus
	// Output is the table reference the node recorded, if any.
	Output   string
	Err      error
	Duration time.Duration
}

// RunResult is the outcome of a run.
type RunResult struct {
	RunID    string
	Order    []string
	Nodes    []NodeResult
	Outputs  core.RuntimeOutput
	Duration time.Duration
}

// Failed returns the results of nodes that failed.
func (r *RunResult) Failed() []NodeResult {
	var out []NodeResult
	for _, n := range r.Nodes {
		if n.Status == core.NodeStatusFailed {
			out = append(out, n)
		}
	}
	return out
}

// Run executes every node of g in topological order with a fresh run
// context built from o. Node failures are logged and recorded in the
// result; the returned error is reserved for conditions that stop the
// run: an unschedulable graph or a cancelled context.
func (e *Engine) Run(ctx context.Context, g *core.Graph, o overrides.Overrides) (*RunResult, error) {
	order, _, err := Plan(g)
	if err != nil {
		e.logger.Error("failed to schedule graph", "error", err)
		return nil, err
	}

	start := time.Now()
	result := &RunResult{
		RunID:   uuid.NewString(),
		Order:   order,
		Outputs: core.RuntimeOutput{},
	}
	rc := &processor.RunContext{
		Gateway:         e.gateway,
		Resolver:        overrides.NewResolver(o),
		Outputs:         result.Outputs,
		Logger:          e.logger,
		Workspace:       e.workspace,
		Stdout:          e.stdout,
		DefaultDatabase: e.defaultDatabase,
		Prefix:          e.prefix,
		Export:          e.export,
	}

	run := &core.Run{
		ID:        result.RunID,
		Graph:     g.Meta.Description,
		Status:    core.RunStatusRunning,
		StartedAt: start,
		Nodes:     len(order),
	}
	e.record("start run", func() error { return e.recorder.StartRun(ctx, run) })

	e.logger.Info("graph loaded", "run_id", result.RunID, "nodes", len(order))

	var runErr error
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		n, ok := g.Node(id)
		if !ok {
			continue
		}

		nr := e.runNode(ctx, n, g.Connections, rc)
		result.Nodes = append(result.Nodes, nr)
		e.record("record node", func() error { return e.recorder.RecordNode(ctx, nodeRun(result.RunID, nr)) })
	}

	result.Duration = time.Since(start)
	completed := time.Now()
	run.CompletedAt = &completed
	run.Failed = len(result.Failed())
	switch {
	case runErr != nil:
		run.Status = core.RunStatusFailed
		run.Error = runErr.Error()
	case run.Failed > 0:
		run.Status = core.RunStatusFailed
		run.Error = fmt.Sprintf("%d node(s) failed", run.Failed)
	default:
		run.Status = core.RunStatusCompleted
	}
	e.record("complete run", func() error { return e.recorder.CompleteRun(context.WithoutCancel(ctx), run) })

	if runErr != nil {
		e.logger.Error("run aborted", "run_id", result.RunID, "error", runErr)
		return result, runErr
	}
	e.logger.Info("done", "run_id", result.RunID, "failed", run.Failed, "duration", result.Duration)
	return result, nil
}

// runNode dispatches n to its processor. Errors and panics become a failed
// result; they never escape.
func (e *Engine) runNode(ctx context.Context, n core.Node, conns []core.Connection, rc *processor.RunContext) NodeResult {
	start := time.Now()
	res := NodeResult{NodeID: n.ID, Type: n.Type, Label: n.DisplayName()}

	e.logger.Info("running node", "type", n.Type, "label", res.Label)

	p, ok := e.registry.Get(n.Type)
	if !ok {
		e.logger.Warn("no processor for node type, skipping", "type", n.Type, "node", n.ID)
		res.Status = core.NodeStatusSkipped
		res.Duration = time.Since(start)
		return res
	}

	err := invoke(ctx, p, n, conns, rc)
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = core.NodeStatusFailed
		res.Err = err
		e.logger.Error("node failed", "type", n.Type, "label", res.Label, "error", err)
	} else {
		res.Status = core.NodeStatusSuccess
		res.Output, _ = rc.Outputs.Get(n.ID)
	}

	e.logger.Info("finished node", "label", res.Label, "duration", res.Duration)
	return res
}

func invoke(ctx context.Context, p processor.Processor, n core.Node, conns []core.Connection, rc *processor.RunContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return p.Process(ctx, n, conns, rc)
}

func (e *Engine) record(op string, fn func() error) {
	if e.recorder == nil {
		return
	}
	if err := fn(); err != nil {
		e.logger.Warn("failed to record run history", "op", op, "error", err)
	}
}

func nodeRun(runID string, nr NodeResult) *core.NodeRun {
	out := &core.NodeRun{
		RunID:       runID,
		NodeID:      nr.NodeID,
		Type:        nr.Type,
		Label:       nr.Label,
		Status:      nr.Status,
		Output:      nr.Output,
		StartedAt:   time.Now().Add(-nr.Duration),
		ExecutionMS: nr.Duration.Milliseconds(),
	}
	if nr.Err != nil {
		out.Error = nr.Err.Error()
	}
	return out
}
