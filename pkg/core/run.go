package core

import "time"

// RunStatus represents the status of a pipeline run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents one execution of a graph.
type Run struct {
	ID          string
	Graph       string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
	// Nodes and Failed count scheduled and failed nodes.
	Nodes  int
	Failed int
}

// NodeStatus represents the outcome of a single node.
type NodeStatus string

// Node status constants.
const (
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
	NodeStatusSkipped NodeStatus = "skipped"
)

// NodeRun represents a single node execution within a run.
type NodeRun struct {
	RunID       string
	NodeID      string
	Type        string
	Label       string
	Status      NodeStatus
	Output      string
	Error       string
	StartedAt   time.Time
	ExecutionMS int64
}
