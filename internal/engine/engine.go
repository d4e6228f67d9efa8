// Package engine runs pipeline graphs.
// It orders nodes topologically, dispatches each to its processor, and
// keeps going when a single node fails.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/leapstack-labs/sqlgraph/internal/dag"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
	"github.com/leapstack-labs/sqlgraph/internal/workspace"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// Recorder persists run history. Recorder failures are logged and never
// affect a run.
type Recorder interface {
	StartRun(ctx context.Context, run *core.Run) error
	RecordNode(ctx context.Context, nr *core.NodeRun) error
	CompleteRun(ctx context.Context, run *core.Run) error
}

// Engine executes graphs against one gateway.
type Engine struct {
	gateway   adapter.Gateway
	registry  *processor.Registry
	workspace *workspace.Root
	recorder  Recorder

	// Structured logger
	logger *slog.Logger

	stdout          io.Writer
	defaultDatabase string
	prefix          string
	export          processor.ExportOptions
}

// Config holds engine configuration.
type Config struct {
	// Gateway executes SQL (required)
	Gateway adapter.Gateway
	// Registry maps node types to processors (optional, uses the built-in
	// processors if nil)
	Registry *processor.Registry
	// Workspace is the sandboxed project root (optional, uses the working
	// directory if nil)
	Workspace *workspace.Root
	// Recorder stores run history (optional)
	Recorder Recorder
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Stdout receives stdout exports (optional, uses os.Stdout if nil)
	Stdout io.Writer
	// DefaultDatabase is the schema for TableNodes without one and for
	// every table a run creates
	DefaultDatabase string
	// Prefix names the cache tables a run creates
	Prefix string
	// Export configures DisplayNode destinations
	Export processor.ExportOptions
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("engine requires a gateway")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = processor.DefaultRegistry()
	}

	ws := cfg.Workspace
	if ws == nil {
		var err error
		ws, err = workspace.New(".")
		if err != nil {
			return nil, err
		}
	}

	return &Engine{
		gateway:         cfg.Gateway,
		registry:        registry,
		workspace:       ws,
		recorder:        cfg.Recorder,
		logger:          logger,
		stdout:          cfg.Stdout,
		defaultDatabase: cfg.DefaultDatabase,
		prefix:          cfg.Prefix,
		export:          cfg.Export,
	}, nil
}

// Plan returns the execution order of g and its dependency levels.
func Plan(g *core.Graph) ([]string, [][]string, error) {
	dg, err := dag.FromCore(g)
	if err != nil {
		return nil, nil, err
	}
	order, err := dg.TopologicalSort()
	if err != nil {
		return nil, nil, err
	}
	levels, err := dg.GetExecutionLevels()
	if err != nil {
		return nil, nil, err
	}
	return order, levels, nil
}
