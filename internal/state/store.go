// Package state persists run history in SQLite.
package state

import (
	"context"
	"time"

	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// Store records runs and their node results.
type Store interface {
	Open(path string) error
	Close() error
	Migrate() error

	StartRun(ctx context.Context, run *core.Run) error
	RecordNode(ctx context.Context, nr *core.NodeRun) error
	CompleteRun(ctx context.Context, run *core.Run) error

	GetRun(ctx context.Context, id string) (*core.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*core.Run, error)
	ListNodeRuns(ctx context.Context, runID string) ([]*core.NodeRun, error)
	DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error)
}
