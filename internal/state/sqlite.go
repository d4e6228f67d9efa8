package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/sqlgraph/pkg/core"

	// SQLite driver (pure Go)
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

var errNotOpened = errors.New("database not opened")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// If logger is nil, a discard logger is used.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("state store opened", "path", path)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// --- Run operations ---

// StartRun inserts run.
func (s *SQLiteStore) StartRun(ctx context.Context, run *core.Run) error {
	if s.db == nil {
		return errNotOpened
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, graph, status, started_at, nodes) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Graph, string(run.Status), run.StartedAt.UTC(), run.Nodes)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	s.logger.Debug("run started", "id", run.ID)
	return nil
}

// CompleteRun stores the final status of run.
func (s *SQLiteStore) CompleteRun(ctx context.Context, run *core.Run) error {
	if s.db == nil {
		return errNotOpened
	}
	completed := time.Now().UTC()
	if run.CompletedAt != nil {
		completed = run.CompletedAt.UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ?, failed = ? WHERE id = ?`,
		string(run.Status), completed, run.Error, run.Failed, run.ID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*core.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRunsBefore removes runs started before the cutoff along with their
// node results.
func (s *SQLiteStore) DeleteRunsBefore(ctx context.Context, before time.Time) (int64, error) {
	if s.db == nil {
		return 0, errNotOpened
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	return res.RowsAffected()
}

// --- Node run operations ---

// RecordNode inserts the result of one node.
func (s *SQLiteStore) RecordNode(ctx context.Context, nr *core.NodeRun) error {
	if s.db == nil {
		return errNotOpened
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO node_runs (run_id, node_id, node_type, label, status, output, error, started_at, execution_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nr.RunID, nr.NodeID, nr.Type, nr.Label, string(nr.Status), nr.Output, nr.Error, nr.StartedAt.UTC(), nr.ExecutionMS)
	if err != nil {
		return fmt.Errorf("failed to record node run: %w", err)
	}
	return nil
}

// ListNodeRuns returns the node results of a run in execution order.
func (s *SQLiteStore) ListNodeRuns(ctx context.Context, runID string) ([]*core.NodeRun, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, node_id, node_type, label, status, output, error, started_at, execution_ms
		 FROM node_runs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list node runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.NodeRun
	for rows.Next() {
		var nr core.NodeRun
		var status string
		if err := rows.Scan(&nr.RunID, &nr.NodeID, &nr.Type, &nr.Label, &status,
			&nr.Output, &nr.Error, &nr.StartedAt, &nr.ExecutionMS); err != nil {
			return nil, fmt.Errorf("failed to scan node run: %w", err)
		}
		nr.Status = core.NodeStatus(status)
		out = append(out, &nr)
	}
	return out, rows.Err()
}

const selectRuns = `SELECT id, graph, status, started_at, completed_at, error, nodes, failed FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*core.Run, error) {
	var run core.Run
	var status string
	var completed sql.NullTime
	if err := sc.Scan(&run.ID, &run.Graph, &status, &run.StartedAt, &completed,
		&run.Error, &run.Nodes, &run.Failed); err != nil {
		return nil, err
	}
	run.Status = core.RunStatus(status)
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return &run, nil
}

var _ Store = (*SQLiteStore)(nil)
