// Package adapter provides the database gateway contract for sqlgraph's
// pipeline engine.
//
// This package contains the public contract that every gateway must
// implement, the gateway registry, identifier validation and the typed
// errors shared by all gateways. Concrete gateways live in pkg/adapters/.
package adapter

import (
	"context"
	"io"
)

// Config holds connection settings for a gateway.
type Config struct {
	// Type selects the registered gateway, e.g. "mysql-cli" or "mysql".
	Type     string
	Host     string
	Port     int
	User     string
	Password string
	// Client is the external client binary used by process-based gateways.
	Client string
	// Database is the schema used when a call names none.
	Database string
	// Params holds driver-specific connection options.
	Params map[string]string
}

// Gateway executes SQL against the target engine.
//
// Values never cross the boundary as native types: every cell is a string,
// and SQL NULL is rendered as "NULL".
type Gateway interface {
	// Connect prepares the gateway using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close releases resources held by the gateway.
	Close() error

	// Execute runs sql with database selected as the current schema and
	// returns the produced rows. Failures are reported as *QueryError.
	Execute(ctx context.Context, sql, database string) (*Result, error)

	// StreamTable writes every row of table to w as CSV, header first,
	// without holding the full result in memory. It returns the number of
	// data rows written.
	StreamTable(ctx context.Context, table string, w io.Writer, database string) (int64, error)
}
