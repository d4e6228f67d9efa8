// Package export writes materialized tables to their destinations: local
// CSV files, a writer such as stdout, a spreadsheet through an external
// upload script, or an S3-compatible bucket.
//
// Every destination streams the table through adapter.Gateway.StreamTable,
// so no destination holds the full result set in memory.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// Kind names an export destination.
type Kind string

// Export kinds understood by DisplayNode.
const (
	KindFile        Kind = "file"
	KindStdout      Kind = "stdout"
	KindGoogleSheet Kind = "google_sheet"
	KindS3          Kind = "s3"
)

// Kinds lists every export kind.
var Kinds = []Kind{KindFile, KindStdout, KindGoogleSheet, KindS3}

// DefaultName is the file name used when none is configured.
const DefaultName = "export.csv"

// UnknownKindError is returned for an export kind with no destination.
type UnknownKindError struct {
	Kind string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown export type %q", e.Kind)
}

// ParseKind maps a configured export type to a Kind. Empty means KindFile.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindFile:
		return KindFile, nil
	case KindStdout, KindGoogleSheet, KindS3:
		return Kind(s), nil
	}
	return "", &UnknownKindError{Kind: s}
}

// ToWriter streams table to w as CSV.
func ToWriter(ctx context.Context, gw adapter.Gateway, table, database string, w io.Writer) (int64, error) {
	n, err := gw.StreamTable(ctx, table, w, database)
	if err != nil {
		return n, fmt.Errorf("failed to export %s: %w", table, err)
	}
	return n, nil
}

// ToFile streams table into a temporary file next to path, then renames it
// into place. The destination directory is created when missing.
func ToFile(ctx context.Context, gw adapter.Gateway, table, database, path string) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sqlgraph_export_*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := ToWriter(ctx, gw, table, database, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write export: %w", cerr)
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("failed to move export into place: %w", err)
	}
	return n, nil
}

// toTemp streams table into a fresh temporary CSV and returns its path.
// The caller removes the file.
func toTemp(ctx context.Context, gw adapter.Gateway, table, database, dir, pattern string) (string, int64, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	n, err := ToWriter(ctx, gw, table, database, tmp)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to write export: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", n, err
	}
	return tmp.Name(), n, nil
}
