package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/idgen"
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// Options configure Import.
type Options struct {
	// HasHeader marks the first row of every file as column names.
	HasHeader bool
	// IndexColumn optionally names a column, by name or zero-based
	// position, to index after loading.
	IndexColumn string
	// Database is the schema the table is created in.
	Database string
	// Prefix is the cache table prefix; materialize.DefaultPrefix when empty.
	Prefix string
}

// Result describes an imported table.
type Result struct {
	Table   string   `json:"table"`
	Columns []Column `json:"columns"`
	Rows    int64    `json:"rows"`
	Skipped int64    `json:"skipped"`
}

// Import creates a typed table from paths. Column names and types come
// from the first file; every file is then loaded, skipping rows whose
// width differs from the column count.
func Import(ctx context.Context, gw adapter.Gateway, logger *slog.Logger, paths []string, opts Options) (*Result, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to import")
	}

	names, cols, err := inferFile(paths[0], opts.HasHeader)
	if err != nil {
		return nil, err
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = materialize.DefaultPrefix
	}
	name, err := idgen.TableName(prefix + "file_")
	if err != nil {
		return nil, err
	}
	table := adapter.Qualify(opts.Database, name)
	quoted, err := adapter.QuoteTable(table)
	if err != nil {
		return nil, err
	}

	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = adapter.QuoteIdent(c.Name) + " " + c.Type.SQLType()
	}
	if _, err := gw.Execute(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(defs, ", ")), opts.Database); err != nil {
		return nil, err
	}

	nullable := func(i int) bool { return cols[i].Type != TypeText }
	bw := newBatchWriter(ctx, gw, quoted, opts.Database)

	var skipped int64
	for _, p := range paths {
		n, err := loadTyped(p, opts.HasHeader, len(cols), bw, nullable)
		skipped += n
		if err != nil {
			return nil, err
		}
	}
	if err := bw.flush(); err != nil {
		return nil, err
	}

	materialize.IndexByColumnSpec(ctx, gw, logger, table, names, opts.IndexColumn, opts.Database)

	logger.Info("file imported",
		slog.String("table", table),
		slog.Int("files", len(paths)),
		slog.Int64("rows", bw.total),
		slog.Int64("skipped", skipped))

	return &Result{Table: table, Columns: cols, Rows: bw.total, Skipped: skipped}, nil
}

// inferFile reads the header (or first row) and up to SampleRows data rows
// of path.
func inferFile(path string, hasHeader bool) ([]string, []Column, error) {
	delim, err := SniffFirstLine(path)
	if err != nil {
		return nil, nil, err
	}
	rr, err := openRecords(path, delim)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rr.Close() }()

	first, err := rr.next()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("file %s is empty", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var names []string
	in := NewInferrer(len(first))
	if hasHeader {
		names = SanitizeHeaders(first)
	} else {
		names = SynthesizeHeaders(len(first))
		in.Observe(first)
	}

	for !in.Done() {
		rec, err := rr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		in.Observe(rec)
	}
	return names, in.Columns(names), nil
}

func loadTyped(path string, hasHeader bool, width int, bw *batchWriter, nullable func(int) bool) (int64, error) {
	delim, err := SniffFirstLine(path)
	if err != nil {
		return 0, err
	}
	rr, err := openRecords(path, delim)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rr.Close() }()

	var skipped int64
	skipHeader := hasHeader
	for {
		rec, err := rr.next()
		if errors.Is(err, io.EOF) {
			return skipped, nil
		}
		if err != nil {
			return skipped, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if skipHeader {
			skipHeader = false
			continue
		}
		if len(rec) != width {
			skipped++
			continue
		}
		if err := bw.add(rec, nullable); err != nil {
			return skipped, err
		}
	}
}
