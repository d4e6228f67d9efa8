package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// TextLoad describes a LoadText result.
type TextLoad struct {
	Columns []string
	Rows    int64
}

// LoadText (re)creates table with one TEXT column per field of the first
// file's first row, then loads every file into it. Short rows are padded
// with NULL and long rows are truncated to the column count.
func LoadText(ctx context.Context, gw adapter.Gateway, logger *slog.Logger, table string, paths []string, hasHeader bool, database string) (*TextLoad, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to load")
	}
	quoted, err := adapter.QuoteTable(table)
	if err != nil {
		return nil, err
	}

	columns, err := textColumns(paths[0], hasHeader)
	if err != nil {
		return nil, err
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = adapter.QuoteIdent(c) + " TEXT"
	}
	if _, err := gw.Execute(ctx, "DROP TABLE IF EXISTS "+quoted, database); err != nil {
		return nil, err
	}
	if _, err := gw.Execute(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoted, strings.Join(defs, ", ")), database); err != nil {
		return nil, err
	}

	bw := newBatchWriter(ctx, gw, quoted, database)
	for _, p := range paths {
		before := bw.total + int64(len(bw.pending))
		if err := loadText(p, hasHeader, len(columns), bw); err != nil {
			return nil, err
		}
		logger.Debug("file queued", slog.String("path", p), slog.Int64("rows", bw.total+int64(len(bw.pending))-before))
	}
	if err := bw.flush(); err != nil {
		return nil, err
	}
	return &TextLoad{Columns: columns, Rows: bw.total}, nil
}

func textColumns(path string, hasHeader bool) ([]string, error) {
	delim, err := SniffFile(path, SniffBytes)
	if err != nil {
		return nil, err
	}
	rr, err := openRecords(path, delim)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rr.Close() }()

	first, err := rr.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("file %s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if hasHeader {
		return StripHeaders(first), nil
	}
	return positionalHeaders(len(first)), nil
}

func loadText(path string, hasHeader bool, width int, bw *batchWriter) error {
	delim, err := SniffFile(path, SniffBytes)
	if err != nil {
		return err
	}
	rr, err := openRecords(path, delim)
	if err != nil {
		return err
	}
	defer func() { _ = rr.Close() }()

	skipHeader := hasHeader
	padded := make([]bool, width)
	for {
		rec, err := rr.next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if skipHeader {
			skipHeader = false
			continue
		}

		for i := range padded {
			padded[i] = i >= len(rec)
		}
		if len(rec) > width {
			rec = rec[:width]
		}
		for len(rec) < width {
			rec = append(rec, "")
		}
		if err := bw.add(rec, func(i int) bool { return padded[i] }); err != nil {
			return err
		}
	}
}
