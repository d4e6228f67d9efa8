package ingest

import (
	"context"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// BatchSize is the number of rows per INSERT statement.
const BatchSize = 1000

// batchWriter accumulates rendered value tuples and flushes them as
// multi-row INSERT statements.
type batchWriter struct {
	ctx      context.Context
	gw       adapter.Gateway
	quoted   string
	database string
	size     int

	pending []string
	total   int64
}

func newBatchWriter(ctx context.Context, gw adapter.Gateway, quoted, database string) *batchWriter {
	return &batchWriter{ctx: ctx, gw: gw, quoted: quoted, database: database, size: BatchSize}
}

// add renders values as one tuple. nullable reports, per column, whether
// an empty or "null" value should load as SQL NULL.
func (b *batchWriter) add(values []string, nullable func(int) bool) error {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range values {
		if i > 0 {
			sb.WriteByte(',')
		}
		if nullable != nil && nullable(i) && IsNullish(v) {
			sb.WriteString("NULL")
			continue
		}
		sb.WriteString(adapter.QuoteLiteral(v))
	}
	sb.WriteByte(')')

	b.pending = append(b.pending, sb.String())
	if len(b.pending) >= b.size {
		return b.flush()
	}
	return nil
}

func (b *batchWriter) flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	sql := "INSERT INTO " + b.quoted + " VALUES " + strings.Join(b.pending, ",")
	if _, err := b.gw.Execute(b.ctx, sql, b.database); err != nil {
		return err
	}
	b.total += int64(len(b.pending))
	b.pending = b.pending[:0]
	return nil
}
