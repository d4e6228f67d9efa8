package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/idgen"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// DefaultPrefix is the name prefix of every cache table sqlgraph creates.
const DefaultPrefix = "sqlgraph_cache_"

// DefaultPreviewLimit is the number of rows returned with a materialized query.
const DefaultPreviewLimit = 500

// StatementNotAllowedError is returned by Query for statements other than
// SELECT, SHOW and DESCRIBE.
type StatementNotAllowedError struct {
	Verb string
}

func (e *StatementNotAllowedError) Error() string {
	return fmt.Sprintf("statement %q not allowed: only SELECT, SHOW and DESCRIBE queries are accepted", e.Verb)
}

// CreateTableAs replaces ref with the result of sql.
func CreateTableAs(ctx context.Context, gw adapter.Gateway, ref, sql, database string) error {
	quoted, err := adapter.QuoteTable(ref)
	if err != nil {
		return err
	}
	sql = TrimStatement(sql)
	if sql == "" {
		return errors.New("empty query")
	}
	if _, err := gw.Execute(ctx, "DROP TABLE IF EXISTS "+quoted, database); err != nil {
		return err
	}
	if _, err := gw.Execute(ctx, "CREATE TABLE "+quoted+" AS "+sql, database); err != nil {
		return err
	}
	return nil
}

// TrimStatement strips surrounding whitespace and trailing semicolons.
func TrimStatement(sql string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(sql), ";"))
}

// QueryOptions configure Query.
type QueryOptions struct {
	// Database is the schema the cache table is created in.
	Database string
	// Prefix overrides DefaultPrefix.
	Prefix string
	// IndexColumn optionally names a column (or zero-based position) to index.
	IndexColumn string
	// PreviewLimit overrides DefaultPreviewLimit.
	PreviewLimit int
}

// QueryResult is the outcome of Query.
type QueryResult struct {
	// Table is the cache table holding the full result, empty when the
	// statement was not materialized.
	Table     string
	Preview   *adapter.Result
	TotalRows int64
}

// Query runs an operator query. SELECT statements are materialized into a
// new cache table and answered with a preview plus a total row count;
// SHOW and DESCRIBE run directly.
func Query(ctx context.Context, gw adapter.Gateway, logger *slog.Logger, sql string, opts QueryOptions) (*QueryResult, error) {
	sql = TrimStatement(sql)
	verb := strings.ToUpper(firstWord(sql))

	switch verb {
	case "SHOW", "DESCRIBE", "DESC":
		res, err := gw.Execute(ctx, sql, opts.Database)
		if err != nil {
			return nil, err
		}
		return &QueryResult{Preview: res, TotalRows: int64(res.Len())}, nil
	case "SELECT", "WITH":
	default:
		return nil, &StatementNotAllowedError{Verb: verb}
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	limit := opts.PreviewLimit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	name, err := idgen.TableName(prefix)
	if err != nil {
		return nil, err
	}
	table := adapter.Qualify(opts.Database, name)
	quoted, err := adapter.QuoteTable(table)
	if err != nil {
		return nil, err
	}
	if err := CreateTableAs(ctx, gw, table, sql, opts.Database); err != nil {
		return nil, err
	}

	preview, err := gw.Execute(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoted, limit), opts.Database)
	if err != nil {
		return nil, err
	}

	IndexByColumnSpec(ctx, gw, logger, table, preview.Columns, opts.IndexColumn, opts.Database)

	total, err := CountRows(ctx, gw, table, opts.Database)
	if err != nil {
		return nil, err
	}

	logger.Info("query materialized", slog.String("table", table), slog.Int64("rows", total))
	return &QueryResult{Table: table, Preview: preview, TotalRows: total}, nil
}

// CountRows returns COUNT(*) of table.
func CountRows(ctx context.Context, gw adapter.Gateway, table, database string) (int64, error) {
	quoted, err := adapter.QuoteTable(table)
	if err != nil {
		return 0, err
	}
	res, err := gw.Execute(ctx, "SELECT COUNT(*) AS total FROM "+quoted, database)
	if err != nil {
		return 0, err
	}
	if res.Len() == 0 || len(res.Rows[0]) == 0 {
		return 0, nil
	}
	n, err := strconv.ParseInt(res.Rows[0][0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected row count %q: %w", res.Rows[0][0], err)
	}
	return n, nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// TableColumns returns the column names of table in declaration order.
func TableColumns(ctx context.Context, gw adapter.Gateway, table, database string) ([]string, error) {
	quoted, err := adapter.QuoteTable(table)
	if err != nil {
		return nil, err
	}
	res, err := gw.Execute(ctx, "SHOW COLUMNS FROM "+quoted, database)
	if err != nil {
		return nil, err
	}
	return res.Column("Field"), nil
}
