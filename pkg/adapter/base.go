package adapter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
)

// BaseSQLGateway provides common database/sql functionality for gateways.
// Embed this struct in concrete gateway implementations to get standard
// Close, Execute, and StreamTable implementations.
type BaseSQLGateway struct {
	DB     *sqlx.DB
	Cfg    Config
	Logger *slog.Logger
}

var errNotConnected = errors.New("database connection not established")

// Close closes the database connection.
func (b *BaseSQLGateway) Close() error {
	if b.DB != nil {
		b.logger().Debug("closing database connection")
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLGateway) IsConnected() bool {
	return b.DB != nil
}

func (b *BaseSQLGateway) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.Logger
}

// conn checks out a dedicated connection and selects database on it, so
// the schema switch cannot leak into other pooled connections.
func (b *BaseSQLGateway) conn(ctx context.Context, database string) (*sqlx.Conn, error) {
	if b.DB == nil {
		return nil, errNotConnected
	}
	if database == "" {
		database = b.Cfg.Database
	}
	if database != "" {
		if err := ValidateDatabase(database); err != nil {
			return nil, err
		}
	}
	conn, err := b.DB.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	if database != "" {
		if _, err := conn.ExecContext(ctx, "USE `"+database+"`"); err != nil {
			_ = conn.Close()
			return nil, &QueryError{SQL: "USE " + database, Message: err.Error(), Err: err}
		}
	}
	return conn, nil
}

// Execute runs sqlStr and collects every row as strings.
func (b *BaseSQLGateway) Execute(ctx context.Context, sqlStr, database string) (*Result, error) {
	conn, err := b.conn(ctx, database)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	b.logger().Debug("exec sql", "database", database, "sql", truncate(sqlStr, 200))

	rows, err := conn.QueryxContext(ctx, sqlStr)
	if err != nil {
		return nil, &QueryError{SQL: sqlStr, Message: err.Error(), Err: err}
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	res := &Result{Columns: cols}
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		res.Rows = append(res.Rows, stringify(vals))
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{SQL: sqlStr, Message: err.Error(), Err: err}
	}
	return res, nil
}

// StreamTable writes table to w as CSV one row at a time.
func (b *BaseSQLGateway) StreamTable(ctx context.Context, table string, w io.Writer, database string) (int64, error) {
	quoted, err := QuoteTable(table)
	if err != nil {
		return 0, err
	}

	conn, err := b.conn(ctx, database)
	if err != nil {
		return 0, err
	}
	defer func() { _ = conn.Close() }()

	query := "SELECT * FROM " + quoted
	rows, err := conn.QueryxContext(ctx, query)
	if err != nil {
		return 0, &QueryError{SQL: query, Message: err.Error(), Err: err}
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("failed to read columns: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	var count int64
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return count, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := cw.Write(stringify(vals)); err != nil {
			return count, fmt.Errorf("failed to write row: %w", err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, &QueryError{SQL: query, Message: err.Error(), Err: err}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("failed to flush csv: %w", err)
	}
	return count, nil
}

// stringify renders driver values the way the batch-mode client prints them.
func stringify(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		switch val := v.(type) {
		case nil:
			out[i] = "NULL"
		case []byte:
			out[i] = string(val)
		case string:
			out[i] = val
		case int64:
			out[i] = strconv.FormatInt(val, 10)
		case float64:
			out[i] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			if val {
				out[i] = "1"
			} else {
				out[i] = "0"
			}
		case time.Time:
			out[i] = val.Format(time.DateTime)
		default:
			out[i] = fmt.Sprint(val)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
