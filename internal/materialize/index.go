package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// KeyPrefixLength is the key length used when a text column cannot be
// indexed without one.
const KeyPrefixLength = 255

// errKeyLengthRequired is MySQL error 1170 (ER_BLOB_KEY_WITHOUT_LENGTH).
const errKeyLengthRequired = 1170

// ResolveColumn finds the column named by spec, either a zero-based
// position or a column name. Names match case-insensitively, as MySQL
// column names do.
func ResolveColumn(columns []string, spec string) (string, bool) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", false
	}
	if n, err := strconv.Atoi(spec); err == nil {
		if n >= 0 && n < len(columns) {
			return columns[n], true
		}
		return "", false
	}
	for _, c := range columns {
		if c == spec {
			return c, true
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, spec) {
			return c, true
		}
	}
	return "", false
}

// IsKeyLengthError reports whether err means the column is a BLOB/TEXT
// type that needs an explicit key length to be indexed.
func IsKeyLengthError(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errKeyLengthRequired {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "BLOB/TEXT column") && strings.Contains(msg, "without a key length")
}

var indexNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]`)

// IndexName returns the index name used for column.
func IndexName(column string) string {
	return "idx_" + indexNameSanitizer.ReplaceAllString(column, "_")
}

// AddIndex indexes column of table. When the engine refuses because the
// column needs a key length, it retries once with a KeyPrefixLength
// prefix. Every failure is logged and swallowed.
func AddIndex(ctx context.Context, gw adapter.Gateway, logger *slog.Logger, table, column, database string) {
	BestEffort(logger, "add index", func() error {
		quoted, err := adapter.QuoteTable(table)
		if err != nil {
			return err
		}
		col := adapter.QuoteIdent(column)
		idx := adapter.QuoteIdent(IndexName(column))

		bare := fmt.Sprintf("ALTER TABLE %s ADD INDEX %s (%s)", quoted, idx, col)
		_, err = gw.Execute(ctx, bare, database)
		if err == nil {
			logger.Info("index created", slog.String("table", table), slog.String("column", column))
			return nil
		}
		if !IsKeyLengthError(err) {
			return err
		}

		logger.Info("retrying index with key length", slog.String("table", table),
			slog.String("column", column), slog.Int("length", KeyPrefixLength))
		prefixed := fmt.Sprintf("ALTER TABLE %s ADD INDEX %s (%s(%d))", quoted, idx, col, KeyPrefixLength)
		if _, err := gw.Execute(ctx, prefixed, database); err != nil {
			return err
		}
		logger.Info("index created", slog.String("table", table), slog.String("column", column))
		return nil
	})
}

// IndexByColumnSpec resolves spec against columns and indexes the match.
// An unresolvable spec is logged and ignored.
func IndexByColumnSpec(ctx context.Context, gw adapter.Gateway, logger *slog.Logger, table string, columns []string, spec, database string) {
	if strings.TrimSpace(spec) == "" {
		return
	}
	column, ok := ResolveColumn(columns, spec)
	if !ok {
		logger.Warn("index column not found", slog.String("table", table), slog.String("column", spec))
		return
	}
	AddIndex(ctx, gw, logger, table, column, database)
}
