package materialize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// Cleanup drops every table in database whose name starts with prefix
// and returns the dropped names. A failed drop does not stop the others.
func Cleanup(ctx context.Context, gw adapter.Gateway, logger *slog.Logger, database, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, errors.New("cleanup requires a table prefix")
	}

	res, err := gw.Execute(ctx, "SHOW TABLES", database)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var dropped []string
	var errs []error
	for _, row := range res.Rows {
		if len(row) == 0 || !strings.HasPrefix(row[0], prefix) {
			continue
		}
		table := adapter.Qualify(database, row[0])
		quoted, err := adapter.QuoteTable(table)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if _, err := gw.Execute(ctx, "DROP TABLE IF EXISTS "+quoted, database); err != nil {
			errs = append(errs, fmt.Errorf("drop %s: %w", table, err))
			continue
		}
		logger.Debug("dropped cache table", slog.String("table", table))
		dropped = append(dropped, row[0])
	}

	logger.Info("cache cleanup finished", slog.String("database", database), slog.Int("dropped", len(dropped)))
	return dropped, errors.Join(errs...)
}
