package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

func init() {
	adapter.Register("mysql", func(logger *slog.Logger) adapter.Gateway { return New(logger) })
}
