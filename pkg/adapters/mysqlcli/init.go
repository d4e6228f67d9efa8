package mysqlcli

import (
	"log/slog"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

func init() {
	adapter.Register("mysql-cli", func(logger *slog.Logger) adapter.Gateway { return New(logger) })
}
