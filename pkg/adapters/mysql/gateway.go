// Package mysql provides a MySQL gateway for sqlgraph that talks to the
// server through the native go-sql-driver/mysql driver.
package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// Gateway implements the adapter.Gateway interface over a pooled
// database/sql connection.
type Gateway struct {
	adapter.BaseSQLGateway
}

// New creates a new MySQL gateway instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{
		BaseSQLGateway: adapter.BaseSQLGateway{Logger: logger},
	}
}

// Connect establishes a connection pool to MySQL.
func (g *Gateway) Connect(ctx context.Context, cfg adapter.Config) error {
	dsn := buildDSN(cfg)

	g.Logger.Debug("connecting to mysql", slog.String("host", cfg.Host), slog.String("database", cfg.Database))

	db, err := sqlx.ConnectContext(ctx, "mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to mysql: %w", err)
	}

	g.DB = db
	g.Cfg = cfg
	return nil
}

// buildDSN constructs a go-sql-driver DSN from the gateway config.
func buildDSN(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

var _ adapter.Gateway = (*Gateway)(nil)
