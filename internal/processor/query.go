package processor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/idgen"
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/internal/overrides"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// QueryProcessor materializes a SQL transform of its inputs.
type QueryProcessor struct{}

type queryConfig struct {
	SQL         string `mapstructure:"sql"`
	IndexColumn string `mapstructure:"indexColumn"`
}

// Process resolves {socket} macros to upstream tables and {name} macros to
// variables, then runs CREATE TABLE <prefix>cli_<id> AS <sql>. A node
// without SQL draws its SQL text from the next file override instead.
func (QueryProcessor) Process(ctx context.Context, node core.Node, conns []core.Connection, rc *RunContext) error {
	var cfg queryConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	logger := rc.logger()
	res := rc.resolver()

	sql := cfg.SQL
	if strings.TrimSpace(sql) == "" {
		if override, ok := res.NextFile(); ok {
			if rc.Workspace == nil {
				return errNoWorkspace
			}
			p, err := resolveOverridePath(rc.Workspace, override)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("failed to read SQL file: %w", err)
			}
			res.AdvanceFile()
			logger.Info("loading SQL from override", "path", p)
			sql = string(data)
		}
	}
	sql = materialize.TrimStatement(sql)
	if sql == "" {
		return nil
	}

	resolved := overrides.Substitute(sql, resolveInputs(node.ID, conns, rc.outputs()))
	resolved = res.ExpandVars(resolved)
	if left := overrides.Unresolved(resolved); len(left) > 0 {
		return &UnresolvedMacroError{Macros: left}
	}

	ref, err := materializeSQL(ctx, rc, "cli_", resolved)
	if err != nil {
		return err
	}
	rc.outputs().Set(node.ID, ref)

	if cfg.IndexColumn != "" {
		indexOutput(ctx, rc, ref, cfg.IndexColumn)
	}
	return nil
}

// materializeSQL creates a new cache table from sql and returns its
// qualified name.
func materializeSQL(ctx context.Context, rc *RunContext, kind, sql string) (string, error) {
	name, err := idgen.TableName(rc.prefix() + kind)
	if err != nil {
		return "", err
	}
	db := rc.database()
	ref := adapter.Qualify(db, name)

	rc.logger().Debug("executing SQL", "table", ref, "sql", sql)
	if err := materialize.CreateTableAs(ctx, rc.Gateway, ref, sql, db); err != nil {
		return "", err
	}
	rc.logger().Info("created table", "table", ref)
	return ref, nil
}

func indexOutput(ctx context.Context, rc *RunContext, ref, spec string) {
	materialize.BestEffort(rc.logger(), "read columns", func() error {
		cols, err := materialize.TableColumns(ctx, rc.Gateway, ref, rc.database())
		if err != nil {
			return err
		}
		materialize.IndexByColumnSpec(ctx, rc.Gateway, rc.logger(), ref, cols, spec, rc.database())
		return nil
	})
}
