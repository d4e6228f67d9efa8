package processor

import (
	"context"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// TableProcessor references an existing table.
type TableProcessor struct{}

type tableConfig struct {
	SelectedDb    string `mapstructure:"selectedDb"`
	SelectedTable string `mapstructure:"selectedTable"`
}

// Process records "db.table" for the node. The table override at the
// table cursor replaces selectedTable and is consumed; the database
// override follows the same cursor without consuming it.
func (TableProcessor) Process(_ context.Context, node core.Node, _ []core.Connection, rc *RunContext) error {
	var cfg tableConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}

	res := rc.resolver()
	dbOverride, dbOverridden := res.Database()
	tableOverride, tableOverridden := res.NextTable()

	db := cfg.SelectedDb
	if dbOverridden {
		db = dbOverride
	}
	if db == "" {
		db = rc.database()
	}
	table := cfg.SelectedTable
	if tableOverridden {
		table = tableOverride
	}

	if table == "" {
		rc.logger().Info("no table selected, skipping", "node", node.ID)
		return nil
	}
	if tableOverridden {
		res.AdvanceTable()
	}

	if err := adapter.ValidateDatabase(db); err != nil {
		return err
	}
	ref := db + "." + table
	if err := adapter.ValidateTable(ref); err != nil {
		return err
	}

	rc.outputs().Set(node.ID, ref)
	rc.logger().Info("table reference", "ref", ref, "overridden", dbOverridden || tableOverridden)
	return nil
}
