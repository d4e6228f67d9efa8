package processor

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// Join sockets.
const (
	SocketSource = "source"
	SocketFilter = "filter"
)

// DefaultJoinKey is the join column used when a node names none.
const DefaultJoinKey = "user_id"

// JoinProcessor keeps the rows of its source input whose key appears in
// its filter input.
type JoinProcessor struct{}

type joinConfig struct {
	JoinKey     string `mapstructure:"joinKey"`
	IndexColumn string `mapstructure:"indexColumn"`
}

// Process materializes
//
//	SELECT t1.* FROM <source> t1 INNER JOIN <filter> t2 ON t1.<key> = t2.<key>
func (JoinProcessor) Process(ctx context.Context, node core.Node, conns []core.Connection, rc *RunContext) error {
	var cfg joinConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}

	inputs := resolveInputs(node.ID, conns, rc.outputs())
	source, hasSource := inputs[SocketSource]
	filter, hasFilter := inputs[SocketFilter]
	if !hasSource || !hasFilter {
		rc.logger().Info("join input missing, skipping", "node", node.ID,
			"source", hasSource, "filter", hasFilter)
		return nil
	}

	key := cfg.JoinKey
	if key == "" {
		key = DefaultJoinKey
	}
	if err := adapter.ValidateColumn(key); err != nil {
		return err
	}
	qsource, err := adapter.QuoteTable(source)
	if err != nil {
		return err
	}
	qfilter, err := adapter.QuoteTable(filter)
	if err != nil {
		return err
	}

	col := adapter.QuoteIdent(key)
	sql := fmt.Sprintf("SELECT t1.* FROM %s t1 INNER JOIN %s t2 ON t1.%s = t2.%s", qsource, qfilter, col, col)

	ref, err := materializeSQL(ctx, rc, "cli_join_", sql)
	if err != nil {
		return err
	}
	rc.outputs().Set(node.ID, ref)

	if cfg.IndexColumn != "" {
		indexOutput(ctx, rc, ref, cfg.IndexColumn)
	}
	return nil
}
