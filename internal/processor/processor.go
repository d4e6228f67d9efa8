// Package processor implements the node types of a pipeline graph.
//
// A processor either records a materialized table reference for its node
// in the run's RuntimeOutput, or performs a terminal side effect such as
// an export and records nothing. Failures are returned as errors; the
// engine logs them per node and continues the run.
package processor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// Processor executes one node of a given type.
type Processor interface {
	Process(ctx context.Context, node core.Node, conns []core.Connection, rc *RunContext) error
}

// Func adapts a function to the Processor interface.
type Func func(ctx context.Context, node core.Node, conns []core.Connection, rc *RunContext) error

// Process implements Processor.
func (f Func) Process(ctx context.Context, node core.Node, conns []core.Connection, rc *RunContext) error {
	return f(ctx, node, conns, rc)
}

// Registry maps node types to processors.
type Registry struct {
	processors map[string]Processor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{processors: make(map[string]Processor)}
}

// DefaultRegistry returns a registry holding every built-in node type.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(core.NodeTypeTable, TableProcessor{})
	r.Register(core.NodeTypeFile, FileProcessor{})
	r.Register(core.NodeTypeQuery, QueryProcessor{})
	r.Register(core.NodeTypeDisplay, DisplayProcessor{})
	r.Register(core.NodeTypeJoin, JoinProcessor{})
	return r
}

// Register adds or replaces the processor for nodeType.
func (r *Registry) Register(nodeType string, p Processor) {
	r.processors[nodeType] = p
}

// Get returns the processor for nodeType.
func (r *Registry) Get(nodeType string) (Processor, bool) {
	p, ok := r.processors[nodeType]
	return p, ok
}

// Types returns the registered node types, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.processors))
	for t := range r.processors {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FileNotFoundError is returned when a configured or overridden file does
// not exist.
type FileNotFoundError struct {
	Path     string
	Override bool
}

func (e *FileNotFoundError) Error() string {
	if e.Override {
		return "file override not found: " + e.Path
	}
	return "file not found: " + e.Path
}

// UnresolvedMacroError is returned when SQL still contains {identifier}
// macros after inputs and variables were substituted.
type UnresolvedMacroError struct {
	Macros []string
}

func (e *UnresolvedMacroError) Error() string {
	return "unresolved macros in SQL: " + strings.Join(e.Macros, ", ") + " (missing source or variable?)"
}

// decodeConfig decodes the node's configuration bag into out.
func decodeConfig(node core.Node, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(node.Config); err != nil {
		return fmt.Errorf("invalid %s config for node %s: %w", node.Type, node.ID, err)
	}
	return nil
}

// resolveInputs maps each socket of node to the output of the connection
// feeding it. Connections whose source produced nothing are left out.
func resolveInputs(nodeID string, conns []core.Connection, outputs core.RuntimeOutput) map[string]string {
	inputs := make(map[string]string)
	for _, c := range conns {
		if c.To != nodeID {
			continue
		}
		if ref, ok := outputs.Get(c.From); ok {
			inputs[c.Socket()] = ref
		}
	}
	return inputs
}

// firstInput returns the output of the first connection into nodeID that
// produced one.
func firstInput(nodeID string, conns []core.Connection, outputs core.RuntimeOutput) (string, bool) {
	for _, c := range conns {
		if c.To != nodeID {
			continue
		}
		if ref, ok := outputs.Get(c.From); ok {
			return ref, true
		}
	}
	return "", false
}
