// Package core defines the shared language of the sqlgraph system.
//
// This package contains:
//   - Pipeline graph entities (Graph, Node, Connection)
//   - Node type names understood by the engine
//   - The run-scoped RuntimeOutput store
//
// pkg/core imports only the standard library.
// All other packages depend on core, not the reverse.
package core
