// Package materialize persists query results as run-scoped cache tables.
//
// It owns the two error lanes of the engine. Primary operations such as
// CreateTableAs and Query return errors to the caller. Optimization-only
// work such as AddIndex goes through BestEffort, which logs failures and
// never returns them.
package materialize
