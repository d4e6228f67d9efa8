package adapter

import "fmt"

// QueryError is returned when the engine rejects a statement. Message
// carries the engine's own error text.
type QueryError struct {
	SQL     string
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	return "query failed: " + e.Message
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// InvalidIdentifierError is returned when a database or table name would
// have to be interpolated into SQL but is outside the allow-list.
type InvalidIdentifierError struct {
	Kind string
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s name %q", e.Kind, e.Name)
}
