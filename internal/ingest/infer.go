package ingest

import (
	"regexp"
	"strings"
)

// ColumnType is an inferred column type.
type ColumnType int

// Column types in escalation order. Text is terminal.
const (
	TypeInteger ColumnType = iota
	TypeDouble
	TypeText
)

// SQLType returns the column definition type. Integers are widened to
// 64 bits.
func (t ColumnType) SQLType() string {
	switch t {
	case TypeInteger:
		return "BIGINT"
	case TypeDouble:
		return "DOUBLE"
	default:
		return "TEXT"
	}
}

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "double"
	default:
		return "text"
	}
}

// MarshalText renders the type by name.
func (t ColumnType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Column is an inferred column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// SampleRows is the number of matching data rows inspected for inference.
const SampleRows = 1000

var numericPattern = regexp.MustCompile(`^\s*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?\s*$`)

// IsNumeric reports whether v is a plain decimal number, optionally signed
// and with an exponent.
func IsNumeric(v string) bool {
	return numericPattern.MatchString(v)
}

// IsNullish reports whether v is empty or the literal null.
func IsNullish(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "null")
}

// Inferrer accumulates column types over sample rows.
type Inferrer struct {
	types   []ColumnType
	sampled int
}

// NewInferrer starts every one of n columns as integer.
func NewInferrer(n int) *Inferrer {
	return &Inferrer{types: make([]ColumnType, n)}
}

// Done reports whether SampleRows rows have been observed.
func (in *Inferrer) Done() bool {
	return in.sampled >= SampleRows
}

// Observe folds one row into the inferred types. Rows whose width differs
// from the column count are ignored and do not count toward the sample.
func (in *Inferrer) Observe(row []string) bool {
	if len(row) != len(in.types) || in.Done() {
		return false
	}
	for i, v := range row {
		if IsNullish(v) || in.types[i] == TypeText {
			continue
		}
		if !IsNumeric(v) {
			in.types[i] = TypeText
			continue
		}
		if strings.Contains(v, ".") && in.types[i] == TypeInteger {
			in.types[i] = TypeDouble
		}
	}
	in.sampled++
	return true
}

// Columns pairs names with the inferred types.
func (in *Inferrer) Columns(names []string) []Column {
	cols := make([]Column, len(names))
	for i, n := range names {
		cols[i] = Column{Name: n, Type: in.types[i]}
	}
	return cols
}

// InferColumns infers types for names from rows.
func InferColumns(names []string, rows [][]string) []Column {
	in := NewInferrer(len(names))
	for _, row := range rows {
		if in.Done() {
			break
		}
		in.Observe(row)
	}
	return in.Columns(names)
}
