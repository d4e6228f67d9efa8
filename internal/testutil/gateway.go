package testutil

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// Statement is one call recorded by FakeGateway.
type Statement struct {
	SQL      string
	Database string
}

type response struct {
	pattern *regexp.Regexp
	result  *adapter.Result
	err     error
}

// FakeGateway is an in-memory adapter.Gateway. Execute answers with the
// first registered response whose pattern matches the SQL, or an empty
// result. StreamTable serves rows registered with SetTable.
//
// Unanswered statements of the form
//
//	CREATE TABLE <new> AS SELECT * FROM <table> [LIMIT n]
//
// copy the rows of a registered table, so materialized results can be
// streamed later.
type FakeGateway struct {
	mu         sync.Mutex
	statements []Statement
	streams    []Statement
	responses  []response
	tables     map[string]*adapter.Result
	streamErr  error
}

// NewFakeGateway returns an empty fake.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{tables: make(map[string]*adapter.Result)}
}

// Respond registers the result returned for SQL matching pattern.
func (f *FakeGateway) Respond(pattern string, res *adapter.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{pattern: regexp.MustCompile(pattern), result: res})
}

// Fail registers an error returned for SQL matching pattern.
func (f *FakeGateway) Fail(pattern string, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, response{
		pattern: regexp.MustCompile(pattern),
		err:     &adapter.QueryError{Message: message},
	})
}

// SetTable registers the content served by StreamTable for table.
func (f *FakeGateway) SetTable(table string, res *adapter.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = res
}

// FailStreams makes every StreamTable call return err.
func (f *FakeGateway) FailStreams(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamErr = err
}

// Statements returns every executed statement in order.
func (f *FakeGateway) Statements() []Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Statement(nil), f.statements...)
}

// SQL returns the text of every executed statement in order.
func (f *FakeGateway) SQL() []string {
	var out []string
	for _, s := range f.Statements() {
		out = append(out, s.SQL)
	}
	return out
}

// Executed reports whether any statement contains substr.
func (f *FakeGateway) Executed(substr string) bool {
	for _, s := range f.SQL() {
		if strings.Contains(s, substr) {
			return true
		}
	}
	return false
}

// Streams returns the table names passed to StreamTable.
func (f *FakeGateway) Streams() []Statement {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Statement(nil), f.streams...)
}

// Connect implements adapter.Gateway.
func (f *FakeGateway) Connect(context.Context, adapter.Config) error { return nil }

// Close implements adapter.Gateway.
func (f *FakeGateway) Close() error { return nil }

// Execute implements adapter.Gateway.
func (f *FakeGateway) Execute(_ context.Context, sql, database string) (*adapter.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statements = append(f.statements, Statement{SQL: sql, Database: database})

	for _, r := range f.responses {
		if r.pattern.MatchString(sql) {
			if r.err != nil {
				return nil, r.err
			}
			return r.result, nil
		}
	}
	f.copyTable(sql)
	return &adapter.Result{}, nil
}

var ctasPattern = regexp.MustCompile(`(?is)^CREATE TABLE (\S+) AS SELECT \* FROM (\S+)(?:\s+LIMIT (\d+))?\s*$`)

func (f *FakeGateway) copyTable(sql string) {
	m := ctasPattern.FindStringSubmatch(sql)
	if m == nil {
		return
	}
	src, ok := f.tables[unquote(m[2])]
	if !ok {
		return
	}
	rows := src.Rows
	if m[3] != "" {
		if n, err := strconv.Atoi(m[3]); err == nil && n < len(rows) {
			rows = rows[:n]
		}
	}
	f.tables[unquote(m[1])] = &adapter.Result{Columns: src.Columns, Rows: rows}
}

func unquote(name string) string {
	return strings.ReplaceAll(name, "`", "")
}

// StreamTable implements adapter.Gateway.
func (f *FakeGateway) StreamTable(_ context.Context, table string, w io.Writer, database string) (int64, error) {
	if err := adapter.ValidateTable(table); err != nil {
		return 0, err
	}

	f.mu.Lock()
	f.streams = append(f.streams, Statement{SQL: table, Database: database})
	res, ok := f.tables[table]
	streamErr := f.streamErr
	f.mu.Unlock()

	if streamErr != nil {
		return 0, streamErr
	}
	if !ok {
		return 0, &adapter.QueryError{Message: fmt.Sprintf("Table '%s' doesn't exist", table)}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(res.Columns); err != nil {
		return 0, err
	}
	for _, row := range res.Rows {
		if err := cw.Write(row); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	return int64(len(res.Rows)), cw.Error()
}

var _ adapter.Gateway = (*FakeGateway)(nil)
