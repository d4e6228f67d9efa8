// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
)

// PipelineGraph reads a table, filters it and exports the result to
// stdout.
const PipelineGraph = `{
  "nodes": [
    {"id": "src", "type": "TableNode", "label": "Orders", "selectedDb": "shop", "selectedTable": "orders"},
    {"id": "big", "type": "QueryNode", "label": "Big orders", "sql": "SELECT * FROM {input} WHERE total > {min}"},
    {"id": "out", "type": "DisplayNode", "label": "Print", "exportType": "stdout"}
  ],
  "connections": [
    {"from": "src", "to": "big"},
    {"from": "big", "to": "out"}
  ]
}`

// SetupTestProject creates a temporary project with a config file, a
// pipeline graph and a data file, and returns its directory.
//
// The config keeps run history under .sqlgraph/ in the project.
func SetupTestProject(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()

	if err := os.MkdirAll(filepath.Join(tmpDir, "data"), 0755); err != nil {
		t.Fatalf("failed to create data directory: %v", err)
	}

	files := map[string]string{
		"sqlgraph.yaml": `default_database: mngtools
cache_prefix: test_cache_
state_path: .sqlgraph/state.db
target:
  type: mysql-cli
  host: db.internal
  user: etl
  password: hunter2
`,
		"pipeline.json":   PipelineGraph,
		"data/orders.csv": "id,total,customer\n1,10.5,alice\n2,200,bob\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}

	return tmpDir
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.Mode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdownTable checks that every non-empty line of md that
// starts a table row is pipe-delimited on both ends.
func AssertValidMarkdownTable(t *testing.T, md string) {
	t.Helper()
	rows := 0
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			continue
		}
		rows++
		if !strings.HasSuffix(trimmed, "|") {
			t.Errorf("unterminated table row at line %d: %q", i+1, line)
		}
	}
	if rows < 2 {
		t.Errorf("no markdown table found in %q", md)
	}
}
