package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	clitest "github.com/leapstack-labs/sqlgraph/internal/cli/testutil"
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/internal/testutil"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	stdout string
	stderr string
	err    error
}

// execute runs the CLI in dir against gw.
func execute(t *testing.T, dir string, gw *testutil.FakeGateway, stdin string, args ...string) result {
	t.Helper()
	t.Chdir(dir)

	var out, errOut bytes.Buffer
	opts := Options{
		OpenGateway: func(context.Context, adapter.Config, *slog.Logger) (adapter.Gateway, error) {
			return gw, nil
		},
		Stdin:  strings.NewReader(stdin),
		Stdout: &out,
		Stderr: &errOut,
	}
	err := ExecuteContext(context.Background(), args, opts)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func ordersTable() *adapter.Result {
	return &adapter.Result{
		Columns: []string{"id", "total", "customer"},
		Rows:    [][]string{{"1", "10.5", "alice"}, {"2", "200", "bob"}},
	}
}

func TestExecute_Version(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	res := execute(t, dir, testutil.NewFakeGateway(), "", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "sqlgraph v"+Version)
}

func TestExecute_RunPipeline(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.json"), []byte(`{
	  "nodes": [
	    {"id": "src", "type": "TableNode", "selectedDb": "shop", "selectedTable": "orders"},
	    {"id": "top", "type": "QueryNode", "sql": "SELECT * FROM {input} LIMIT {n}"},
	    {"id": "out", "type": "DisplayNode", "exportType": "stdout"}
	  ],
	  "connections": [{"from": "src", "to": "top"}, {"from": "top", "to": "out"}]
	}`), 0644))

	gw := testutil.NewFakeGateway()
	gw.SetTable("shop.orders", ordersTable())

	res := execute(t, dir, gw, "", "run", "pipeline.json", "--var-n=1")
	require.NoError(t, res.err, res.stderr)

	assert.True(t, gw.Executed("SELECT * FROM shop.orders LIMIT 1"), "variable substituted: %v", gw.SQL())
	assert.Contains(t, res.stdout, "id,total,customer\n1,10.5,alice\n")
	assert.NotContains(t, res.stdout, "bob")
	assert.Contains(t, res.stdout, "3 nodes, 0 failed")
	clitest.AssertNoANSI(t, res.stdout)
	assert.Contains(t, res.stderr, "msg=done")
	assert.FileExists(t, filepath.Join(dir, ".sqlgraph", "state.db"))

	runID := regexp.MustCompile(`Run (\S+): 3 nodes`).FindStringSubmatch(res.stdout)
	require.Len(t, runID, 2)

	history := execute(t, dir, gw, "", "history", "-o", "json")
	require.NoError(t, history.err)
	var runs []map[string]string
	require.NoError(t, json.Unmarshal([]byte(history.stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, runID[1], runs[0]["id"])
	assert.Equal(t, "pipeline.json", runs[0]["graph"])
	assert.Equal(t, "completed", runs[0]["status"])

	detail := execute(t, dir, gw, "", "history", runID[1], "-o", "csv")
	require.NoError(t, detail.err)
	lines := strings.Split(strings.TrimSpace(detail.stdout), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], "src,TableNode"))
}

func TestExecute_RunOverridesAndFailOnError(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()

	// {min} is never supplied, so the query node fails.
	res := execute(t, dir, gw, "", "run", "pipeline.json", "--table=archive", "--db=old", "--no-history")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "1 failed")
	assert.Contains(t, res.stderr, "level=ERROR")
	assert.NoFileExists(t, filepath.Join(dir, ".sqlgraph", "state.db"))

	res = execute(t, dir, gw, "", "run", "pipeline.json", "--fail-on-error", "--no-history")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "1 of 3 nodes failed")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "filter.json"), []byte(`{
	  "nodes": [
	    {"id": "src", "type": "TableNode", "selectedDb": "shop", "selectedTable": "orders"},
	    {"id": "big", "type": "QueryNode", "sql": "SELECT * FROM {input} WHERE total > {min}"}
	  ],
	  "connections": [{"from": "src", "to": "big"}]
	}`), 0644))
	res = execute(t, dir, gw, "", "run", "filter.json", "--table=archive", "--db=old", "--var-min=100", "--fail-on-error", "--no-history")
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "2 nodes, 0 failed")
	assert.True(t, gw.Executed("FROM old.archive WHERE total > 100"), "%v", gw.SQL())
}

func TestExecute_RunMissingGraph(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	res := execute(t, dir, testutil.NewFakeGateway(), "", "run", "nope.json")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "graph file not found")
}

func TestExecute_InvalidVarFlag(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	res := execute(t, dir, testutil.NewFakeGateway(), "", "run", "pipeline.json", "--var-=1")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "--var-<name>=<value>")
}

func TestExecute_Plan(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	res := execute(t, dir, testutil.NewFakeGateway(), "", "plan", "pipeline.json", "-o", "json")
	require.NoError(t, res.err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "src", rows[0]["node"])
	assert.Equal(t, "big", rows[1]["node"])
	assert.Equal(t, "1", rows[1]["level"])
	assert.Equal(t, "src:input", rows[1]["depends on"])
	assert.Equal(t, "out", rows[2]["node"])
	assert.Contains(t, res.stderr, "3 nodes in 3 levels")
}

func TestExecute_PlanMarkdown(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	res := execute(t, dir, testutil.NewFakeGateway(), "", "plan", "pipeline.json")
	require.NoError(t, res.err)
	clitest.AssertValidMarkdownTable(t, res.stdout)
	clitest.AssertNoANSI(t, res.stdout)
}

func TestExecute_Import(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()

	res := execute(t, dir, gw, "", "import", "data/orders.csv", "-o", "csv")
	require.NoError(t, res.err, res.stderr)

	assert.True(t, gw.Executed("CREATE TABLE `mngtools`.`test_cache_"), "%v", gw.SQL())
	assert.True(t, gw.Executed("INSERT INTO"))
	assert.Contains(t, res.stdout, "total,double")
	assert.Contains(t, res.stderr, "Imported 2 rows")

	res = execute(t, dir, gw, "", "import", "data/missing.csv")
	require.Error(t, res.err)
}

func TestExecute_QueryFromStdin(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()
	gw.Respond(`^SELECT \* FROM \S+ LIMIT 500$`, ordersTable())
	gw.Respond(`COUNT\(\*\)`, &adapter.Result{Columns: []string{"total"}, Rows: [][]string{{"2"}}})

	res := execute(t, dir, gw, "SELECT * FROM shop.orders;\n", "query")
	require.NoError(t, res.err, res.stderr)
	assert.True(t, gw.Executed("AS SELECT * FROM shop.orders"), "%v", gw.SQL())
	assert.Contains(t, res.stdout, "alice")
	assert.Regexp(t, `2 total rows in mngtools\.test_cache_`, res.stdout)
}

func TestExecute_QueryRejectsWrites(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()

	res := execute(t, dir, gw, "", "query", "DELETE FROM orders")
	require.Error(t, res.err)
	var notAllowed *materialize.StatementNotAllowedError
	assert.ErrorAs(t, res.err, &notAllowed)
	assert.Empty(t, gw.SQL())
}

func TestExecute_ExportStdout(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()
	gw.SetTable("orders", ordersTable())

	res := execute(t, dir, gw, "", "export", "orders")
	require.NoError(t, res.err, res.stderr)
	assert.Equal(t, "id,total,customer\n1,10.5,alice\n2,200,bob\n", res.stdout)
	require.Len(t, gw.Streams(), 1)
	assert.Equal(t, "mngtools", gw.Streams()[0].Database)
}

func TestExecute_ExportFile(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()
	gw.SetTable("orders", ordersTable())

	res := execute(t, dir, gw, "", "export", "orders", "--type=file")
	require.Error(t, res.err, "file exports need a path")

	res = execute(t, dir, gw, "", "export", "orders", "--type=file", "--path=out", "--name=o.csv")
	require.NoError(t, res.err, res.stderr)
	data, err := os.ReadFile(filepath.Join(dir, "out", "o.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "2,200,bob")

	res = execute(t, dir, gw, "", "export", "orders", "--type=ftp")
	require.Error(t, res.err)
}

func TestExecute_Cleanup(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()
	gw.Respond(`^SHOW TABLES$`, &adapter.Result{
		Columns: []string{"Tables_in_mngtools"},
		Rows:    [][]string{{"test_cache_a"}, {"orders"}, {"test_cache_b"}},
	})

	res := execute(t, dir, gw, "", "cleanup")
	require.NoError(t, res.err)
	assert.True(t, gw.Executed("DROP TABLE IF EXISTS `mngtools`.`test_cache_a`"), "%v", gw.SQL())
	assert.True(t, gw.Executed("`test_cache_b`"))
	assert.False(t, gw.Executed("`orders`"))
	assert.Contains(t, res.stdout, "Dropped 2 cache tables from mngtools")
}

func TestExecute_ConfigMasksPassword(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	res := execute(t, dir, testutil.NewFakeGateway(), "", "config", "--database", "analytics")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "hunter2")
	assert.Contains(t, res.stdout, "********")
	assert.Contains(t, res.stdout, "analytics")
	assert.Contains(t, res.stdout, "db.internal")
}

func TestExecute_LogFile(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	gw := testutil.NewFakeGateway()

	res := execute(t, dir, gw, "", "run", "pipeline.json", "--no-history", "--log-file", "run.log")
	require.NoError(t, res.err)

	data, err := os.ReadFile(filepath.Join(dir, "run.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"graph loaded\"")
	assert.Contains(t, res.stderr, "msg=\"graph loaded\"")
}

func TestExecute_UnknownOutputFormat(t *testing.T) {
	dir := clitest.SetupTestProject(t)
	res := execute(t, dir, testutil.NewFakeGateway(), "", "plan", "pipeline.json", "-o", "yaml")
	require.Error(t, res.err)
	assert.Contains(t, res.err.Error(), "unknown output format")
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd(Options{})
	for _, name := range []string{"run", "plan", "import", "query", "export", "cleanup", "history", "serve", "config", "version", "completion"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "project-root", "database", "prefix", "target", "state", "log-file", "log-level", "verbose", "output"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}
