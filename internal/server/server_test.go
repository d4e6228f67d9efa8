package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/state"
	"github.com/leapstack-labs/sqlgraph/internal/testutil"
	"github.com/leapstack-labs/sqlgraph/internal/workspace"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	gw     *testutil.FakeGateway
	root   *workspace.Root
	store  *state.SQLiteStore
	server *Server
	ts     *httptest.Server
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	gw := testutil.NewFakeGateway()
	root, err := workspace.New(t.TempDir())
	require.NoError(t, err)
	logger := testutil.NewTestLogger(t)

	f := &fixture{gw: gw, root: root}
	ecfg := engine.Config{Gateway: gw, Workspace: root, Logger: logger, Stdout: io.Discard}
	if withStore {
		f.store = state.NewSQLiteStore(logger)
		require.NoError(t, f.store.Open(":memory:"))
		require.NoError(t, f.store.Migrate())
		t.Cleanup(func() { _ = f.store.Close() })
		ecfg.Recorder = f.store
	}
	eng, err := engine.New(ecfg)
	require.NoError(t, err)

	cfg := Config{Gateway: gw, Engine: eng, Workspace: root, Logger: logger}
	if withStore {
		cfg.Store = f.store
	}
	f.server, err = New(cfg)
	require.NoError(t, err)
	f.ts = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp.StatusCode, out
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestDatabases_ExcludesSystemSchemas(t *testing.T) {
	f := newFixture(t, false)
	f.gw.Respond(`information_schema\.schemata`, &adapter.Result{
		Columns: []string{"db"},
		Rows:    [][]string{{"information_schema"}, {"mngtools"}, {"mysql"}, {"performance_schema"}, {"sales"}, {"sys"}},
	})

	status, body := f.do(t, http.MethodGet, "/api/databases", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"mngtools", "sales"}, body["databases"])
}

func TestTablesAndColumns(t *testing.T) {
	f := newFixture(t, false)
	f.gw.Respond(`^SHOW TABLES$`, &adapter.Result{Columns: []string{"Tables_in_sales"}, Rows: [][]string{{"orders"}, {"users"}}})
	f.gw.Respond(`^SHOW COLUMNS`, &adapter.Result{Columns: []string{"Field", "Type"}, Rows: [][]string{{"id", "int"}, {"name", "text"}}})

	status, body := f.do(t, http.MethodGet, "/api/databases/sales/tables", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"orders", "users"}, body["tables"])
	assert.Equal(t, "sales", f.gw.Statements()[0].Database)

	status, body = f.do(t, http.MethodGet, "/api/databases/sales/tables/orders/columns", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{"id", "name"}, body["columns"])

	status, body = f.do(t, http.MethodGet, "/api/databases/bad-db/tables", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "bad-db")
}

func TestTableDetails(t *testing.T) {
	f := newFixture(t, false)
	f.gw.Respond(`information_schema\.tables`, &adapter.Result{
		Columns: []string{"TABLE_NAME", "CREATE_TIME", "UPDATE_TIME", "TABLE_ROWS"},
		Rows:    [][]string{{"orders", "2024-01-02 10:00:00", "NULL", "42"}},
	})

	status, body := f.do(t, http.MethodGet, "/api/databases/sales/tables/details", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, []any{map[string]any{
		"name": "orders", "created": "2024-01-02 10:00:00", "updated": "NULL", "rows": "42",
	}}, body["tables"])

	stmt := f.gw.Statements()[0]
	assert.Contains(t, stmt.SQL, "TABLE_SCHEMA = 'sales'")
	assert.Equal(t, "information_schema", stmt.Database)

	status, _ = f.do(t, http.MethodGet, "/api/databases/x'y/tables/details", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Len(t, f.gw.SQL(), 1)
}

func TestTableDefinition(t *testing.T) {
	f := newFixture(t, false)
	f.gw.Respond("^SHOW CREATE TABLE `orders`$", &adapter.Result{
		Columns: []string{"Table", "Create Table"},
		Rows:    [][]string{{"orders", "CREATE TABLE `orders` (\n  `id` int\n)"}},
	})
	f.gw.Respond("^SHOW CREATE TABLE `recent`$", &adapter.Result{
		Columns: []string{"View", "Create View", "character_set_client"},
		Rows:    [][]string{{"recent", "CREATE VIEW `recent` AS select 1", "utf8mb4"}},
	})

	status, body := f.do(t, http.MethodGet, "/api/databases/sales/tables/orders/definition", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "CREATE TABLE `orders` (\n  `id` int\n)", body["definition"])
	assert.Equal(t, "sales", f.gw.Statements()[0].Database)

	status, body = f.do(t, http.MethodGet, "/api/databases/sales/tables/recent/definition", "")
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "CREATE VIEW `recent` AS select 1", body["definition"])

	status, _ = f.do(t, http.MethodGet, "/api/databases/sales/tables/a-b/definition", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDropTables(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.do(t, http.MethodPost, "/api/databases/sales/drop",
		`{"tables": ["tmp_a", "users; DROP DATABASE sales", "tmp_b"]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, []any{"tmp_a", "tmp_b"}, body["dropped"])
	assert.Equal(t, []any{"users; DROP DATABASE sales"}, body["skipped"])
	assert.Equal(t, []string{"DROP TABLE IF EXISTS `tmp_a`", "DROP TABLE IF EXISTS `tmp_b`"}, f.gw.SQL())
	assert.Equal(t, "sales", f.gw.Statements()[0].Database)

	status, _ = f.do(t, http.MethodPost, "/api/databases/sales/drop", `{"tables": []}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestDropTables_FailureSurfaces(t *testing.T) {
	f := newFixture(t, false)
	f.gw.Fail("^DROP TABLE", "Access denied")

	status, body := f.do(t, http.MethodPost, "/api/databases/sales/drop", `{"tables": ["tmp_a"]}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "Access denied")
}

func TestQuery(t *testing.T) {
	f := newFixture(t, false)
	f.gw.Respond(`LIMIT 500$`, &adapter.Result{Columns: []string{"id"}, Rows: [][]string{{"1"}, {"2"}}})
	f.gw.Respond(`COUNT\(\*\)`, &adapter.Result{Columns: []string{"total"}, Rows: [][]string{{"2"}}})

	status, body := f.do(t, http.MethodPost, "/api/query", `{"sql": "SELECT id FROM users;"}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.True(t, strings.HasPrefix(body["table"].(string), "mngtools.sqlgraph_cache_"))
	assert.Equal(t, []any{"id"}, body["columns"])
	assert.Len(t, body["rows"], 2)
	assert.Equal(t, float64(2), body["total_rows"])
	assert.True(t, f.gw.Executed("AS SELECT id FROM users"))

	status, body = f.do(t, http.MethodPost, "/api/query", `{"sql": "DELETE FROM users"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	status, _ = f.do(t, http.MethodPost, "/api/query", `{"sql": "  "}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestImport(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.root.WriteFile("data/users.csv", []byte("id,name\n1,alice\n2,bob\n")))

	status, body := f.do(t, http.MethodPost, "/api/import", `{"paths": ["data/users.csv"]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.True(t, strings.HasPrefix(body["table"].(string), "mngtools.sqlgraph_cache_file_"))
	assert.Equal(t, float64(2), body["rows"])
	cols := body["columns"].([]any)
	require.Len(t, cols, 2)
	assert.Equal(t, map[string]any{"name": "id", "type": "integer"}, cols[0])
	assert.Equal(t, map[string]any{"name": "name", "type": "text"}, cols[1])

	status, body = f.do(t, http.MethodPost, "/api/import", `{"paths": ["data/missing.csv"]}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "file not found")

	status, _ = f.do(t, http.MethodPost, "/api/import", `{"paths": []}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestExport(t *testing.T) {
	f := newFixture(t, false)
	f.gw.SetTable("mngtools.result", &adapter.Result{Columns: []string{"id"}, Rows: [][]string{{"1"}, {"2"}}})

	resp, err := http.Post(f.ts.URL+"/api/export", "application/json", strings.NewReader(`{"table": "mngtools.result"}`))
	require.NoError(t, err)
	data, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get("Content-Type"))
	assert.Equal(t, "id\n1\n2\n", string(data))

	status, body := f.do(t, http.MethodPost, "/api/export",
		`{"table": "mngtools.result", "settings": {"exportType": "file", "exportPath": "out", "exportName": "r.csv"}}`)
	require.Equal(t, http.StatusOK, status, body)
	written, err := f.root.ReadFile("out/r.csv")
	require.NoError(t, err)
	assert.Equal(t, "id\n1\n2\n", string(written))

	status, _ = f.do(t, http.MethodPost, "/api/export", `{"table": "mngtools.result", "settings": {"exportType": "fax"}}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/export", `{"table": "bad;name"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestCleanup(t *testing.T) {
	f := newFixture(t, false)
	f.gw.Respond(`^SHOW TABLES$`, &adapter.Result{
		Columns: []string{"Tables_in_mngtools"},
		Rows:    [][]string{{"sqlgraph_cache_a"}, {"keep_me"}, {"sqlgraph_cache_file_b"}},
	})

	status, body := f.do(t, http.MethodPost, "/api/cleanup", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, []any{"sqlgraph_cache_a", "sqlgraph_cache_file_b"}, body["dropped"])
	assert.False(t, f.gw.Executed("keep_me`"))
}

const simpleGraph = `{"graph": {
	"nodes": [
		{"id": "t", "type": "TableNode", "selectedTable": "users"},
		{"id": "x", "type": "ChartNode"}
	],
	"connections": [{"from": "t", "to": "x"}]
}`

func TestRun(t *testing.T) {
	f := newFixture(t, true)

	status, body := f.do(t, http.MethodPost, "/api/run", simpleGraph+`, "tables": ["orders"], "dbs": ["sales"]}`)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, []any{"t", "x"}, body["order"])
	assert.Equal(t, map[string]any{"t": "sales.orders"}, body["outputs"])
	assert.Equal(t, float64(0), body["failed"])
	nodes := body["nodes"].([]any)
	require.Len(t, nodes, 2)
	assert.Equal(t, "success", nodes[0].(map[string]any)["status"])
	assert.Equal(t, "skipped", nodes[1].(map[string]any)["status"])
	runID := body["run_id"].(string)

	status, body = f.do(t, http.MethodGet, "/api/runs", "")
	require.Equal(t, http.StatusOK, status)
	runs := body["runs"].([]any)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].(map[string]any)["id"])
	assert.Equal(t, "completed", runs[0].(map[string]any)["status"])

	status, body = f.do(t, http.MethodGet, "/api/runs/"+runID, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["nodes"], 2)

	status, _ = f.do(t, http.MethodGet, "/api/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodGet, "/api/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRun_InvalidGraphs(t *testing.T) {
	f := newFixture(t, false)

	status, body := f.do(t, http.MethodPost, "/api/run", `{"graph": {}}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "nodes")

	cycle := `{"graph": {
		"nodes": [{"id": "a", "type": "QueryNode"}, {"id": "b", "type": "QueryNode"}],
		"connections": [{"from": "a", "to": "b"}, {"from": "b", "to": "a"}]
	}}`
	status, _ = f.do(t, http.MethodPost, "/api/run", cycle)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRuns_DisabledWithoutStore(t *testing.T) {
	f := newFixture(t, false)
	status, body := f.do(t, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "run history is disabled", body["error"])
}

func TestFiles(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.root.WriteFile("data/a.csv", []byte("x\n1\n")))
	require.NoError(t, f.root.WriteFile("data/skip.sql", []byte("SELECT 1")))

	status, body := f.do(t, http.MethodGet, "/api/files?path=data", "")
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "data/a.csv", items[0].(map[string]any)["path"])

	status, body = f.do(t, http.MethodGet, "/api/files/content?path=data/a.csv", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "x\n1\n", body["content"])

	status, _ = f.do(t, http.MethodPut, "/api/files/content", `{"path": "data/b.tsv", "content": "a\tb\n"}`)
	require.Equal(t, http.StatusOK, status)
	saved, err := f.root.ReadFile("data/b.tsv")
	require.NoError(t, err)
	assert.Equal(t, "a\tb\n", string(saved))

	status, _ = f.do(t, http.MethodGet, "/api/files/content?path=data/skip.sql", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/api/files/content?path=data/missing.csv", "")
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = f.do(t, http.MethodPut, "/api/files/content", `{"path": "../escape.csv", "content": "x"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodGet, "/api/files?path=../..", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t, false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/api/files")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
