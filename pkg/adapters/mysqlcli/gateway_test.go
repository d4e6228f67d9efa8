package mysqlcli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient writes a shell script standing in for the mysql binary. It
// records its arguments, stdin and MYSQL_PWD next to itself, prints
// stdout and exits with code.
func fakeClient(t *testing.T, stdout, stderr string, code int) (string, string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake client requires a POSIX shell")
	}

	dir := t.TempDir()
	out := filepath.Join(dir, "stdout.txt")
	require.NoError(t, os.WriteFile(out, []byte(stdout), 0o644))
	errOut := filepath.Join(dir, "stderr.txt")
	require.NoError(t, os.WriteFile(errOut, []byte(stderr), 0o644))

	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + filepath.Join(dir, "args") + "\n" +
		"printf '%s' \"$MYSQL_PWD\" > " + filepath.Join(dir, "pwd") + "\n" +
		"cat > " + filepath.Join(dir, "stdin") + "\n" +
		"cat " + out + "\n" +
		"cat " + errOut + " >&2\n" +
		"exit " + string(rune('0'+code)) + "\n"
	path := filepath.Join(dir, "mysql")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path, dir
}

func connect(t *testing.T, client string) *Gateway {
	t.Helper()
	g := New(nil)
	require.NoError(t, g.Connect(context.Background(), adapter.Config{
		Client:   client,
		Host:     "db.internal",
		Port:     3307,
		User:     "etl",
		Password: "s3cret",
		Database: "mngtools",
	}))
	return g
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestExecute_ParsesBatchOutput(t *testing.T) {
	client, dir := fakeClient(t, "id\tname\n1\talice\n\n2\tNULL\n", "", 0)
	g := connect(t, client)

	res, err := g.Execute(context.Background(), "SELECT id, name FROM users", "analytics")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, res.Columns)
	assert.Equal(t, [][]string{{"1", "alice"}, {"2", "NULL"}}, res.Rows)

	assert.Equal(t, "USE `analytics`;\nSELECT id, name FROM users", readFile(t, filepath.Join(dir, "stdin")))
	assert.Equal(t, "s3cret", readFile(t, filepath.Join(dir, "pwd")))
	assert.Equal(t, "-h db.internal -P 3307 -u etl -B", strings.TrimSpace(readFile(t, filepath.Join(dir, "args"))))
}

func TestExecute_DefaultDatabase(t *testing.T) {
	client, dir := fakeClient(t, "", "", 0)
	g := connect(t, client)

	res, err := g.Execute(context.Background(), "DROP TABLE IF EXISTS x", "")
	require.NoError(t, err)

	assert.Equal(t, 0, res.Len())
	assert.True(t, strings.HasPrefix(readFile(t, filepath.Join(dir, "stdin")), "USE `mngtools`;\n"))
}

func TestExecute_NonZeroExitIsQueryError(t *testing.T) {
	client, _ := fakeClient(t, "", "ERROR 1146 (42S02) at line 2: Table 'mngtools.nope' doesn't exist\n", 1)
	g := connect(t, client)

	_, err := g.Execute(context.Background(), "SELECT * FROM nope", "")

	var qe *adapter.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "ERROR 1146 (42S02) at line 2: Table 'mngtools.nope' doesn't exist", qe.Message)
}

func TestExecute_RejectsInvalidDatabase(t *testing.T) {
	client, dir := fakeClient(t, "", "", 0)
	g := connect(t, client)

	_, err := g.Execute(context.Background(), "SELECT 1", "x; DROP DATABASE y")

	var ie *adapter.InvalidIdentifierError
	require.ErrorAs(t, err, &ie)
	_, statErr := os.Stat(filepath.Join(dir, "stdin"))
	assert.True(t, os.IsNotExist(statErr), "client must not be started")
}

func TestStreamTable_ConvertsToCSV(t *testing.T) {
	client, dir := fakeClient(t, "id\tnote\n1\thas,comma\n2\tline\\nbreak\n3\ttab\\there\n", "", 0)
	g := connect(t, client)

	var buf bytes.Buffer
	n, err := g.StreamTable(context.Background(), "mngtools.events", &buf, "")
	require.NoError(t, err)

	assert.Equal(t, int64(3), n)
	assert.Equal(t, "id,note\n1,\"has,comma\"\n2,\"line\nbreak\"\n3,tab\there\n", buf.String())
	assert.Equal(t, "USE `mngtools`;\nSELECT * FROM `mngtools`.`events`", readFile(t, filepath.Join(dir, "stdin")))
	assert.Contains(t, readFile(t, filepath.Join(dir, "args")), "--quick")
}

func TestStreamTable_EmptyResult(t *testing.T) {
	client, _ := fakeClient(t, "", "", 0)
	g := connect(t, client)

	var buf bytes.Buffer
	n, err := g.StreamTable(context.Background(), "empty_table", &buf, "")
	require.NoError(t, err)

	assert.Equal(t, int64(0), n)
	assert.Empty(t, buf.String())
}

func TestStreamTable_ExportError(t *testing.T) {
	client, _ := fakeClient(t, "", "ERROR 1146 (42S02): Table doesn't exist\n", 1)
	g := connect(t, client)

	_, err := g.StreamTable(context.Background(), "missing", &bytes.Buffer{}, "")

	var qe *adapter.QueryError
	require.ErrorAs(t, err, &qe)
	assert.Contains(t, qe.Message, "Table doesn't exist")
}

func TestStreamTable_RejectsInvalidTable(t *testing.T) {
	g := &Gateway{client: "/bin/false"}

	_, err := g.StreamTable(context.Background(), "users WHERE 1=1", &bytes.Buffer{}, "")

	var ie *adapter.InvalidIdentifierError
	assert.ErrorAs(t, err, &ie)
}

func TestConnect_MissingClient(t *testing.T) {
	g := New(nil)
	err := g.Connect(context.Background(), adapter.Config{Client: "/nonexistent/mysql-client"})
	assert.Error(t, err)
}

func TestParseBatch(t *testing.T) {
	res, err := ParseBatch(strings.NewReader("a\tb\tc\n1\t\\\\path\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, res.Columns)
	assert.Equal(t, [][]string{{"1", `\path`, "NULL"}}, res.Rows)
}

func TestParseBatch_EmptyValueRows(t *testing.T) {
	res, err := ParseBatch(strings.NewReader("name\na\n\nb\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"name"}, res.Columns)
	assert.Equal(t, [][]string{{"a"}, {""}, {"b"}}, res.Rows)
}

func TestBatchToCSV_EmptyValueRows(t *testing.T) {
	var buf bytes.Buffer
	n, err := batchToCSV(strings.NewReader("name\na\n\nb\n"), &buf)
	require.NoError(t, err)

	assert.Equal(t, int64(3), n)
	assert.Equal(t, "name\na\n\"\"\nb\n", buf.String())
}
