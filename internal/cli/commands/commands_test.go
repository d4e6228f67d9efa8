package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/leapstack-labs/sqlgraph/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunCommand(t *testing.T) {
	cmd := NewRunCommand()

	assert.Equal(t, "run <graph>", cmd.Use)
	assert.NotEmpty(t, cmd.Short, "Short should not be empty")
	assert.NotEmpty(t, cmd.Example, "Example should not be empty")

	flags := []string{"file", "table", "db", "fail-on-error", "watch", "no-history"}
	for _, flag := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRunCommand_OverrideFlagsKeepOrderAndCommas(t *testing.T) {
	cmd := NewRunCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--file=b.csv", "--file=a,1.csv", "--table=t1", "--db=x", "--table=t2"}))

	files, err := cmd.Flags().GetStringArray("file")
	require.NoError(t, err)
	assert.Equal(t, []string{"b.csv", "a,1.csv"}, files)

	tables, err := cmd.Flags().GetStringArray("table")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, tables)
}

func TestNewCommands(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewPlanCommand(), "plan <graph>", nil},
		{NewImportCommand(), "import <file>...", []string{"no-header", "index"}},
		{NewQueryCommand(), "query [sql]", []string{"input", "index", "limit", "repl"}},
		{NewExportCommand(), "export <table>", []string{"type", "path", "name", "spreadsheet-id", "sheet", "credentials", "bucket", "key"}},
		{NewCleanupCommand(), "cleanup", []string{"in"}},
		{NewHistoryCommand(), "history [run-id]", []string{"limit", "purge-older-than"}},
		{NewServeCommand(), "serve", []string{"addr", "no-history"}},
		{NewConfigCommand(), "config", nil},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}
}

func TestExportOptions_Settings(t *testing.T) {
	opts := &ExportOptions{Type: "s3", Bucket: "reports", Key: "daily/o.csv"}
	assert.Equal(t, map[string]any{
		"exportType": "s3",
		"bucket":     "reports",
		"objectKey":  "daily/o.csv",
	}, opts.settings())
}

func TestEnvFrom_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	env := EnvFrom(context.Background())
	require.NotNil(t, env.Cfg)
	assert.Equal(t, "mngtools", env.Cfg.DefaultDatabase)
	assert.NotNil(t, env.Logger)

	want := &Env{Cfg: &config.Config{DefaultDatabase: "x"}}
	assert.Same(t, want, EnvFrom(WithEnv(context.Background(), want)))
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut string
	}{
		{"release", "1.2.3", "sqlgraph v1.2.3"},
		{"dev", "dev", "sqlgraph vdev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(nil)

			require.NoError(t, cmd.Execute())
			assert.Contains(t, buf.String(), tt.wantOut)
		})
	}
}
