// Package commands implements the sqlgraph subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/config"
	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
	"github.com/leapstack-labs/sqlgraph/internal/state"
	"github.com/leapstack-labs/sqlgraph/internal/workspace"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/spf13/cobra"
)

// GatewayOpener creates a connected gateway.
type GatewayOpener func(ctx context.Context, cfg adapter.Config, logger *slog.Logger) (adapter.Gateway, error)

// Env is the per-invocation state the root command hands to subcommands.
type Env struct {
	Cfg    *config.Config
	Logger *slog.Logger
	// Vars are the --var-<name>=<value> arguments.
	Vars map[string]string
	// Output is the --output flag value.
	Output output.Mode
	// OpenGateway defaults to adapter.Open.
	OpenGateway GatewayOpener
}

type envKey struct{}

// WithEnv stores env in ctx.
func WithEnv(ctx context.Context, env *Env) context.Context {
	return context.WithValue(ctx, envKey{}, env)
}

// EnvFrom retrieves the Env stored by the root command. Commands executed
// on their own get defaults and a discard logger.
func EnvFrom(ctx context.Context) *Env {
	if ctx != nil {
		if env, ok := ctx.Value(envKey{}).(*Env); ok {
			return env
		}
	}
	cfg, err := config.Load("", nil)
	if err != nil {
		cfg = &config.Config{DefaultDatabase: processor.DefaultDatabase, ProjectRoot: "."}
	}
	return &Env{Cfg: cfg, Logger: slog.New(slog.DiscardHandler)}
}

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg       *config.Config
	Logger    *slog.Logger
	Vars      map[string]string
	Renderer  *output.Renderer
	Workspace *workspace.Root

	env *Env
}

// NewCommandContext creates a CommandContext for cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	env := EnvFrom(cmd.Context())
	ws, err := workspace.New(env.Cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:       env.Cfg,
		Logger:    env.Logger,
		Vars:      env.Vars,
		Renderer:  output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), env.Output),
		Workspace: ws,
		env:       env,
	}, nil
}

// OpenGateway connects to the configured target. The caller closes it.
func (cc *CommandContext) OpenGateway(ctx context.Context) (adapter.Gateway, error) {
	open := cc.env.OpenGateway
	if open == nil {
		open = adapter.Open
	}
	return open(ctx, cc.Cfg.GatewayConfig(), cc.Logger)
}

// OpenStore opens and migrates the run history database.
func (cc *CommandContext) OpenStore() (*state.SQLiteStore, error) {
	if dir := filepath.Dir(cc.Cfg.StatePath); cc.Cfg.StatePath != ":memory:" && dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}
	store := state.NewSQLiteStore(cc.Logger)
	if err := store.Open(cc.Cfg.StatePath); err != nil {
		return nil, err
	}
	if err := store.Migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// ExportOptions builds DisplayNode destination settings from config.
func (cc *CommandContext) ExportOptions() processor.ExportOptions {
	return processor.ExportOptions{
		Python:          cc.Cfg.Export.Python,
		SheetScript:     cc.Cfg.Export.SheetScript,
		CredentialsPath: cc.Cfg.Export.CredentialsPath,
		S3Region:        cc.Cfg.Export.S3.Region,
		S3Endpoint:      cc.Cfg.Export.S3.Endpoint,
	}
}

// NewEngine creates an engine on gw. recorder may be nil.
func (cc *CommandContext) NewEngine(gw adapter.Gateway, recorder engine.Recorder, stdout io.Writer) (*engine.Engine, error) {
	cfg := engine.Config{
		Gateway:         gw,
		Workspace:       cc.Workspace,
		Logger:          cc.Logger,
		Stdout:          stdout,
		DefaultDatabase: cc.Cfg.DefaultDatabase,
		Prefix:          cc.Cfg.CachePrefix,
		Export:          cc.ExportOptions(),
		Recorder:        recorder,
	}
	return engine.New(cfg)
}

// RunContext builds a processor run context for one-off operations.
func (cc *CommandContext) RunContext(gw adapter.Gateway, stdout io.Writer) *processor.RunContext {
	return &processor.RunContext{
		Gateway:         gw,
		Logger:          cc.Logger,
		Workspace:       cc.Workspace,
		Stdout:          stdout,
		DefaultDatabase: cc.Cfg.DefaultDatabase,
		Prefix:          cc.Cfg.CachePrefix,
		Export:          cc.ExportOptions(),
	}
}

// resolveFiles maps project-relative paths to existing files.
func (cc *CommandContext) resolveFiles(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if filepath.IsAbs(p) {
			if !workspace.FileExists(p) {
				return nil, &processor.FileNotFoundError{Path: p}
			}
			out = append(out, p)
			continue
		}
		full, ok := cc.Workspace.Existing(p)
		if !ok {
			if workspace.FileExists(p) {
				full, _ = filepath.Abs(p)
				out = append(out, full)
				continue
			}
			return nil, &processor.FileNotFoundError{Path: p}
		}
		out = append(out, full)
	}
	return out, nil
}
