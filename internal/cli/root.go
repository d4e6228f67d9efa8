// Package cli provides the command-line interface for sqlgraph.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/leapstack-labs/sqlgraph/internal/cli/commands"
	"github.com/leapstack-labs/sqlgraph/internal/cli/output"
	"github.com/leapstack-labs/sqlgraph/internal/config"
	"github.com/leapstack-labs/sqlgraph/internal/overrides"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Options customise the root command.
type Options struct {
	// OpenGateway replaces adapter.Open, e.g. with a fake in tests.
	OpenGateway commands.GatewayOpener
	// Vars are --var-<name>=<value> arguments already split from the
	// command line.
	Vars map[string]string

	// Stdin, Stdout and Stderr replace the process streams when set.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewRootCmd creates and returns the root command.
func NewRootCmd(opts Options) *cobra.Command {
	var (
		cfgFile string
		logFile io.Closer
	)

	rootCmd := &cobra.Command{
		Use:   "sqlgraph",
		Short: "sqlgraph - ETL pipeline graph runner",
		Long: `sqlgraph executes ETL workflows described as graphs of typed nodes:
table references, file imports, SQL transforms, joins and export sinks.

Intermediate results are materialized as cache tables in the target
database. Per-run overrides (--file, --table, --db, --var-<name>) are
substituted into the graph without editing it.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" || cmd.Name() == "version" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			outFlag, _ := cmd.Flags().GetString("output")
			mode, err := output.ParseMode(outFlag)
			if err != nil {
				return err
			}

			logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			logFile = closer

			if cfg.ConfigFile != "" {
				logger.Debug("using config file", "path", cfg.ConfigFile)
			}

			env := &commands.Env{
				Cfg:         cfg,
				Logger:      logger,
				Vars:        opts.Vars,
				Output:      mode,
				OpenGateway: opts.OpenGateway,
			}
			cmd.SetContext(commands.WithEnv(cmd.Context(), env))
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if logFile != nil {
				err := logFile.Close()
				logFile = nil
				return err
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
` + fmt.Sprintf("commit %s, built %s\n", GitCommit, BuildDate))

	// Global persistent flags
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./sqlgraph.yaml, searched upward)")
	pf.String("project-root", "", "Project directory that relative file paths resolve against")
	pf.String("database", "", "Default database for cache tables and unqualified table names")
	pf.String("prefix", "", "Cache table name prefix")
	pf.String("target", "", "Gateway type ("+strings.Join(adapter.ListGateways(), "|")+")")
	pf.String("state", "", "Path to the run history database")
	pf.String("log-file", "", "Also append log lines to this file")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.BoolP("verbose", "v", false, "Verbose output (debug logging)")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json|csv)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", "text", "markdown", "json", "csv"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("target", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return adapter.ListGateways(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})

	// Add subcommands
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewPlanCommand())
	rootCmd.AddCommand(commands.NewImportCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewCleanupCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewConfigCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command with args, cancelling on SIGINT or SIGTERM.
func Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ExecuteContext(ctx, args, Options{}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// ExecuteContext splits --var-<name>=<value> arguments out of args, since
// their names are open-ended, and runs the rest through cobra.
func ExecuteContext(ctx context.Context, args []string, opts Options) error {
	vars, rest, err := overrides.SplitVarArgs(args)
	if err != nil {
		return err
	}
	if opts.Vars == nil {
		opts.Vars = vars
	} else {
		for k, v := range vars {
			opts.Vars[k] = v
		}
	}

	rootCmd := NewRootCmd(opts)
	rootCmd.SetArgs(rest)
	if opts.Stdin != nil {
		rootCmd.SetIn(opts.Stdin)
	}
	if opts.Stdout != nil {
		rootCmd.SetOut(opts.Stdout)
	}
	if opts.Stderr != nil {
		rootCmd.SetErr(opts.Stderr)
	}
	err = rootCmd.ExecuteContext(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newLogger builds the text logger on stderr, teed into the log file when
// one is configured. The returned closer is nil without a log file.
func newLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	w := stderr
	var closer io.Closer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(stderr, f)
		closer = f
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()})
	return slog.New(handler), closer, nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sqlgraph.

To load completions:

Bash:
  $ source <(sqlgraph completion bash)

Zsh:
  $ sqlgraph completion zsh > "${fpath[1]}/_sqlgraph"

Fish:
  $ sqlgraph completion fish | source

PowerShell:
  PS> sqlgraph completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
