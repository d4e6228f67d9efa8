package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/spf13/cobra"
)

const (
	replPrompt     = "sqlgraph> "
	replContPrompt = "     ...> "
)

// lineReader is the part of *readline.Instance the REPL loop uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
}

func runQueryREPL(cmd *cobra.Command, cc *CommandContext, gw adapter.Gateway, opts *QueryOptions) error {
	ctx := cmd.Context()

	historyFile := ""
	if cc.Cfg.StatePath != "" && cc.Cfg.StatePath != ":memory:" {
		dir := filepath.Dir(cc.Cfg.StatePath)
		if err := os.MkdirAll(dir, 0750); err == nil {
			historyFile = filepath.Join(dir, "query_history")
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newTableCompleter(ctx, gw, cc.Cfg.DefaultDatabase),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlgraph query shell (database: %s)\n", cc.Cfg.DefaultDatabase)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	return replLoop(ctx, rl, cc, gw, opts)
}

func replLoop(ctx context.Context, rl lineReader, cc *CommandContext, gw adapter.Gateway, opts *QueryOptions) error {
	var buf strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buf.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := handleDotCommand(ctx, cc, gw, line); quit {
				return nil
			}
			continue
		}

		// Accumulate multi-line SQL until semicolon
		buf.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buf.WriteString(" ")
			rl.SetPrompt(replContPrompt)
			continue
		}
		rl.SetPrompt(replPrompt)

		sql := buf.String()
		buf.Reset()
		if err := executeQuery(ctx, cc, gw, sql, opts); err != nil {
			_, _ = fmt.Fprintf(cc.Renderer.ErrWriter(), "Error: %v\n", err)
		}
		cc.Renderer.Println()
	}
}

// handleDotCommand runs a shell command and reports whether to exit.
func handleDotCommand(ctx context.Context, cc *CommandContext, gw adapter.Gateway, line string) bool {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])
	errOut := cc.Renderer.ErrWriter()
	db := cc.Cfg.DefaultDatabase

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(cc.Renderer.Writer())

	case ".tables":
		if len(parts) > 1 {
			db = parts[1]
		}
		if err := showDirect(ctx, cc, gw, "SHOW TABLES", db); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".databases":
		if err := showDirect(ctx, cc, gw, "SHOW DATABASES", db); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".schema":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .schema <table>")
			return false
		}
		quoted, err := adapter.QuoteTable(parts[1])
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		if err := showDirect(ctx, cc, gw, "SHOW COLUMNS FROM "+quoted, db); err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}

	case ".cleanup":
		dropped, err := materialize.Cleanup(ctx, gw, cc.Logger, db, cc.Cfg.CachePrefix)
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
			return false
		}
		cc.Renderer.Printf("Dropped %d cache tables\n", len(dropped))

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func showDirect(ctx context.Context, cc *CommandContext, gw adapter.Gateway, sql, db string) error {
	res, err := gw.Execute(ctx, sql, db)
	if err != nil {
		return err
	}
	return cc.Renderer.Table(res.Columns, res.Rows)
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help            Show this help message
  .tables [db]     List tables in the default (or given) database
  .databases       List databases
  .schema <table>  Show the columns of a table
  .cleanup         Drop every cache table
  .quit / .exit    Exit the shell

Tips:
  - Statements must end with a semicolon (;)
  - SELECT results are materialized into a new cache table
  - Use arrow keys to navigate history
  - Tab completion works for table names
`
	_, _ = fmt.Fprintln(w, help)
}

// newTableCompleter completes dot-commands and table names.
func newTableCompleter(ctx context.Context, gw adapter.Gateway, db string) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".tables"),
		readline.PcItem(".databases"),
		readline.PcItem(".cleanup"),
		readline.PcItem(".quit"),
	}

	// Completion is a convenience; a failed listing leaves table names out.
	res, err := gw.Execute(ctx, "SHOW TABLES", db)
	if err != nil || len(res.Columns) == 0 {
		return readline.NewPrefixCompleter(append(items, readline.PcItem(".schema"))...)
	}
	var tables []readline.PrefixCompleterInterface
	for _, row := range res.Rows {
		if len(row) > 0 {
			tables = append(tables, readline.PcItem(row[0]))
		}
	}
	items = append(items, readline.PcItem(".schema", tables...))
	items = append(items, tables...)
	return readline.NewPrefixCompleter(items...)
}
