// Package mysqlcli provides a gateway that drives the external mysql
// command-line client in batch mode.
//
// Every call starts one client process. SQL is written to the process's
// standard input prefixed with a USE statement, the password travels in
// MYSQL_PWD, and results are read from the tab-separated batch output.
package mysqlcli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// DefaultClient is the client binary used when the config names none.
const DefaultClient = "mysql"

// Gateway implements adapter.Gateway by invoking the mysql client.
type Gateway struct {
	cfg    adapter.Config
	client string
	logger *slog.Logger
}

// New creates a new client-process gateway.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Gateway{logger: logger}
}

// Connect resolves the client binary. No process is started until the
// first statement runs.
func (g *Gateway) Connect(_ context.Context, cfg adapter.Config) error {
	client := cfg.Client
	if client == "" {
		client = DefaultClient
	}
	path, err := exec.LookPath(client)
	if err != nil {
		return fmt.Errorf("mysql client %q not found: %w", client, err)
	}

	g.cfg = cfg
	g.client = path
	g.logger.Debug("using mysql client", slog.String("path", path), slog.String("host", cfg.Host))
	return nil
}

// Close is a no-op; the gateway holds no long-lived process.
func (g *Gateway) Close() error {
	return nil
}

// Execute runs sqlStr through the client and parses the batch output.
func (g *Gateway) Execute(ctx context.Context, sqlStr, database string) (*adapter.Result, error) {
	script, database, err := g.script(sqlStr, database)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("exec sql", slog.String("database", database), slog.String("sql", truncate(sqlStr, 200)))

	cmd, err := g.command(ctx)
	if err != nil {
		return nil, err
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(script)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, queryError(sqlStr, stderr.String(), err)
	}
	return ParseBatch(&stdout)
}

// StreamTable pipes "SELECT * FROM table" through the client in --quick
// mode and converts each batch line to a CSV record as it arrives.
func (g *Gateway) StreamTable(ctx context.Context, table string, w io.Writer, database string) (int64, error) {
	quoted, err := adapter.QuoteTable(table)
	if err != nil {
		return 0, err
	}
	query := "SELECT * FROM " + quoted
	script, _, err := g.script(query, database)
	if err != nil {
		return 0, err
	}

	cmd, err := g.command(ctx, "--quick")
	if err != nil {
		return 0, err
	}
	var stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(script)
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("failed to open client output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start mysql client: %w", err)
	}

	count, convErr := batchToCSV(stdout, w)
	if convErr != nil {
		// Drain so the client is not blocked writing to a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()
	if waitErr != nil {
		return count, queryError(query, stderr.String(), waitErr)
	}
	if convErr != nil {
		return count, convErr
	}
	return count, nil
}

func (g *Gateway) script(sqlStr, database string) (string, string, error) {
	if database == "" {
		database = g.cfg.Database
	}
	if database == "" {
		return sqlStr, "", nil
	}
	if err := adapter.ValidateDatabase(database); err != nil {
		return "", "", err
	}
	return "USE `" + database + "`;\n" + sqlStr, database, nil
}

func (g *Gateway) command(ctx context.Context, extra ...string) (*exec.Cmd, error) {
	if g.client == "" {
		return nil, errors.New("database connection not established")
	}

	host := g.cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := g.cfg.Port
	if port == 0 {
		port = 3306
	}

	args := []string{"-h", host, "-P", strconv.Itoa(port)}
	if g.cfg.User != "" {
		args = append(args, "-u", g.cfg.User)
	}
	args = append(args, "-B")
	args = append(args, extra...)

	cmd := exec.CommandContext(ctx, g.client, args...)
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+g.cfg.Password)
	return cmd, nil
}

func queryError(sqlStr, stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	return &adapter.QueryError{SQL: sqlStr, Message: msg, Err: err}
}

// ParseBatch parses batch-mode output: a header line followed by one
// tab-separated line per row. In a single-column result an empty line is
// a row holding an empty string; otherwise blank lines are skipped. Short
// rows are padded with "NULL".
func ParseBatch(r io.Reader) (*adapter.Result, error) {
	br := bufio.NewReader(r)
	res := &adapter.Result{}

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			fields := splitBatchLine(line)
			switch {
			case res.Columns == nil:
				if line != "" {
					res.Columns = fields
				}
			case line == "" && len(res.Columns) > 1:
			default:
				for len(fields) < len(res.Columns) {
					fields = append(fields, "NULL")
				}
				res.Rows = append(res.Rows, fields)
			}
		}
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read client output: %w", err)
		}
	}
}

// batchToCSV converts batch output line by line and returns the number of
// data rows written (the header is not counted).
func batchToCSV(r io.Reader, w io.Writer) (int64, error) {
	br := bufio.NewReader(r)
	cw := csv.NewWriter(w)

	var count int64
	header := true
	columns := 0
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "" && (header || columns > 1):
			case line == "":
				// csv.Writer emits a lone empty field as a blank line, which
				// readers drop, so quote it.
				cw.Flush()
				if _, werr := io.WriteString(w, "\"\"\n"); werr != nil {
					return count, fmt.Errorf("failed to write csv: %w", werr)
				}
				count++
			default:
				fields := splitBatchLine(line)
				if werr := cw.Write(fields); werr != nil {
					return count, fmt.Errorf("failed to write csv: %w", werr)
				}
				if header {
					header = false
					columns = len(fields)
				} else {
					count++
				}
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read client output: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return count, fmt.Errorf("failed to flush csv: %w", err)
	}
	return count, nil
}

var batchUnescaper = strings.NewReplacer(`\\`, `\`, `\t`, "\t", `\n`, "\n", `\0`, "\x00")

func splitBatchLine(line string) []string {
	fields := strings.Split(line, "\t")
	for i, f := range fields {
		if strings.Contains(f, `\`) {
			fields[i] = batchUnescaper.Replace(f)
		}
	}
	return fields
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ adapter.Gateway = (*Gateway)(nil)
