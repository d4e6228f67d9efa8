package export

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// DefaultPython is the interpreter used to run the upload script.
const DefaultPython = "python3"

// CommandRunner runs an external command and returns its combined
// stdout and stderr.
type CommandRunner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// CombinedOutput implements CommandRunner.
func (ExecRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ScriptError is returned when the upload script exits unsuccessfully.
// Output holds everything the script printed.
type ScriptError struct {
	Script string
	Output string
	Err    error
}

func (e *ScriptError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" && e.Err != nil {
		out = e.Err.Error()
	}
	return "sheet upload failed: " + out
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

// ExitCode returns the script's exit status, or -1 when it did not run.
func (e *ScriptError) ExitCode() int {
	var ee *exec.ExitError
	if errors.As(e.Err, &ee) {
		return ee.ExitCode()
	}
	return -1
}

// SheetOptions configure a spreadsheet upload.
type SheetOptions struct {
	Python        string
	Script        string
	Credentials   string
	SpreadsheetID string
	SheetName     string
	// TempDir holds the intermediate CSV; os.TempDir when empty.
	TempDir string
}

// ToSheet streams table to a temporary CSV and hands it to the upload
// script as
//
//	<python> <script> --csv <path> --creds <credentials> --id <spreadsheet> --sheet <name>
//
// The temporary CSV is removed whether or not the upload succeeds.
func ToSheet(ctx context.Context, gw adapter.Gateway, table, database string, opts SheetOptions, runner CommandRunner) (int64, error) {
	if opts.SpreadsheetID == "" || opts.SheetName == "" {
		return 0, errors.New("spreadsheet id and sheet name are required")
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	python := opts.Python
	if python == "" {
		python = DefaultPython
	}

	csvPath, n, err := toTemp(ctx, gw, table, database, opts.TempDir, "export_gs_*.csv")
	if err != nil {
		return n, err
	}
	defer func() { _ = os.Remove(csvPath) }()

	out, err := runner.CombinedOutput(ctx, python, opts.Script,
		"--csv", csvPath,
		"--creds", opts.Credentials,
		"--id", opts.SpreadsheetID,
		"--sheet", opts.SheetName,
	)
	if err != nil {
		return n, &ScriptError{Script: opts.Script, Output: string(out), Err: err}
	}
	return n, nil
}
