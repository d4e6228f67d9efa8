package processor

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/leapstack-labs/sqlgraph/internal/export"
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/internal/overrides"
	"github.com/leapstack-labs/sqlgraph/internal/workspace"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// Defaults used when RunContext leaves a value empty.
const (
	DefaultDatabase        = "mngtools"
	DefaultSheetScript     = "db/upload_to_sheet.py"
	DefaultCredentialsPath = "config/service_account.json"
)

// ExportOptions configure the DisplayNode destinations.
type ExportOptions struct {
	// Python runs the sheet upload script.
	Python string
	// SheetScript is the upload script, relative to the project root.
	SheetScript string
	// CredentialsPath is the credentials file used when a node names none.
	CredentialsPath string
	// Runner runs the upload script; export.ExecRunner when nil.
	Runner export.CommandRunner

	// S3 uploads objects. When nil, a client is built from S3Region and
	// S3Endpoint on first use.
	S3         export.Uploader
	S3Region   string
	S3Endpoint string

	// TempDir holds intermediate CSV files.
	TempDir string
}

// RunContext is the run-scoped state shared by every processor of a run.
type RunContext struct {
	Gateway   adapter.Gateway
	Resolver  *overrides.Resolver
	Outputs   core.RuntimeOutput
	Logger    *slog.Logger
	Workspace *workspace.Root
	Stdout    io.Writer

	// DefaultDatabase is the schema used for TableNodes without one and
	// for every table a run creates.
	DefaultDatabase string
	// Prefix names the cache tables a run creates.
	Prefix string

	Export ExportOptions
}

var errNoWorkspace = errors.New("no project root configured")

func (rc *RunContext) logger() *slog.Logger {
	if rc.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return rc.Logger
}

func (rc *RunContext) database() string {
	if rc.DefaultDatabase == "" {
		return DefaultDatabase
	}
	return rc.DefaultDatabase
}

func (rc *RunContext) prefix() string {
	if rc.Prefix == "" {
		return materialize.DefaultPrefix
	}
	return rc.Prefix
}

func (rc *RunContext) stdout() io.Writer {
	if rc.Stdout == nil {
		return os.Stdout
	}
	return rc.Stdout
}

func (rc *RunContext) resolver() *overrides.Resolver {
	if rc.Resolver == nil {
		rc.Resolver = overrides.NewResolver(overrides.Overrides{})
	}
	return rc.Resolver
}

func (rc *RunContext) outputs() core.RuntimeOutput {
	if rc.Outputs == nil {
		rc.Outputs = core.RuntimeOutput{}
	}
	return rc.Outputs
}
