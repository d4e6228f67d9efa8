package processor

import (
	"context"
	"errors"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/idgen"
	"github.com/leapstack-labs/sqlgraph/internal/ingest"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// FileProcessor loads delimited files into a fresh all-TEXT table.
type FileProcessor struct{}

type fileConfig struct {
	SelectedFiles []string `mapstructure:"selectedFiles"`
	SelectedFile  string   `mapstructure:"selectedFile"`
	CurrentPath   string   `mapstructure:"currentPath"`
	HasHeader     *bool    `mapstructure:"hasHeader"`
}

func (c fileConfig) hasHeader() bool {
	return c.HasHeader == nil || *c.HasHeader
}

// Process takes its files from the next file override (a comma-joined
// list, consumed once) or from the node configuration, then loads them
// into <prefix>cli_file_<id>.
func (FileProcessor) Process(ctx context.Context, node core.Node, _ []core.Connection, rc *RunContext) error {
	var cfg fileConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	if rc.Workspace == nil {
		return errNoWorkspace
	}
	logger := rc.logger()
	res := rc.resolver()

	var entries []string
	override, overridden := res.NextFile()
	switch {
	case overridden:
		logger.Info("using file override", "index", res.FileCursor(), "files", override)
		res.AdvanceFile()
		entries = splitFileList(override)
	case len(cfg.SelectedFiles) > 0:
		entries = splitFileList(strings.Join(cfg.SelectedFiles, ","))
	default:
		entries = splitFileList(cfg.SelectedFile)
	}
	if len(entries) == 0 {
		logger.Info("no file selected, skipping", "node", node.ID)
		return nil
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		var p string
		var err error
		if overridden {
			p, err = resolveOverridePath(rc.Workspace, e)
		} else {
			p, err = resolveNodePath(rc.Workspace, e, cfg.CurrentPath)
		}
		if err != nil {
			return err
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return errors.New("no valid files found")
	}

	name, err := idgen.TableName(rc.prefix() + "cli_file_")
	if err != nil {
		return err
	}
	db := rc.database()
	ref := adapter.Qualify(db, name)

	load, err := ingest.LoadText(ctx, rc.Gateway, logger, ref, paths, cfg.hasHeader(), db)
	if err != nil {
		return err
	}

	rc.outputs().Set(node.ID, ref)
	logger.Info("files imported", "files", strings.Join(entries, ", "), "rows", load.Rows, "table", ref)
	return nil
}
