package processor

import (
	"context"
	"path"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/export"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// DisplayProcessor exports its first available input.
type DisplayProcessor struct{}

type displayConfig struct {
	ExportType      string `mapstructure:"exportType"`
	ExportPath      string `mapstructure:"exportPath"`
	ExportName      string `mapstructure:"exportName"`
	SpreadsheetID   string `mapstructure:"spreadsheetId"`
	SheetName       string `mapstructure:"sheetName"`
	CredentialsPath string `mapstructure:"credentialsPath"`
	Bucket          string `mapstructure:"bucket"`
	ObjectKey       string `mapstructure:"objectKey"`
}

func (c displayConfig) name() string {
	if c.ExportName == "" {
		return export.DefaultName
	}
	return c.ExportName
}

// Process streams the source table to the destination named by
// exportType. It records no output.
func (DisplayProcessor) Process(ctx context.Context, node core.Node, conns []core.Connection, rc *RunContext) error {
	var cfg displayConfig
	if err := decodeConfig(node, &cfg); err != nil {
		return err
	}
	logger := rc.logger()

	src, ok := firstInput(node.ID, conns, rc.outputs())
	if !ok {
		logger.Info("no source table, skipping", "node", node.ID)
		return nil
	}
	kind, err := export.ParseKind(cfg.ExportType)
	if err != nil {
		return err
	}

	db, _ := adapter.SplitQualified(src)
	if db == "" {
		db = rc.database()
	}

	switch kind {
	case export.KindStdout:
		logger.Info("exporting to stdout", "table", src)
		_, err := export.ToWriter(ctx, rc.Gateway, src, db, rc.stdout())
		return err

	case export.KindGoogleSheet:
		return exportSheet(ctx, rc, cfg, src, db)

	case export.KindS3:
		return exportS3(ctx, rc, cfg, src, db)
	}

	if cfg.ExportPath == "" {
		logger.Warn("no export path, skipping", "node", node.ID)
		return nil
	}
	if rc.Workspace == nil {
		return errNoWorkspace
	}
	dest, err := rc.Workspace.Join(path.Join(strings.Trim(cfg.ExportPath, "/"), cfg.name()))
	if err != nil {
		return err
	}
	logger.Info("exporting to file", "table", src, "path", dest)
	n, err := export.ToFile(ctx, rc.Gateway, src, db, dest)
	if err != nil {
		return err
	}
	logger.Info("export complete", "path", dest, "rows", n)
	return nil
}

func exportSheet(ctx context.Context, rc *RunContext, cfg displayConfig, src, db string) error {
	logger := rc.logger()
	if cfg.SpreadsheetID == "" || cfg.SheetName == "" {
		logger.Warn("missing spreadsheet id or sheet name, skipping")
		return nil
	}
	if rc.Workspace == nil {
		return errNoWorkspace
	}

	creds := cfg.CredentialsPath
	if creds == "" {
		creds = rc.Export.CredentialsPath
	}
	if creds == "" {
		creds = DefaultCredentialsPath
	}
	credsPath, ok := rc.Workspace.Existing(creds)
	if !ok {
		return &FileNotFoundError{Path: creds}
	}

	script := rc.Export.SheetScript
	if script == "" {
		script = DefaultSheetScript
	}
	scriptPath, err := rc.Workspace.Join(script)
	if err != nil {
		return err
	}

	logger.Info("uploading to google sheet", "table", src, "spreadsheet", cfg.SpreadsheetID, "sheet", cfg.SheetName)
	n, err := export.ToSheet(ctx, rc.Gateway, src, db, export.SheetOptions{
		Python:        rc.Export.Python,
		Script:        scriptPath,
		Credentials:   credsPath,
		SpreadsheetID: cfg.SpreadsheetID,
		SheetName:     cfg.SheetName,
		TempDir:       rc.Export.TempDir,
	}, rc.Export.Runner)
	if err != nil {
		return err
	}
	logger.Info("upload complete", "rows", n)
	return nil
}

func exportS3(ctx context.Context, rc *RunContext, cfg displayConfig, src, db string) error {
	logger := rc.logger()
	if cfg.Bucket == "" {
		logger.Warn("no s3 bucket, skipping")
		return nil
	}

	up := rc.Export.S3
	if up == nil {
		client, err := export.NewS3Client(ctx, rc.Export.S3Region, rc.Export.S3Endpoint)
		if err != nil {
			return err
		}
		up = client
		rc.Export.S3 = client
	}

	key := cfg.ObjectKey
	if key == "" {
		key = cfg.name()
	}
	logger.Info("uploading to s3", "table", src, "bucket", cfg.Bucket, "key", key)
	n, err := export.ToS3(ctx, rc.Gateway, src, db, up, export.S3Options{
		Bucket:  cfg.Bucket,
		Key:     key,
		TempDir: rc.Export.TempDir,
	})
	if err != nil {
		return err
	}
	logger.Info("upload complete", "rows", n)
	return nil
}

const exportSourceID = "source"

// ExportTable exports table the way a DisplayNode configured with
// settings would.
func ExportTable(ctx context.Context, rc *RunContext, table string, settings map[string]any) error {
	if err := adapter.ValidateTable(table); err != nil {
		return err
	}
	rc.outputs().Set(exportSourceID, table)
	node := core.Node{ID: "export", Type: core.NodeTypeDisplay, Config: settings}
	conns := []core.Connection{{From: exportSourceID, To: node.ID}}
	return DisplayProcessor{}.Process(ctx, node, conns, rc)
}
