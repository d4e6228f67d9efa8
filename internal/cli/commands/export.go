package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/sqlgraph/internal/export"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
	"github.com/spf13/cobra"
)

// ExportOptions holds options for the export command.
type ExportOptions struct {
	Type          string
	Path          string
	Name          string
	SpreadsheetID string
	SheetName     string
	Credentials   string
	Bucket        string
	Key           string
}

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	opts := &ExportOptions{}

	kinds := make([]string, 0, len(export.Kinds))
	for _, k := range export.Kinds {
		kinds = append(kinds, string(k))
	}

	cmd := &cobra.Command{
		Use:   "export <table>",
		Short: "Export a table to a file, stdout, a spreadsheet or S3",
		Long: `Write the content of a table as CSV to one of the destinations a
DisplayNode supports: ` + strings.Join(kinds, ", ") + `.`,
		Example: `  # Print a table as CSV
  sqlgraph export mngtools.orders

  # Write it to a directory in the project
  sqlgraph export orders --type=file --path=out --name=orders.csv

  # Upload to a Google Sheet
  sqlgraph export orders --type=google_sheet --spreadsheet-id=1AbC --sheet=Orders

  # Upload to S3
  sqlgraph export orders --type=s3 --bucket=reports --key=daily/orders.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", string(export.KindStdout), "Destination: "+strings.Join(kinds, ", "))
	cmd.Flags().StringVar(&opts.Path, "path", "", "Directory for file exports, relative to the project root")
	cmd.Flags().StringVar(&opts.Name, "name", "", "File name for file and S3 exports (default "+export.DefaultName+")")
	cmd.Flags().StringVar(&opts.SpreadsheetID, "spreadsheet-id", "", "Target spreadsheet id")
	cmd.Flags().StringVar(&opts.SheetName, "sheet", "", "Target sheet name")
	cmd.Flags().StringVar(&opts.Credentials, "credentials", "", "Service account credentials file")
	cmd.Flags().StringVar(&opts.Bucket, "bucket", "", "S3 bucket")
	cmd.Flags().StringVar(&opts.Key, "key", "", "S3 object key")

	return cmd
}

func (o *ExportOptions) settings() map[string]any {
	s := map[string]any{"exportType": o.Type}
	set := func(key, value string) {
		if value != "" {
			s[key] = value
		}
	}
	set("exportPath", o.Path)
	set("exportName", o.Name)
	set("spreadsheetId", o.SpreadsheetID)
	set("sheetName", o.SheetName)
	set("credentialsPath", o.Credentials)
	set("bucket", o.Bucket)
	set("objectKey", o.Key)
	return s
}

func runExport(cmd *cobra.Command, table string, opts *ExportOptions) error {
	kind, err := export.ParseKind(opts.Type)
	if err != nil {
		return err
	}
	if kind == export.KindFile && opts.Path == "" {
		return fmt.Errorf("--path is required for file exports")
	}

	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	gw, err := cc.OpenGateway(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = gw.Close() }()

	rc := cc.RunContext(gw, cmd.OutOrStdout())
	if err := processor.ExportTable(ctx, rc, table, opts.settings()); err != nil {
		return err
	}
	if kind != export.KindStdout {
		cc.Renderer.Notice("Exported %s to %s", table, kind)
	}
	return nil
}
