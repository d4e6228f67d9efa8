package commands

import (
	"github.com/leapstack-labs/sqlgraph/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Addr      string
	NoHistory bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve the JSON API used by the graph editor: database browsing, queries,
imports, exports, cache cleanup, graph runs, run history and project
files. Runs are executed one at a time.`,
		Example: `  sqlgraph serve
  sqlgraph serve --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Do not record runs or serve run history")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
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

	scfg := server.Config{
		Gateway:         gw,
		Workspace:       cc.Workspace,
		Logger:          cc.Logger,
		Addr:            cc.Cfg.Server.Addr,
		DefaultDatabase: cc.Cfg.DefaultDatabase,
		Prefix:          cc.Cfg.CachePrefix,
		Export:          cc.ExportOptions(),
	}
	if opts.Addr != "" {
		scfg.Addr = opts.Addr
	}

	if opts.NoHistory {
		scfg.Engine, err = cc.NewEngine(gw, nil, cmd.OutOrStdout())
	} else {
		store, serr := cc.OpenStore()
		if serr != nil {
			return serr
		}
		defer func() { _ = store.Close() }()
		scfg.Store = store
		scfg.Engine, err = cc.NewEngine(gw, store, cmd.OutOrStdout())
	}
	if err != nil {
		return err
	}

	srv, err := server.New(scfg)
	if err != nil {
		return err
	}
	cc.Renderer.Notice("Serving on http://%s (Ctrl+C to stop)", scfg.Addr)
	return srv.Serve(ctx)
}
