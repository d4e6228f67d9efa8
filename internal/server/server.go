// Package server exposes the pipeline engine and database browsing over
// an HTTP JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
	"github.com/leapstack-labs/sqlgraph/internal/state"
	"github.com/leapstack-labs/sqlgraph/internal/workspace"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"golang.org/x/sync/errgroup"
)

// Config holds configuration for the API server.
type Config struct {
	Gateway   adapter.Gateway
	Engine    *engine.Engine
	Workspace *workspace.Root
	// Store serves run history (optional)
	Store  state.Store
	Logger *slog.Logger

	Addr            string
	DefaultDatabase string
	Prefix          string
	Export          processor.ExportOptions
}

// Server is the HTTP API server.
type Server struct {
	gw        adapter.Gateway
	engine    *engine.Engine
	workspace *workspace.Root
	store     state.Store
	logger    *slog.Logger

	addr            string
	defaultDatabase string
	prefix          string
	export          processor.ExportOptions

	// runMu serializes graph runs against the shared gateway.
	runMu sync.Mutex
}

// New creates a server instance.
func New(cfg Config) (*Server, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("server requires a gateway")
	}
	if cfg.Engine == nil {
		return nil, errors.New("server requires an engine")
	}
	if cfg.Workspace == nil {
		return nil, errors.New("server requires a project root")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	db := cfg.DefaultDatabase
	if db == "" {
		db = processor.DefaultDatabase
	}
	return &Server{
		gw:              cfg.Gateway,
		engine:          cfg.Engine,
		workspace:       cfg.Workspace,
		store:           cfg.Store,
		logger:          logger,
		addr:            cfg.Addr,
		defaultDatabase: db,
		prefix:          cfg.Prefix,
		export:          cfg.Export,
	}, nil
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api", func(r chi.Router) {
		r.Get("/databases", s.handleDatabases)
		r.Get("/databases/{db}/tables", s.handleTables)
		r.Get("/databases/{db}/tables/details", s.handleTableDetails)
		r.Get("/databases/{db}/tables/{table}/columns", s.handleColumns)
		r.Get("/databases/{db}/tables/{table}/definition", s.handleTableDefinition)
		r.Post("/databases/{db}/drop", s.handleDropTables)

		r.Post("/query", s.handleQuery)
		r.Post("/import", s.handleImport)
		r.Post("/export", s.handleExport)
		r.Post("/cleanup", s.handleCleanup)
		r.Post("/run", s.handleRun)

		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRunDetail)

		r.Get("/files", s.handleListFiles)
		r.Get("/files/content", s.handleLoadFile)
		r.Put("/files/content", s.handleSaveFile)
	})
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("starting API server", "addr", ln.Addr().String())

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down API server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
