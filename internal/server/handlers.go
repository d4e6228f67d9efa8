package server

import (
	"bytes"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/sqlgraph/internal/engine"
	"github.com/leapstack-labs/sqlgraph/internal/export"
	"github.com/leapstack-labs/sqlgraph/internal/ingest"
	"github.com/leapstack-labs/sqlgraph/internal/loader"
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/internal/overrides"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
	"github.com/leapstack-labs/sqlgraph/internal/workspace"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
	"github.com/leapstack-labs/sqlgraph/pkg/core"
)

// systemSchemas are never listed as databases.
var systemSchemas = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// --- Database browsing ---

func (s *Server) handleDatabases(w http.ResponseWriter, r *http.Request) {
	res, err := s.gw.Execute(r.Context(),
		"SELECT schema_name AS db FROM information_schema.schemata ORDER BY schema_name", "information_schema")
	if err != nil {
		writeError(w, err)
		return
	}
	dbs := []string{}
	for _, row := range res.Rows {
		if len(row) > 0 && !systemSchemas[strings.ToLower(row[0])] {
			dbs = append(dbs, row[0])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"databases": dbs})
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	if err := adapter.ValidateDatabase(db); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.gw.Execute(r.Context(), "SHOW TABLES", db)
	if err != nil {
		writeError(w, err)
		return
	}
	tables := []string{}
	for _, row := range res.Rows {
		if len(row) > 0 {
			tables = append(tables, row[0])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"database": db, "tables": tables})
}

func (s *Server) handleColumns(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	table := chi.URLParam(r, "table")
	if err := adapter.ValidateDatabase(db); err != nil {
		writeError(w, err)
		return
	}
	cols, err := materialize.TableColumns(r.Context(), s.gw, table, db)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"database": db, "table": table, "columns": cols})
}

type tableDetail struct {
	Name    string `json:"name"`
	Created string `json:"created"`
	Updated string `json:"updated"`
	Rows    string `json:"rows"`
}

func (s *Server) handleTableDetails(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	if err := adapter.ValidateDatabase(db); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.gw.Execute(r.Context(),
		"SELECT TABLE_NAME, CREATE_TIME, UPDATE_TIME, TABLE_ROWS FROM information_schema.tables WHERE TABLE_SCHEMA = "+
			adapter.QuoteLiteral(db)+" ORDER BY TABLE_NAME", "information_schema")
	if err != nil {
		writeError(w, err)
		return
	}
	tables := make([]tableDetail, 0, res.Len())
	for i := range res.Rows {
		tables = append(tables, tableDetail{
			Name:    res.Value(i, "TABLE_NAME"),
			Created: res.Value(i, "CREATE_TIME"),
			Updated: res.Value(i, "UPDATE_TIME"),
			Rows:    res.Value(i, "TABLE_ROWS"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"database": db, "tables": tables})
}

func (s *Server) handleTableDefinition(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	table := chi.URLParam(r, "table")
	if err := adapter.ValidateDatabase(db); err != nil {
		writeError(w, err)
		return
	}
	quoted, err := adapter.QuoteTable(table)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.gw.Execute(r.Context(), "SHOW CREATE TABLE "+quoted, db)
	if err != nil {
		writeError(w, err)
		return
	}
	// Views answer with a "Create View" column instead of "Create Table".
	var def string
	if res.Len() > 0 {
		for j, col := range res.Columns {
			lc := strings.ToLower(col)
			if (lc == "create table" || lc == "create view") && j < len(res.Rows[0]) {
				def = res.Rows[0][j]
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"database": db, "table": table, "definition": def})
}

type dropRequest struct {
	Tables []string `json:"tables"`
}

func (s *Server) handleDropTables(w http.ResponseWriter, r *http.Request) {
	db := chi.URLParam(r, "db")
	if err := adapter.ValidateDatabase(db); err != nil {
		writeError(w, err)
		return
	}
	var req dropRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Tables) == 0 {
		badRequest(w, "tables is required")
		return
	}

	dropped, skipped := []string{}, []string{}
	for _, table := range req.Tables {
		quoted, err := adapter.QuoteTable(table)
		if err != nil {
			skipped = append(skipped, table)
			continue
		}
		if _, err := s.gw.Execute(r.Context(), "DROP TABLE IF EXISTS "+quoted, db); err != nil {
			writeError(w, err)
			return
		}
		s.logger.Info("dropped table", "database", db, "table", table)
		dropped = append(dropped, table)
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(dropped), "dropped": dropped, "skipped": skipped})
}

// --- Query, import, export, cleanup ---

type queryRequest struct {
	SQL         string `json:"sql"`
	IndexColumn string `json:"index_column"`
	Database    string `json:"database"`
	Limit       int    `json:"limit"`
}

type queryResponse struct {
	Table     string              `json:"table,omitempty"`
	Columns   []string            `json:"columns"`
	Rows      []map[string]string `json:"rows"`
	TotalRows int64               `json:"total_rows"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		badRequest(w, "sql is required")
		return
	}
	db := s.database(req.Database)
	if err := adapter.ValidateDatabase(db); err != nil {
		writeError(w, err)
		return
	}

	res, err := materialize.Query(r.Context(), s.gw, s.logger, req.SQL, materialize.QueryOptions{
		Database:     db,
		Prefix:       s.prefix,
		IndexColumn:  req.IndexColumn,
		PreviewLimit: req.Limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	rows := res.Preview.Maps()
	if rows == nil {
		rows = []map[string]string{}
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Table:     res.Table,
		Columns:   res.Preview.Columns,
		Rows:      rows,
		TotalRows: res.TotalRows,
	})
}

type importRequest struct {
	Paths       []string `json:"paths"`
	HasHeader   *bool    `json:"has_header"`
	IndexColumn string   `json:"index_column"`
	Database    string   `json:"database"`
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		badRequest(w, "paths is required")
		return
	}
	paths := make([]string, 0, len(req.Paths))
	for _, rel := range req.Paths {
		p, ok := s.workspace.Existing(rel)
		if !ok {
			writeError(w, &processor.FileNotFoundError{Path: rel})
			return
		}
		paths = append(paths, p)
	}
	db := s.database(req.Database)
	if err := adapter.ValidateDatabase(db); err != nil {
		writeError(w, err)
		return
	}

	hasHeader := req.HasHeader == nil || *req.HasHeader
	res, err := ingest.Import(r.Context(), s.gw, s.logger, paths, ingest.Options{
		HasHeader:   hasHeader,
		IndexColumn: req.IndexColumn,
		Database:    db,
		Prefix:      s.prefix,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type exportRequest struct {
	Table string `json:"table"`
	// Settings are DisplayNode settings: exportType, exportPath, exportName,
	// spreadsheetId, sheetName, credentialsPath, bucket, objectKey.
	Settings map[string]any `json:"settings"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Table == "" {
		badRequest(w, "table is required")
		return
	}
	if _, ok := req.Settings["exportType"]; !ok {
		if req.Settings == nil {
			req.Settings = map[string]any{}
		}
		req.Settings["exportType"] = string(export.KindStdout)
	}

	var buf bytes.Buffer
	rc := s.runContext()
	rc.Stdout = &buf
	if err := processor.ExportTable(r.Context(), rc, req.Table, req.Settings); err != nil {
		writeError(w, err)
		return
	}

	if kind, _ := req.Settings["exportType"].(string); kind == string(export.KindStdout) {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(req.Table)+".csv"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": req.Table, "exported": true})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	prefix := s.prefix
	if prefix == "" {
		prefix = materialize.DefaultPrefix
	}
	dropped, err := materialize.Cleanup(r.Context(), s.gw, s.logger, s.defaultDatabase, prefix)
	if err != nil {
		writeError(w, err)
		return
	}
	if dropped == nil {
		dropped = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(dropped), "dropped": dropped})
}

// --- Runs ---

type runRequest struct {
	Graph  map[string]any    `json:"graph"`
	Files  []string          `json:"files"`
	Tables []string          `json:"tables"`
	DBs    []string          `json:"dbs"`
	Vars   map[string]string `json:"vars"`
}

type nodeResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Label      string `json:"label"`
	Status     string `json:"status"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type runResponse struct {
	RunID      string            `json:"run_id"`
	Order      []string          `json:"order"`
	Nodes      []nodeResponse    `json:"nodes"`
	Outputs    map[string]string `json:"outputs"`
	Failed     int               `json:"failed"`
	DurationMS int64             `json:"duration_ms"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeBody(w, r, &req) {
		return
	}
	g, err := loader.FromDocument(req.Graph)
	if err != nil {
		writeError(w, err)
		return
	}

	s.runMu.Lock()
	defer s.runMu.Unlock()

	result, err := s.engine.Run(r.Context(), g, overrides.Overrides{
		Files:     req.Files,
		Tables:    req.Tables,
		Databases: req.DBs,
		Vars:      req.Vars,
	})
	if err != nil && result == nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunResponse(result))
}

func toRunResponse(res *engine.RunResult) runResponse {
	out := runResponse{
		RunID:      res.RunID,
		Order:      res.Order,
		Nodes:      make([]nodeResponse, 0, len(res.Nodes)),
		Outputs:    res.Outputs,
		Failed:     len(res.Failed()),
		DurationMS: res.Duration.Milliseconds(),
	}
	for _, n := range res.Nodes {
		nr := nodeResponse{
			ID:         n.NodeID,
			Type:       n.Type,
			Label:      n.Label,
			Status:     string(n.Status),
			Output:     n.Output,
			DurationMS: n.Duration.Milliseconds(),
		}
		if n.Err != nil {
			nr.Error = n.Err.Error()
		}
		out.Nodes = append(out.Nodes, nr)
	}
	return out
}

type runSummary struct {
	ID          string     `json:"id"`
	Graph       string     `json:"graph"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Nodes       int        `json:"nodes"`
	Failed      int        `json:"failed"`
}

func toRunSummary(r *core.Run) runSummary {
	return runSummary{
		ID:          r.ID,
		Graph:       r.Graph,
		Status:      string(r.Status),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
		Nodes:       r.Nodes,
		Failed:      r.Failed,
	}
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run history is disabled"})
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			badRequest(w, "invalid limit %q", v)
			return
		}
		limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunSummary(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "run history is disabled"})
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	nodes, err := s.store.ListNodeRuns(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]nodeResponse, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, nodeResponse{
			ID:         n.NodeID,
			Type:       n.Type,
			Label:      n.Label,
			Status:     string(n.Status),
			Output:     n.Output,
			Error:      n.Error,
			DurationMS: n.ExecutionMS,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": toRunSummary(run), "nodes": out})
}

// --- Files ---

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	entries, err := s.workspace.List(rel, workspace.DataExtensions)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []workspace.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": strings.Trim(rel, "/"), "items": entries})
}

func (s *Server) handleLoadFile(w http.ResponseWriter, r *http.Request) {
	rel := r.URL.Query().Get("path")
	if rel == "" {
		badRequest(w, "path is required")
		return
	}
	if !workspace.IsDataFile(rel) {
		badRequest(w, "unsupported file type: %s", rel)
		return
	}
	data, err := s.workspace.ReadFile(rel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": rel, "content": string(data)})
}

type saveFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleSaveFile(w http.ResponseWriter, r *http.Request) {
	var req saveFileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		badRequest(w, "path is required")
		return
	}
	if !workspace.IsDataFile(req.Path) {
		badRequest(w, "unsupported file type: %s", req.Path)
		return
	}
	if err := s.workspace.WriteFile(req.Path, []byte(req.Content)); err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("file saved", "path", req.Path, "bytes", len(req.Content))
	writeJSON(w, http.StatusOK, map[string]any{"path": req.Path, "success": true})
}

// --- helpers ---

func (s *Server) database(db string) string {
	if db == "" {
		return s.defaultDatabase
	}
	return db
}

func (s *Server) runContext() *processor.RunContext {
	return &processor.RunContext{
		Gateway:         s.gw,
		Outputs:         core.RuntimeOutput{},
		Logger:          s.logger,
		Workspace:       s.workspace,
		DefaultDatabase: s.defaultDatabase,
		Prefix:          s.prefix,
		Export:          s.export,
	}
}
