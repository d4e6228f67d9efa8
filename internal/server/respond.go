package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/leapstack-labs/sqlgraph/internal/dag"
	"github.com/leapstack-labs/sqlgraph/internal/export"
	"github.com/leapstack-labs/sqlgraph/internal/loader"
	"github.com/leapstack-labs/sqlgraph/internal/materialize"
	"github.com/leapstack-labs/sqlgraph/internal/processor"
	"github.com/leapstack-labs/sqlgraph/internal/state"
	"github.com/leapstack-labs/sqlgraph/internal/workspace"
	"github.com/leapstack-labs/sqlgraph/pkg/adapter"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// statusFor maps known error types onto HTTP status codes. Anything else
// is a server-side failure.
func statusFor(err error) int {
	var (
		invalid    *adapter.InvalidIdentifierError
		notAllowed *materialize.StatementNotAllowedError
		validation *loader.ValidationError
		cycle      *dag.CycleError
		unknown    *export.UnknownKindError
		notFound   *processor.FileNotFoundError
	)
	switch {
	case errors.As(err, &invalid), errors.As(err, &notAllowed), errors.As(err, &validation),
		errors.As(err, &cycle), errors.As(err, &unknown), errors.Is(err, workspace.ErrOutsideRoot):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, fs.ErrNotExist), errors.Is(err, state.ErrRunNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		badRequest(w, "invalid request body: %v", err)
		return false
	}
	return true
}
