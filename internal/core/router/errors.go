package router

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mohammed-shakir/barrier-prioritizer/internal/filters"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/gazetteer"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/mapview"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/selection"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/session"
	"github.com/mohammed-shakir/barrier-prioritizer/internal/workflow"
)

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, gazetteer.ErrUnknownUnit),
		errors.Is(err, workflow.ErrClosed):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, workflow.ErrUnknownLayer),
		errors.Is(err, filters.ErrUnknownDimension),
		errors.Is(err, filters.ErrValueOutOfDomain),
		errors.Is(err, filters.ErrUnknownKind),
		errors.Is(err, mapview.ErrBadIntent):
		return http.StatusBadRequest
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrEmptySelection),
		errors.Is(err, workflow.ErrNoLayer),
		errors.Is(err, selection.ErrLayerMismatch):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}
