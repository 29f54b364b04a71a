package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"tripweaver/internal/editor"
	"tripweaver/internal/sched"
	"tripweaver/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     "about:blank",
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}

// writeSchedError maps scheduling and session errors onto problem responses:
// validation failures are 422, conflicts and busy sessions 409, unknown
// resources 404.
func writeSchedError(w http.ResponseWriter, err error, instance string) {
	switch {
	case errors.Is(err, sched.ErrConflict):
		writeProblem(w, http.StatusConflict, "Schedule conflict", err.Error(), instance)
	case errors.Is(err, editor.ErrSessionBusy):
		writeProblem(w, http.StatusConflict, "Timeline busy", err.Error(), instance)
	case errors.Is(err, sched.ErrInvalidRange),
		errors.Is(err, sched.ErrInvalidPolicy),
		errors.Is(err, sched.ErrInvalidAnchor),
		errors.Is(err, sched.ErrSegmentSpan),
		errors.Is(err, editor.ErrEditInvalid):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid edit", err.Error(), instance)
	case errors.Is(err, editor.ErrSessionNotFound):
		writeProblem(w, http.StatusNotFound, "Session not found", err.Error(), instance)
	case errors.Is(err, store.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error(), instance)
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal error", err.Error(), instance)
	}
}
