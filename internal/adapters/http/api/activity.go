package api

import (
	"net/http"
	"strconv"
)

// ActivityHandler serves the daily and weekly stats.
type ActivityHandler struct {
	deps Dependencies
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(deps Dependencies) *ActivityHandler {
	return &ActivityHandler{deps: deps}
}

// HandleSnapshot handles GET /v1/stats.
func (h *ActivityHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.HandleSnapshot", err))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleSummary handles GET /v1/stats/summary.
func (h *ActivityHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.deps.Summary(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.HandleSummary", err))
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleReset handles DELETE /v1/stats.
func (h *ActivityHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.ResetStats(r.Context()); err != nil {
		writeFailure(w, Wrap("api.HandleReset", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type cleanupResponse struct {
	Removed int `json:"removed"`
}

// HandleCleanup handles POST /v1/stats/cleanup. The optional retentionDays
// query parameter overrides the configured retention.
func (h *ActivityHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	const op = "api.HandleCleanup"

	var (
		removed int
		err     error
	)
	if raw := r.URL.Query().Get("retentionDays"); raw != "" {
		days, convErr := strconv.Atoi(raw)
		if convErr != nil {
			writeFailure(w, WrapKind(op, ErrBadRequest, convErr))
			return
		}
		removed, err = h.deps.CleanupWithRetention(r.Context(), days)
	} else {
		removed, err = h.deps.Cleanup(r.Context())
	}
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{Removed: removed})
}
