package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/workpulse/pkg/logger"
)

// EventHello is the first event of an observer stream. Its data carries the
// observer id to use in clicks and pings.
const EventHello = "hello"

// ObserverHandler serves the observer registry and notification streams.
type ObserverHandler struct {
	deps      Dependencies
	keepAlive time.Duration
	logger    logger.Logger
}

// NewObserverHandler creates a new observer handler.
func NewObserverHandler(deps Dependencies, keepAlive time.Duration, l logger.Logger) *ObserverHandler {
	return &ObserverHandler{deps: deps, keepAlive: keepAlive, logger: l}
}

type observersResponse struct {
	Observers []string `json:"observers"`
	Count     int      `json:"count"`
}

// HelloEvent is the payload of the hello event.
type HelloEvent struct {
	ObserverID string `json:"observerId"`
}

// HandleList handles GET /v1/observers.
func (h *ObserverHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	ids := h.deps.Observers()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, observersResponse{Observers: ids, Count: len(ids)})
}

// HandlePing handles POST /v1/observers/{id}/ping.
func (h *ObserverHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	resp, err := h.deps.PingObserver(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, Wrap("api.HandlePing", err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleStream handles GET /v1/observers/stream. The connection becomes an
// observer for as long as it stays open; every notification is written as a
// Server-Sent Event named after its action.
func (h *ObserverHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	const op = "api.HandleStream"
	ctx := r.Context()

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	obs, err := h.deps.ConnectObserver(ctx, r.URL.Query().Get("url"))
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	defer h.deps.DisconnectObserver(ctx, obs)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, EventHello, HelloEvent{ObserverID: obs.ID()}); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Warn(ctx, "observer stream cannot flush", logger.Error(err))
		return
	}

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
		case n, ok := <-obs.Events():
			if !ok {
				return
			}
			if err := writeEvent(w, string(n.Action), n); err != nil {
				h.logger.Debug(ctx, "observer stream closed", logger.String("observer_id", obs.ID()), logger.Error(err))
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
