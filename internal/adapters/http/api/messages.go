package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/workpulse/internal/domain/schedule"
	"github.com/okian/workpulse/internal/domain/types"
)

const maxBodyBytes = 1 << 16

// MessageHandler serves the observer to coordinator protocol.
type MessageHandler struct {
	deps Dependencies
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(deps Dependencies) *MessageHandler {
	return &MessageHandler{deps: deps}
}

// HandleMessage handles POST /v1/messages with any request action.
func (h *MessageHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	const op = "api.HandleMessage"

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := types.DecodeRequest(body)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	if su, ok := req.(types.ScheduleUpdated); ok {
		if err := su.Schedule.Validate(); err != nil {
			writeFailure(w, Wrap(op, err))
			return
		}
	}

	resp, err := h.deps.Handle(r.Context(), req)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type clickRequest struct {
	Kind       string `json:"kind,omitempty"`
	EventID    string `json:"eventId,omitempty"`
	ObserverID string `json:"observerId,omitempty"`
}

// HandleClick handles POST /v1/clicks. Accepted clicks answer 202, clicks
// refused for backpressure 429, unknown kinds 400 and other suppressions 200.
func (h *MessageHandler) HandleClick(w http.ResponseWriter, r *http.Request) {
	const op = "api.HandleClick"

	var req clickRequest
	if err := decodeBody(r, &req); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res := h.deps.Click(r.Context(), types.ClickDetected(req))
	switch {
	case res.Accepted:
		writeJSON(w, http.StatusAccepted, res)
	case res.Reason == types.ReasonBackpressure:
		writeJSON(w, http.StatusTooManyRequests, res)
	case res.Reason == types.ReasonInvalidKind:
		writeJSON(w, http.StatusBadRequest, res)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// HandleSchedule handles PUT /v1/schedule with a bare schedule body.
func (h *MessageHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	const op = "api.HandleSchedule"

	var s schedule.Schedule
	if err := decodeBody(r, &s); err != nil {
		writeFailure(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := s.Validate(); err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	ack, err := h.deps.UpdateSchedule(r.Context(), &s)
	if err != nil {
		writeFailure(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

// HandleStatus handles GET /v1/status.
func (h *MessageHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.TrackingStatus(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.HandleStatus", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleForceStart handles POST /v1/tracking/force-start.
func (h *MessageHandler) HandleForceStart(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.ForceStart(r.Context())
	if err != nil {
		writeFailure(w, Wrap("api.HandleForceStart", err))
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}
