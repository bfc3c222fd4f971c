// Package types contains the message protocol exchanged between observers
// and the coordinator.
package types

import (
	"encoding/json"
	"fmt"

	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/schedule"
)

// Action names a protocol message.
type Action string

// Observer to coordinator actions.
const (
	ActionClickDetected      Action = "clickDetected"
	ActionScheduleUpdated    Action = "scheduleUpdated"
	ActionGetTrackingStatus  Action = "getTrackingStatus"
	ActionForceStartTracking Action = "forceStartTracking"
)

// Coordinator to observer actions.
const (
	ActionStartTracking Action = "startTracking"
	ActionStopTracking  Action = "stopTracking"
	ActionStatsUpdated  Action = "statsUpdated"
	ActionPing          Action = "ping"
)

// Request is one of the observer to coordinator messages. The set is closed.
type Request interface {
	Action() Action
	isRequest()
}

// ClickDetected reports one forwarded interaction.
type ClickDetected struct {
	Kind       string `json:"kind,omitempty"`
	EventID    string `json:"eventId,omitempty"`
	ObserverID string `json:"observerId,omitempty"`
}

// ScheduleUpdated replaces the schedule wholesale.
type ScheduleUpdated struct {
	Schedule *schedule.Schedule `json:"schedule"`
}

// GetTrackingStatus asks for the current tracking flag and schedule.
type GetTrackingStatus struct{}

// ForceStartTracking starts a session regardless of the schedule.
type ForceStartTracking struct{}

func (ClickDetected) Action() Action      { return ActionClickDetected }
func (ScheduleUpdated) Action() Action    { return ActionScheduleUpdated }
func (GetTrackingStatus) Action() Action  { return ActionGetTrackingStatus }
func (ForceStartTracking) Action() Action { return ActionForceStartTracking }

func (ClickDetected) isRequest()      {}
func (ScheduleUpdated) isRequest()    {}
func (GetTrackingStatus) isRequest()  {}
func (ForceStartTracking) isRequest() {}

// envelope is the wire form: {"action": "...", ...payload fields}.
type envelope struct {
	Action     Action             `json:"action"`
	Kind       string             `json:"kind,omitempty"`
	EventID    string             `json:"eventId,omitempty"`
	ObserverID string             `json:"observerId,omitempty"`
	Schedule   *schedule.Schedule `json:"schedule,omitempty"`
}

// DecodeRequest parses and validates a wire message.
func DecodeRequest(b []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	switch env.Action {
	case ActionClickDetected:
		return ClickDetected{Kind: env.Kind, EventID: env.EventID, ObserverID: env.ObserverID}, nil
	case ActionScheduleUpdated:
		if env.Schedule == nil {
			return nil, fmt.Errorf("%w: schedule", ErrMissingPayload)
		}
		return ScheduleUpdated{Schedule: env.Schedule}, nil
	case ActionGetTrackingStatus:
		return GetTrackingStatus{}, nil
	case ActionForceStartTracking:
		return ForceStartTracking{}, nil
	case "":
		return nil, fmt.Errorf("%w: action is required", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Action)
	}
}

// EncodeRequest renders r in the wire form.
func EncodeRequest(r Request) ([]byte, error) {
	env := envelope{Action: r.Action()}
	switch v := r.(type) {
	case ClickDetected:
		env.Kind, env.EventID, env.ObserverID = v.Kind, v.EventID, v.ObserverID
	case ScheduleUpdated:
		env.Schedule = v.Schedule
	}
	return json.Marshal(env)
}

// ClickResult answers clickDetected.
type ClickResult struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// Suppression reasons.
const (
	ReasonNotTracking  = "not tracking"
	ReasonDuplicate    = "duplicate"
	ReasonBackpressure = "backpressure"
	ReasonInvalidKind  = "invalid kind"
)

// ScheduleAck answers scheduleUpdated.
type ScheduleAck struct {
	Acknowledged bool `json:"acknowledged"`
}

// TrackingStatus answers getTrackingStatus and forceStartTracking.
type TrackingStatus struct {
	IsTracking       bool               `json:"isTracking"`
	Schedule         *schedule.Schedule `json:"schedule"`
	SessionStartedAt *string            `json:"sessionStartedAt,omitempty"`
}

// Notification is a coordinator to observer message.
type Notification struct {
	Action Action          `json:"action"`
	Stats  *model.Snapshot `json:"stats,omitempty"`
}

// ObserverAck is an observer's answer to startTracking and stopTracking.
type ObserverAck struct {
	Success  bool `json:"success"`
	Tracking bool `json:"tracking"`
}

// PingResponse is an observer's answer to ping.
type PingResponse struct {
	Status     string `json:"status"`
	Tracking   bool   `json:"tracking"`
	URL        string `json:"url,omitempty"`
	ClickCount int    `json:"clickCount"`
}

// DeliveryReport summarises one broadcast. Callers may ignore it.
type DeliveryReport struct {
	Action    Action `json:"action"`
	Attempted int    `json:"attempted"`
	Delivered int    `json:"delivered"`
	Failed    int    `json:"failed"`
}

// Merge adds other's counts to r.
func (r DeliveryReport) Merge(other DeliveryReport) DeliveryReport {
	r.Attempted += other.Attempted
	r.Delivered += other.Delivered
	r.Failed += other.Failed
	if r.Action == "" {
		r.Action = other.Action
	}
	return r
}
