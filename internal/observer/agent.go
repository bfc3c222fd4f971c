// Package observer is the observer-side agent: it filters raw interactions
// through a throttle gate while the coordinator says tracking is on, and
// forwards the survivors as clickDetected messages.
package observer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/okian/workpulse/internal/domain/throttle"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
)

// Sender carries observer requests to the coordinator.
type Sender interface {
	SendClick(ctx context.Context, req types.ClickDetected) (types.ClickResult, error)
	TrackingStatus(ctx context.Context) (types.TrackingStatus, error)
}

// Interaction is one raw input event.
type Interaction struct {
	// Type is click, mousedown, keydown, scroll or mousemove.
	Type string
	// Key is the key value of a keydown.
	Key string
	// At is when it happened; zero means now.
	At time.Time
}

// Outcome is what Interact did with an interaction.
type Outcome int

// Outcomes.
const (
	Ignored Outcome = iota
	Throttled
	Sampled
	Accepted
	Suppressed
	Failed
)

// String returns a label for reports.
func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Throttled:
		return "throttled"
	case Sampled:
		return "sampled"
	case Accepted:
		return "accepted"
	case Suppressed:
		return "suppressed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Counts tallies interactions by outcome.
type Counts struct {
	Raw        int `json:"raw"`
	Ignored    int `json:"ignored"`
	Throttled  int `json:"throttled"`
	Sampled    int `json:"sampled"`
	Forwarded  int `json:"forwarded"`
	Accepted   int `json:"accepted"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// Agent is one observer instance.
type Agent struct {
	id      string
	url     string
	gate    *throttle.Gate
	sender  Sender
	clock   quartz.Clock
	retries int
	logger  logger.Logger

	mu       sync.Mutex
	tracking bool
	counts   Counts
}

// New creates an agent with a fresh id and the default throttle windows.
func New(sender Sender, opts ...Option) (*Agent, error) {
	if sender == nil {
		return nil, ErrNilSender
	}
	a := &Agent{
		id:     uuid.NewString(),
		gate:   throttle.New(),
		sender: sender,
		clock:  quartz.NewReal(),
		logger: logger.Get().Named("observer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// ID returns the observer id.
func (a *Agent) ID() string { return a.id }

// Tracking reports the local tracking flag.
func (a *Agent) Tracking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tracking
}

// Counts returns a copy of the outcome tallies.
func (a *Agent) Counts() Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

// Deliver applies a coordinator notification. startTracking and stopTracking
// flip the local flag; statsUpdated is acknowledged without effect.
func (a *Agent) Deliver(_ context.Context, n types.Notification) (types.ObserverAck, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch n.Action {
	case types.ActionStartTracking:
		a.tracking = true
	case types.ActionStopTracking:
		a.tracking = false
	case types.ActionStatsUpdated:
	default:
		return types.ObserverAck{Success: false, Tracking: a.tracking}, fmt.Errorf("%w: %q", ErrUnknownAction, n.Action)
	}
	return types.ObserverAck{Success: true, Tracking: a.tracking}, nil
}

// Ping answers a liveness probe with the number of forwarded clicks.
func (a *Agent) Ping(_ context.Context) (types.PingResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return types.PingResponse{
		Status:     "alive",
		Tracking:   a.tracking,
		URL:        a.url,
		ClickCount: a.counts.Forwarded,
	}, nil
}

// Sync asks the coordinator for the tracking flag and adopts it.
func (a *Agent) Sync(ctx context.Context) error {
	st, err := a.sender.TrackingStatus(ctx)
	if err != nil {
		return fmt.Errorf("tracking status: %w", err)
	}
	a.mu.Lock()
	a.tracking = st.IsTracking
	a.mu.Unlock()
	return nil
}

// Interact runs one raw interaction through the local filters and, if it
// survives, forwards it. Input is ignored while not tracking and keydowns
// only count for productive keys.
func (a *Agent) Interact(ctx context.Context, in Interaction) (Outcome, error) {
	kind, err := kindOf(in.Type)
	if err != nil {
		return Ignored, err
	}
	at := in.At
	if at.IsZero() {
		at = a.clock.Now()
	}

	a.mu.Lock()
	a.counts.Raw++
	if !a.tracking || (in.Type == "keydown" && !IsProductiveKey(in.Key)) {
		a.counts.Ignored++
		a.mu.Unlock()
		return Ignored, nil
	}
	decision := a.gate.Check(kind, at)
	switch decision {
	case throttle.Throttled:
		a.counts.Throttled++
		a.mu.Unlock()
		return Throttled, nil
	case throttle.Sampled:
		a.counts.Sampled++
		a.mu.Unlock()
		return Sampled, nil
	}
	a.counts.Forwarded++
	a.mu.Unlock()

	req := types.ClickDetected{Kind: kind.String(), EventID: uuid.NewString(), ObserverID: a.id}
	res, err := a.send(ctx, req)

	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case err != nil:
		a.counts.Failed++
		return Failed, err
	case !res.Accepted:
		a.counts.Suppressed++
		if res.Reason == types.ReasonNotTracking {
			a.tracking = false
		}
		return Suppressed, nil
	default:
		a.counts.Accepted++
		return Accepted, nil
	}
}

func (a *Agent) send(ctx context.Context, req types.ClickDetected) (types.ClickResult, error) {
	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		res, err := a.sender.SendClick(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		a.logger.Debug(ctx, "click not delivered",
			logger.String("event_id", req.EventID),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
	}
	return types.ClickResult{}, fmt.Errorf("send click %s: %w", req.EventID, lastErr)
}

func kindOf(t string) (throttle.Kind, error) {
	switch t {
	case "click", "mousedown", "keydown":
		return throttle.Primary, nil
	case "scroll":
		return throttle.Scroll, nil
	case "mousemove":
		return throttle.PointerMove, nil
	default:
		return throttle.Primary, fmt.Errorf("%w: %q", ErrUnknownInputType, t)
	}
}
