// Package tracking owns the Idle/Tracking state machine driven by schedule
// ticks and explicit commands.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/schedule"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
)

// StateStore persists the schedule and the tracking state.
type StateStore interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

// WorkLog receives the minutes of closed sessions.
type WorkLog interface {
	AddWorkMinutes(ctx context.Context, date string, minutes int) error
}

// Broadcaster delivers notifications to observers. Delivery is best effort.
type Broadcaster interface {
	Notify(ctx context.Context, n types.Notification) types.DeliveryReport
}

// Transition describes what an evaluation did.
type Transition int

// Transitions.
const (
	NoTransition Transition = iota
	Started
	Stopped
)

// String returns a label for logs and metrics.
func (t Transition) String() string {
	switch t {
	case Started:
		return "start"
	case Stopped:
		return "stop"
	default:
		return "none"
	}
}

// Controller holds the single live TrackingState and the current schedule.
// Every method is serialized by mu. Notifications go out after mu is
// released; notifyMu keeps them in transition order.
type Controller struct {
	mu       sync.Mutex
	notifyMu sync.Mutex
	store    StateStore
	worklog  WorkLog
	notifier Broadcaster
	clock    quartz.Clock
	loc      *time.Location
	logger   logger.Logger

	schedule *schedule.Schedule
	state    model.TrackingState
	// dirty marks a state change that has not reached the store yet.
	dirty bool
}

// New creates an Idle controller with no schedule. Call Restore to load
// persisted state.
func New(store StateStore, worklog WorkLog, notifier Broadcaster, opts ...Option) (*Controller, error) {
	if store == nil || worklog == nil || notifier == nil {
		return nil, ErrNilDependency
	}
	c := &Controller{
		store:    store,
		worklog:  worklog,
		notifier: notifier,
		clock:    quartz.NewReal(),
		loc:      time.Local,
		logger:   logger.Get().Named("tracking"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Restore loads the schedule and tracking state from the store. Missing
// keys leave the defaults in place. A session that started on an earlier
// day is discarded without credit.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var sched schedule.Schedule
	switch err := c.store.Get(ctx, model.KeySchedule, &sched); {
	case err == nil:
		c.schedule = &sched
	case !errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("restore schedule: %w", err)
	}

	var tracking bool
	if err := c.store.Get(ctx, model.KeyIsTracking, &tracking); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("restore tracking flag: %w", err)
	}

	var started time.Time
	var startedAt *time.Time
	switch err := c.store.Get(ctx, model.KeySessionStartedAt, &started); {
	case err == nil:
		startedAt = &started
	case !errors.Is(err, model.ErrNotFound):
		return fmt.Errorf("restore session start: %w", err)
	}

	c.state = model.TrackingState{IsTracking: tracking}
	if tracking {
		c.state.SessionStartedAt = startedAt
	}
	if now := c.clock.Now().In(c.loc); tracking && startedAt != nil && !c.sameDay(*startedAt, now) {
		c.logger.Warn(ctx, "discarding session from an earlier day",
			logger.Time("startedAt", *startedAt),
			logger.Time("now", now),
		)
		c.state = model.TrackingState{}
		c.persist(ctx)
	}
	metrics.UpdateTrackingActive(c.state.IsTracking)

	c.logger.Info(ctx, "tracking state restored",
		logger.Bool("tracking", c.state.IsTracking),
		logger.String("schedule", c.schedule.String()),
	)
	return nil
}

// Evaluate runs one tick: it compares the schedule with the current time and
// starts or stops the session when the target state differs. Without a
// schedule nothing happens.
func (c *Controller) Evaluate(ctx context.Context) (Transition, error) {
	c.mu.Lock()
	c.flushDirty(ctx)

	if c.schedule == nil {
		c.mu.Unlock()
		c.logger.Debug(ctx, "skipping evaluation", logger.Error(model.ErrNoSchedule))
		return NoTransition, nil
	}

	now := c.clock.Now().In(c.loc)
	work := schedule.IsWorkTime(schedule.MinuteOfDay(now), c.schedule)

	switch {
	case work && !c.state.IsTracking:
		c.start(ctx, now, "tick")
		c.unlockAndNotify(ctx, types.ActionStartTracking)
		return Started, nil
	case !work && c.state.IsTracking:
		if err := c.stop(ctx, now, "tick"); err != nil {
			c.mu.Unlock()
			return NoTransition, err
		}
		c.unlockAndNotify(ctx, types.ActionStopTracking)
		return Stopped, nil
	default:
		c.mu.Unlock()
		return NoTransition, nil
	}
}

// ForceStart begins tracking regardless of the schedule. When a session is
// already open its start time is kept and observers are told again.
func (c *Controller) ForceStart(ctx context.Context) types.TrackingStatus {
	c.mu.Lock()
	if !c.state.IsTracking {
		c.start(ctx, c.clock.Now().In(c.loc), "force")
	}
	st := c.statusLocked()
	c.unlockAndNotify(ctx, types.ActionStartTracking)
	return st
}

// UpdateSchedule persists s and makes it current. It never transitions; the
// next tick evaluates the new schedule. On failure nothing changes.
func (c *Controller) UpdateSchedule(ctx context.Context, s *schedule.Schedule) error {
	if s == nil {
		return model.ErrNoSchedule
	}
	next := *s

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(ctx, model.KeySchedule, next); err != nil {
		c.logger.Error(ctx, "schedule not persisted", logger.Error(err))
		return fmt.Errorf("persist schedule: %w", err)
	}
	c.schedule = &next
	c.logger.Info(ctx, "schedule updated", logger.String("schedule", next.String()))
	return nil
}

// Shutdown closes an open session so its minutes are credited, then leaves
// the controller Idle.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if !c.state.IsTracking {
		c.mu.Unlock()
		return nil
	}
	if err := c.stop(ctx, c.clock.Now().In(c.loc), "shutdown"); err != nil {
		c.mu.Unlock()
		return err
	}
	c.unlockAndNotify(ctx, types.ActionStopTracking)
	return nil
}

// Status returns the current tracking flag and schedule.
func (c *Controller) Status() types.TrackingStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// IsTracking reports whether a session is open.
func (c *Controller) IsTracking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.IsTracking
}

// CurrentSchedule returns a copy of the schedule or model.ErrNoSchedule.
func (c *Controller) CurrentSchedule() (schedule.Schedule, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.schedule == nil {
		return schedule.Schedule{}, model.ErrNoSchedule
	}
	return *c.schedule, nil
}

// State returns a copy of the tracking state.
func (c *Controller) State() model.TrackingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := model.TrackingState{IsTracking: c.state.IsTracking}
	if c.state.SessionStartedAt != nil {
		t := *c.state.SessionStartedAt
		out.SessionStartedAt = &t
	}
	return out
}

func (c *Controller) start(ctx context.Context, now time.Time, trigger string) {
	c.state = model.TrackingState{IsTracking: true, SessionStartedAt: &now}
	c.persist(ctx)
	metrics.RecordTrackingTransition("start", trigger)
	c.logger.Info(ctx, "tracking started", logger.String("trigger", trigger), logger.Time("at", now))
}

// stop credits the session minutes first; if that fails the session stays
// open and the next tick retries.
func (c *Controller) stop(ctx context.Context, now time.Time, trigger string) error {
	minutes := 0
	if started := c.state.SessionStartedAt; started != nil {
		if elapsed := now.Sub(*started); elapsed > 0 {
			minutes = int(elapsed / time.Minute)
		}
		if err := c.worklog.AddWorkMinutes(ctx, model.DateKey(now), minutes); err != nil {
			c.logger.Error(ctx, "session minutes not recorded, staying in tracking",
				logger.Int("minutes", minutes),
				logger.Error(err),
			)
			return fmt.Errorf("close session: %w", err)
		}
	}

	c.state = model.TrackingState{}
	c.persist(ctx)
	metrics.RecordTrackingTransition("stop", trigger)
	c.logger.Info(ctx, "tracking stopped",
		logger.String("trigger", trigger),
		logger.Int("minutes", minutes),
	)
	return nil
}

// persist writes the tracking state. A failure keeps the in-memory state
// and marks it dirty for the next tick.
func (c *Controller) persist(ctx context.Context) {
	if err := c.write(ctx); err != nil {
		c.dirty = true
		c.logger.Warn(ctx, "tracking state not persisted, will retry", logger.Error(err))
		return
	}
	c.dirty = false
}

func (c *Controller) write(ctx context.Context) error {
	if err := c.store.Set(ctx, model.KeyIsTracking, c.state.IsTracking); err != nil {
		return err
	}
	if c.state.SessionStartedAt != nil {
		return c.store.Set(ctx, model.KeySessionStartedAt, c.state.SessionStartedAt)
	}
	return c.store.Delete(ctx, model.KeySessionStartedAt)
}

func (c *Controller) flushDirty(ctx context.Context) {
	if !c.dirty {
		return
	}
	c.persist(ctx)
	if !c.dirty {
		c.logger.Info(ctx, "pending tracking state persisted")
	}
}

// unlockAndNotify releases mu and then broadcasts action. notifyMu is taken
// before mu is released so deliveries follow transition order.
func (c *Controller) unlockAndNotify(ctx context.Context, action types.Action) {
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	c.notify(ctx, action)
}

func (c *Controller) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(c.loc).Date()
	by, bm, bd := b.In(c.loc).Date()
	return ay == by && am == bm && ad == bd
}

func (c *Controller) notify(ctx context.Context, action types.Action) {
	report := c.notifier.Notify(ctx, types.Notification{Action: action})
	if report.Failed > 0 {
		c.logger.Debug(ctx, "some observers missed a notification",
			logger.String("action", string(action)),
			logger.Int("failed", report.Failed),
		)
	}
}

func (c *Controller) statusLocked() types.TrackingStatus {
	st := types.TrackingStatus{IsTracking: c.state.IsTracking}
	if c.schedule != nil {
		s := *c.schedule
		st.Schedule = &s
	}
	if c.state.SessionStartedAt != nil {
		v := c.state.SessionStartedAt.Format(time.RFC3339)
		st.SessionStartedAt = &v
	}
	return st
}
