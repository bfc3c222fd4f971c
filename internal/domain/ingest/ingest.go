// Package ingest admits clickDetected messages and turns accepted ones into
// stats updates.
package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/domain/dedupe"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/throttle"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
)

// TrackingSource tells whether a session is open.
type TrackingSource interface {
	IsTracking() bool
}

// Enqueuer hands accepted events to the stats writer.
type Enqueuer interface {
	Enqueue(ctx context.Context, e model.ClickEvent) error
}

// Ingestor answers clickDetected. It replies as soon as the event is queued;
// the stats write happens asynchronously.
type Ingestor struct {
	tracking TrackingSource
	queue    Enqueuer
	dedupe   dedupe.Deduper
	clock    quartz.Clock
	logger   logger.Logger
}

// New creates an ingestor.
func New(tracking TrackingSource, q Enqueuer, opts ...Option) (*Ingestor, error) {
	if tracking == nil || q == nil {
		return nil, ErrNilDependency
	}
	i := &Ingestor{
		tracking: tracking,
		queue:    q,
		clock:    quartz.NewReal(),
		logger:   logger.Get().Named("ingest"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Record admits one click. Nothing is mutated unless the result is accepted.
func (i *Ingestor) Record(ctx context.Context, req types.ClickDetected) types.ClickResult {
	kind, ok := throttle.ParseKind(req.Kind)
	if !ok {
		return i.suppress(types.ReasonInvalidKind)
	}
	if !i.tracking.IsTracking() {
		return i.suppress(types.ReasonNotTracking)
	}

	if req.EventID != "" && i.dedupe != nil && i.dedupe.SeenAndRecord(ctx, req.EventID) {
		metrics.RecordEventDuplicate()
		return i.suppress(types.ReasonDuplicate)
	}

	e := model.ClickEvent{
		EventID:    req.EventID,
		ObserverID: req.ObserverID,
		Kind:       kind.String(),
		At:         i.clock.Now(),
	}
	if err := i.queue.Enqueue(ctx, e); err != nil {
		if req.EventID != "" && i.dedupe != nil {
			i.dedupe.Unrecord(ctx, req.EventID)
		}
		i.logger.Warn(ctx, "click not queued", logger.String("observer_id", req.ObserverID), logger.Error(err))
		return i.suppress(types.ReasonBackpressure)
	}

	metrics.RecordEventAccepted(e.Kind)
	return types.ClickResult{Accepted: true}
}

func (i *Ingestor) suppress(reason string) types.ClickResult {
	metrics.RecordEventSuppressed(reason)
	return types.ClickResult{Accepted: false, Reason: reason}
}

// Counter is the stats side of the pipeline.
type Counter interface {
	RecordClick(ctx context.Context, at time.Time) (model.Snapshot, error)
}

// Notifier delivers statsUpdated notifications.
type Notifier interface {
	Notify(ctx context.Context, n types.Notification) types.DeliveryReport
}

// Applier is the queue consumer: it counts the click and broadcasts the new
// snapshot. Broadcast failures never fail the apply.
type Applier struct {
	counter  Counter
	notifier Notifier
	logger   logger.Logger
}

// NewApplier creates the queue consumer.
func NewApplier(counter Counter, notifier Notifier) (*Applier, error) {
	if counter == nil || notifier == nil {
		return nil, ErrNilDependency
	}
	return &Applier{counter: counter, notifier: notifier, logger: logger.Get().Named("ingest")}, nil
}

// Apply counts e on the day and week it was accepted.
func (a *Applier) Apply(ctx context.Context, e model.ClickEvent) error { //nolint:gocritic // hugeParam: matches the worker contract
	snap, err := a.counter.RecordClick(ctx, e.At)
	if err != nil {
		if errors.Is(err, model.ErrStoreUnavailable) {
			return err
		}
		return errors.Join(model.ErrStoreUnavailable, err)
	}
	a.notifier.Notify(ctx, types.Notification{Action: types.ActionStatsUpdated, Stats: &snap})
	return nil
}
