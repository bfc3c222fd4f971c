// Package broadcast delivers coordinator notifications to observers. Every
// delivery is best effort: failures are counted in a DeliveryReport and
// never returned to the caller.
package broadcast

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
)

const defaultDeliveryTimeout = 2 * time.Second

// Observer is one connected observer instance.
type Observer interface {
	ID() string
	Deliver(ctx context.Context, n types.Notification) (types.ObserverAck, error)
	Ping(ctx context.Context) (types.PingResponse, error)
}

// Hub is the in-process registry of observers.
type Hub struct {
	mu        sync.RWMutex
	observers map[string]Observer
	timeout   time.Duration
	onJoin    func(ctx context.Context, o Observer)
	logger    logger.Logger
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		observers: make(map[string]Observer),
		timeout:   defaultDeliveryTimeout,
		logger:    logger.Get().Named("broadcast"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds o and runs the join hook.
func (h *Hub) Register(ctx context.Context, o Observer) error {
	h.mu.Lock()
	if _, ok := h.observers[o.ID()]; ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateObserver, o.ID())
	}
	h.observers[o.ID()] = o
	n := len(h.observers)
	hook := h.onJoin
	h.mu.Unlock()

	metrics.UpdateObserversConnected(n)
	h.logger.Debug(ctx, "observer registered", logger.String("observer_id", o.ID()), logger.Int("observers", n))
	if hook != nil {
		hook(ctx, o)
	}
	return nil
}

// Unregister removes the observer with id. Unknown ids are ignored.
func (h *Hub) Unregister(ctx context.Context, id string) {
	h.mu.Lock()
	delete(h.observers, id)
	n := len(h.observers)
	h.mu.Unlock()

	metrics.UpdateObserversConnected(n)
	h.logger.Debug(ctx, "observer unregistered", logger.String("observer_id", id), logger.Int("observers", n))
}

// Observers returns the registered ids in sorted order.
func (h *Hub) Observers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.observers))
	for id := range h.observers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the observer registered under id.
func (h *Hub) Get(id string) (Observer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	o, ok := h.observers[id]
	return o, ok
}

// Notify delivers n to every observer concurrently and reports the outcome.
func (h *Hub) Notify(ctx context.Context, n types.Notification) types.DeliveryReport {
	h.mu.RLock()
	targets := make([]Observer, 0, len(h.observers))
	for _, o := range h.observers {
		targets = append(targets, o)
	}
	h.mu.RUnlock()

	report := types.DeliveryReport{Action: n.Action, Attempted: len(targets)}
	if len(targets) == 0 {
		return report
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, o := range targets {
		wg.Add(1)
		go func(o Observer) {
			defer wg.Done()
			if err := h.DeliverTo(ctx, o, n); err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(o)
	}
	wg.Wait()

	report.Failed = failed
	report.Delivered = report.Attempted - failed
	return report
}

// DeliverTo sends n to a single observer with the hub's timeout. The
// returned error always wraps model.ErrDeliveryFailure.
func (h *Hub) DeliverTo(ctx context.Context, o Observer, n types.Notification) error {
	dctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if _, err := o.Deliver(dctx, n); err != nil {
		metrics.RecordBroadcastDelivery(string(n.Action), "failed")
		h.logger.Debug(ctx, "delivery failed",
			logger.String("observer_id", o.ID()),
			logger.String("action", string(n.Action)),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %w", model.ErrDeliveryFailure, err)
	}
	metrics.RecordBroadcastDelivery(string(n.Action), "delivered")
	return nil
}

// Ping probes the observer with id.
func (h *Hub) Ping(ctx context.Context, id string) (types.PingResponse, error) {
	o, ok := h.Get(id)
	if !ok {
		return types.PingResponse{}, fmt.Errorf("%w: %s", ErrUnknownObserver, id)
	}
	pctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	resp, err := o.Ping(pctx)
	if err != nil {
		return types.PingResponse{}, fmt.Errorf("%w: %w", model.ErrDeliveryFailure, err)
	}
	return resp, nil
}
