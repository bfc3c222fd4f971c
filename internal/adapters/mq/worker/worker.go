// Package worker drains the ingest queue and applies click events to the
// stats store.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/adapters/mq/queue"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Applier applies one event. Errors are logged and the event is dropped.
type Applier interface {
	Apply(ctx context.Context, e Event) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue() <-chan Event
}

// InMemoryWorker applies events from a queue until it is closed.
type InMemoryWorker struct {
	queue   Queue
	applier Applier
	name    string
	clock   quartz.Clock
	logger  logger.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, applier Applier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		applier: applier,
		name:    "worker",
		clock:   quartz.NewReal(),
		logger:  logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run applies events until the queue channel is closed or ctx is done.
// Closing the queue lets Run drain what is already buffered.
func (w *InMemoryWorker) Run(ctx context.Context) {
	events := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, e Event) { //nolint:gocritic // hugeParam: Event is passed by value through the channel
	start := w.clock.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(w.clock.Since(start).Microseconds()) / 1000)
	}()

	if err := w.applier.Apply(ctx, e); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "event not applied",
			logger.String("event_id", e.EventID),
			logger.String("observer_id", e.ObserverID),
			logger.Error(err),
		)
		return
	}
	w.processed.Add(1)
}

// Processed returns the number of events applied successfully.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of events the applier rejected.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	wg      sync.WaitGroup
	started atomic.Bool
	logger  logger.Logger
}

// NewPool creates a worker pool. Fewer than one worker means one: the stats
// store expects a single writer per process.
func NewPool(workerCount int, q Queue, applier Applier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, applier, wopts...)
	}
	return p
}

// Start launches every worker. Calling it twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	metrics.UpdateWorkerCount(len(p.workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Wait blocks until every worker returned or ctx is done. Workers return
// once the queue is closed and drained.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "worker pool shutdown timed out")
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}

// Stats returns per-pool counters for the runtime stats endpoint.
func (p *Pool) Stats() map[string]interface{} {
	var processed, failed int64
	for _, w := range p.workers {
		processed += w.Processed()
		failed += w.Failed()
	}
	return map[string]interface{}{
		"workers":   len(p.workers),
		"processed": processed,
		"failed":    failed,
	}
}
