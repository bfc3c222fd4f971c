// Package scheduler runs the periodic jobs of the coordinator on quartz
// tickers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Func adapts a function to Job.
type Func struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name returns the job name.
func (f Func) Name() string { return f.JobName }

// Run calls the function.
func (f Func) Run(ctx context.Context) error { return f.Fn(ctx) }

type entry struct {
	job        Job
	interval   time.Duration
	runOnStart bool

	runs     int64
	failures int64
	lastRun  time.Time
	lastErr  error
}

// Scheduler owns one ticker per registered job. A failing run is logged and
// the ticker keeps going.
type Scheduler struct {
	mu      sync.Mutex
	clock   quartz.Clock
	logger  logger.Logger
	jobs    []*entry
	started bool
	cancel  context.CancelFunc
	waiters []quartz.Waiter
}

// New creates a scheduler with no jobs.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  quartz.NewReal(),
		logger: logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every registers job to run every interval. With runOnStart the job also
// runs once when the scheduler starts.
func (s *Scheduler) Every(interval time.Duration, job Job, runOnStart bool) error {
	if job == nil {
		return ErrNilJob
	}
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, job.Name())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	for _, e := range s.jobs {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name())
		}
	}
	s.jobs = append(s.jobs, &entry{job: job, interval: interval, runOnStart: runOnStart})
	return nil
}

// Start runs the start-up jobs and then arms the tickers. It returns once
// every ticker is registered; jobs stop when ctx is cancelled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	jobs := append([]*entry(nil), s.jobs...)
	s.mu.Unlock()

	for _, e := range jobs {
		if e.runOnStart {
			s.run(ctx, e)
		}
	}

	waiters := make([]quartz.Waiter, 0, len(jobs))
	for _, e := range jobs {
		w := s.clock.TickerFunc(ctx, e.interval, func() error {
			s.run(ctx, e)
			return nil
		}, "scheduler", e.job.Name())
		waiters = append(waiters, w)
		s.logger.Info(ctx, "job scheduled",
			logger.String("job", e.job.Name()),
			logger.Duration("interval", e.interval),
		)
	}

	s.mu.Lock()
	s.waiters = waiters
	s.mu.Unlock()
	return nil
}

// Stop cancels every ticker and waits for in-flight runs to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancel
	waiters := s.waiters
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var errs []error
	for _, w := range waiters {
		if err := w.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunNow runs the named job once outside its ticker.
func (s *Scheduler) RunNow(ctx context.Context, name string) bool {
	s.mu.Lock()
	var target *entry
	for _, e := range s.jobs {
		if e.job.Name() == name {
			target = e
			break
		}
	}
	s.mu.Unlock()
	if target == nil {
		return false
	}
	s.run(ctx, target)
	return true
}

func (s *Scheduler) run(ctx context.Context, e *entry) {
	err := e.job.Run(ctx)
	metrics.RecordSchedulerTick(e.job.Name())

	s.mu.Lock()
	e.runs++
	e.lastRun = s.clock.Now()
	e.lastErr = err
	if err != nil {
		e.failures++
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error(ctx, "job failed", logger.String("job", e.job.Name()), logger.Error(err))
	}
}

// GetStats returns per-job run counters.
func (s *Scheduler) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]interface{}, len(s.jobs))
	for _, e := range s.jobs {
		st := map[string]interface{}{
			"interval": e.interval.String(),
			"runs":     e.runs,
			"failures": e.failures,
		}
		if !e.lastRun.IsZero() {
			st["last_run"] = e.lastRun.Format(time.RFC3339)
		}
		if e.lastErr != nil {
			st["last_error"] = e.lastErr.Error()
		}
		out[e.job.Name()] = st
	}
	return out
}
