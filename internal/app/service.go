// Package service wires the coordinator components together and implements
// the dependencies required by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/adapters/broadcast"
	eventqueue "github.com/okian/workpulse/internal/adapters/mq/queue"
	workerpool "github.com/okian/workpulse/internal/adapters/mq/worker"
	"github.com/okian/workpulse/internal/adapters/repository"
	"github.com/okian/workpulse/internal/domain/dedupe"
	"github.com/okian/workpulse/internal/domain/ingest"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/internal/domain/schedule"
	"github.com/okian/workpulse/internal/domain/stats"
	"github.com/okian/workpulse/internal/domain/tracking"
	"github.com/okian/workpulse/internal/domain/types"
	"github.com/okian/workpulse/internal/scheduler"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
	"github.com/redis/go-redis/v9"
)

// Job names used by the scheduler.
const (
	JobEvaluate = "evaluate"
	JobCleanup  = "cleanup"
)

// Service is the coordinator process: one tracking controller, one stats
// store and the ingestion pipeline in front of it.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	stats      *stats.Store
	controller *tracking.Controller
	hub        *broadcast.Hub
	notifier   broadcast.Notifier
	publisher  *broadcast.RedisPublisher
	eventQueue *eventqueue.InMemoryQueue
	workerPool *workerpool.Pool
	ingestor   *ingest.Ingestor
	scheduler  *scheduler.Scheduler

	// Configuration
	workerCount      int
	queueSize        int
	dedupeSize       int
	tickInterval     time.Duration
	cleanupInterval  time.Duration
	retentionDays    int
	loc              *time.Location
	clock            quartz.Clock
	seed             *schedule.Schedule
	storeSettings    repository.Settings
	storeOpts        []repository.Option
	ownsStore        bool
	broadcastRedis   bool
	broadcastChannel string
	redisClient      *redis.Client
	ownsRedis        bool
	observerBuffer   int
	deliveryTimeout  time.Duration

	// State
	opened     bool
	started    bool
	cancelRun  context.CancelFunc
	cancelWork context.CancelFunc
	relayDone  chan struct{}

	// Logging
	logger logger.Logger
}

// New constructs a Service with default configuration. Nothing is opened
// until Open or Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     1,
		queueSize:       1024,
		dedupeSize:      4096,
		tickInterval:    time.Minute,
		cleanupInterval: 7 * 24 * time.Hour,
		retentionDays:   30,
		loc:             time.Local,
		clock:           quartz.NewReal(),
		storeSettings:   repository.Settings{Backend: repository.BackendMemory},
		ownsStore:       true,
		observerBuffer:  16,
		deliveryTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Open builds the store, stats, broadcast and tracking components and
// restores the persisted state. It starts no background work, which makes
// it suitable for one-shot commands.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(ctx)
}

func (s *Service) openLocked(ctx context.Context) error {
	if s.opened {
		return nil
	}

	if s.store == nil {
		store, err := repository.Open(ctx, s.storeSettings, s.storeOpts...)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		s.store = store
		s.ownsStore = true
	}
	s.logger.Info(ctx, "store ready", logger.String("backend", s.storeSettings.Backend))

	st, err := stats.New(s.store, stats.WithClock(s.clock), stats.WithLocation(s.loc))
	if err != nil {
		return s.abortOpen(fmt.Errorf("stats: %w", err))
	}
	s.stats = st

	s.hub = broadcast.NewHub(
		broadcast.WithDeliveryTimeout(s.deliveryTimeout),
		broadcast.WithJoinHook(s.resyncObserver),
	)
	s.notifier = s.hub
	if s.broadcastRedis {
		client, err := s.redisClientLocked()
		if err != nil {
			return s.abortOpen(err)
		}
		s.publisher = broadcast.NewRedisPublisher(client, s.broadcastChannel)
		s.notifier = broadcast.Fanout{s.hub, s.publisher}
	}

	ctrl, err := tracking.New(s.store, s.stats, s.notifier,
		tracking.WithClock(s.clock),
		tracking.WithLocation(s.loc),
	)
	if err != nil {
		return s.abortOpen(fmt.Errorf("tracking: %w", err))
	}
	if err := ctrl.Restore(ctx); err != nil {
		return s.abortOpen(fmt.Errorf("restore: %w", err))
	}
	if s.seed != nil {
		if _, err := ctrl.CurrentSchedule(); errors.Is(err, model.ErrNoSchedule) {
			if err := ctrl.UpdateSchedule(ctx, s.seed); err != nil {
				return s.abortOpen(fmt.Errorf("seed schedule: %w", err))
			}
		}
	}
	s.controller = ctrl
	s.opened = true
	return nil
}

func (s *Service) redisClientLocked() (*redis.Client, error) {
	if s.redisClient != nil {
		return s.redisClient, nil
	}
	if rs, ok := s.store.(*repository.RedisStore); ok {
		s.redisClient = rs.Client()
		return s.redisClient, nil
	}
	if s.storeSettings.RedisAddr == "" {
		return nil, ErrRedisMissing
	}
	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     s.storeSettings.RedisAddr,
		Password: s.storeSettings.RedisPassword,
		DB:       s.storeSettings.RedisDB,
	})
	s.ownsRedis = true
	return s.redisClient, nil
}

func (s *Service) abortOpen(err error) error {
	s.closeResources()
	return err
}

// Start opens the service if needed and launches the worker pool, the
// scheduler and the Redis relay.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting workpulse coordinator...")
	if err := s.openLocked(ctx); err != nil {
		return err
	}

	// Workers outlive the run context so Stop can drain the queue.
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	runCtx, cancelRun := context.WithCancel(ctx)
	s.cancelWork, s.cancelRun = cancelWork, cancelRun

	s.eventQueue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	metrics.UpdateQueueCapacity(s.eventQueue.Capacity())

	applier, err := ingest.NewApplier(s.stats, s.notifier)
	if err != nil {
		return s.abortStart(err)
	}
	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, applier, workerpool.WithClock(s.clock))
	s.workerPool.Start(workCtx)

	s.ingestor, err = ingest.New(s.controller, s.eventQueue,
		ingest.WithClock(s.clock),
		ingest.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))),
	)
	if err != nil {
		return s.abortStart(err)
	}

	if s.publisher != nil {
		relay := s.publisher.Relay(s.hub)
		s.relayDone = make(chan struct{})
		go func() {
			defer close(s.relayDone)
			if err := relay.Run(runCtx); err != nil {
				s.logger.Error(runCtx, "redis relay stopped", logger.Error(err))
			}
		}()
	}

	s.scheduler = scheduler.New(scheduler.WithClock(s.clock))
	if err := s.scheduler.Every(s.tickInterval, scheduler.Func{JobName: JobEvaluate, Fn: s.evaluate}, true); err != nil {
		return s.abortStart(err)
	}
	// Both jobs also run once on start.
	if err := s.scheduler.Every(s.cleanupInterval, scheduler.Func{JobName: JobCleanup, Fn: s.cleanup}, true); err != nil {
		return s.abortStart(err)
	}
	if err := s.scheduler.Start(runCtx); err != nil {
		return s.abortStart(err)
	}

	s.started = true
	s.logger.Info(ctx, "workpulse coordinator started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("tick", s.tickInterval),
		logger.Duration("cleanup", s.cleanupInterval),
	)
	return nil
}

func (s *Service) abortStart(err error) error {
	s.cancelRun()
	if s.eventQueue != nil {
		_ = s.eventQueue.Close()
	}
	s.cancelWork()
	return err
}

// Stop halts the scheduler, closes an open session, drains the queue and
// releases the store. ctx bounds the drain.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return nil
	}
	s.logger.Info(ctx, "stopping workpulse coordinator...")

	var errs []error
	if s.started {
		if err := s.scheduler.Stop(); err != nil {
			errs = append(errs, err)
		}
		_ = s.eventQueue.Close()
		if err := s.workerPool.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
		s.cancelWork()
	}

	if err := s.controller.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}

	if s.started {
		s.cancelRun()
		if s.relayDone != nil {
			<-s.relayDone
		}
	}

	s.closeResources()
	s.started = false
	s.opened = false
	s.logger.Info(ctx, "workpulse coordinator stopped")
	return errors.Join(errs...)
}

// Close releases resources after Open without touching the tracking state.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeResources()
	s.opened = false
	return nil
}

func (s *Service) closeResources() {
	if s.ownsRedis && s.redisClient != nil {
		_ = s.redisClient.Close()
		s.redisClient = nil
		s.ownsRedis = false
	}
	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(context.Background(), "store close failed", logger.Error(err))
		}
		s.store = nil
	}
}

func (s *Service) evaluate(ctx context.Context) error {
	_, err := s.controller.Evaluate(ctx)
	return err
}

func (s *Service) cleanup(ctx context.Context) error {
	removed, err := s.stats.Cleanup(ctx, s.retentionDays, s.clock.Now())
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "old daily stats removed",
		logger.Int("removed", removed),
		logger.Int("retentionDays", s.retentionDays),
	)
	return nil
}

// resyncObserver tells an observer that joins mid-session to start tracking.
func (s *Service) resyncObserver(ctx context.Context, o broadcast.Observer) {
	s.mu.RLock()
	ctrl, hub := s.controller, s.hub
	s.mu.RUnlock()
	if ctrl == nil || hub == nil || !ctrl.IsTracking() {
		return
	}
	_ = hub.DeliverTo(ctx, o, types.Notification{Action: types.ActionStartTracking})
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.opened {
		return ErrNotOpen
	}
	return nil
}

// Click admits a clickDetected message.
func (s *Service) Click(ctx context.Context, req types.ClickDetected) types.ClickResult {
	s.mu.RLock()
	in, hub, q := s.ingestor, s.hub, s.eventQueue
	s.mu.RUnlock()
	if in == nil {
		return types.ClickResult{Accepted: false, Reason: types.ReasonBackpressure}
	}
	res := in.Record(ctx, req)
	if res.Accepted {
		hub.Credit(req.ObserverID)
		metrics.UpdateQueueSize(q.Len())
	}
	return res
}

// UpdateSchedule replaces the schedule.
func (s *Service) UpdateSchedule(ctx context.Context, sched *schedule.Schedule) (types.ScheduleAck, error) {
	if err := s.ready(); err != nil {
		return types.ScheduleAck{}, err
	}
	if sched == nil {
		return types.ScheduleAck{}, ErrNilSchedule
	}
	if err := s.controller.UpdateSchedule(ctx, sched); err != nil {
		return types.ScheduleAck{}, err
	}
	return types.ScheduleAck{Acknowledged: true}, nil
}

// TrackingStatus answers getTrackingStatus.
func (s *Service) TrackingStatus(_ context.Context) (types.TrackingStatus, error) {
	if err := s.ready(); err != nil {
		return types.TrackingStatus{}, err
	}
	return s.controller.Status(), nil
}

// ForceStart answers forceStartTracking.
func (s *Service) ForceStart(ctx context.Context) (types.TrackingStatus, error) {
	if err := s.ready(); err != nil {
		return types.TrackingStatus{}, err
	}
	return s.controller.ForceStart(ctx), nil
}

// Handle dispatches one protocol request.
func (s *Service) Handle(ctx context.Context, req types.Request) (any, error) {
	switch r := req.(type) {
	case types.ClickDetected:
		return s.Click(ctx, r), nil
	case types.ScheduleUpdated:
		return s.UpdateSchedule(ctx, r.Schedule)
	case types.GetTrackingStatus:
		return s.TrackingStatus(ctx)
	case types.ForceStartTracking:
		return s.ForceStart(ctx)
	default:
		return nil, fmt.Errorf("%w: %T", types.ErrUnknownAction, req)
	}
}

// Snapshot returns the daily and weekly stats.
func (s *Service) Snapshot(ctx context.Context) (model.Snapshot, error) {
	if err := s.ready(); err != nil {
		return model.Snapshot{}, err
	}
	return s.stats.Snapshot(ctx)
}

// Summary returns today's derived figures.
func (s *Service) Summary(ctx context.Context) (stats.Summary, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return stats.Summary{}, err
	}
	return stats.Summarize(snap, s.clock.Now().In(s.loc)), nil
}

// ResetStats clears all daily and weekly stats.
func (s *Service) ResetStats(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.stats.Reset(ctx)
}

// Cleanup runs retention now with the configured retention.
func (s *Service) Cleanup(ctx context.Context) (int, error) {
	return s.CleanupWithRetention(ctx, s.retentionDays)
}

// CleanupWithRetention runs retention now keeping days days.
func (s *Service) CleanupWithRetention(ctx context.Context, days int) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.stats.Cleanup(ctx, days, s.clock.Now())
}

// Observers lists the observers connected to this process.
func (s *Service) Observers() []string {
	s.mu.RLock()
	hub := s.hub
	s.mu.RUnlock()
	if hub == nil {
		return nil
	}
	return hub.Observers()
}

// ConnectObserver registers a streaming observer. The caller must call
// DisconnectObserver when the stream ends.
func (s *Service) ConnectObserver(ctx context.Context, url string) (*broadcast.StreamObserver, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	o := broadcast.NewStreamObserver(url, s.observerBuffer)
	if err := s.hub.Register(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// DisconnectObserver unregisters and closes o.
func (s *Service) DisconnectObserver(ctx context.Context, o *broadcast.StreamObserver) {
	s.mu.RLock()
	hub := s.hub
	s.mu.RUnlock()
	if hub != nil {
		hub.Unregister(ctx, o.ID())
	}
	o.Close()
}

// PingObserver probes a connected observer.
func (s *Service) PingObserver(ctx context.Context, id string) (types.PingResponse, error) {
	if err := s.ready(); err != nil {
		return types.PingResponse{}, err
	}
	return s.hub.Ping(ctx, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]interface{}{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"retentionDays": s.retentionDays,
		"backend":       s.storeSettings.Backend,
		"redisRelay":    s.publisher != nil,
	}
	if s.opened {
		st := s.controller.State()
		out["tracking"] = st.IsTracking
		if st.SessionStartedAt != nil {
			out["sessionStartedAt"] = st.SessionStartedAt.Format(time.RFC3339)
		}
		out["observers"] = len(s.hub.Observers())
	}
	if s.started {
		queueLen := s.eventQueue.Len()
		out["queueLength"] = queueLen
		out["workers"] = s.workerPool.Stats()
		out["jobs"] = s.scheduler.GetStats()
		metrics.UpdateQueueSize(queueLen)
	}
	return out
}
