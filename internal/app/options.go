package service

import (
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/adapters/repository"
	"github.com/okian/workpulse/internal/domain/schedule"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of queue workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the click queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many event ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithIntervals sets the evaluation and cleanup periods.
func WithIntervals(tick, cleanup time.Duration) Option {
	return func(s *Service) {
		if tick > 0 {
			s.tickInterval = tick
		}
		if cleanup > 0 {
			s.cleanupInterval = cleanup
		}
	}
}

// WithRetentionDays sets how many days of daily stats cleanup keeps.
func WithRetentionDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.retentionDays = days
		}
	}
}

// WithLocation sets the zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock sets the clock shared by every component.
func WithClock(c quartz.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSeedSchedule installs sched when the store holds no schedule yet.
func WithSeedSchedule(sched *schedule.Schedule) Option {
	return func(s *Service) {
		s.seed = sched
	}
}

// WithStoreSettings selects the key-value backend opened on Start.
func WithStoreSettings(settings repository.Settings, opts ...repository.Option) Option {
	return func(s *Service) {
		s.storeSettings = settings
		s.storeOpts = opts
	}
}

// WithStore uses an already opened store. The service does not close it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
		s.ownsStore = false
	}
}

// WithRedisBroadcast relays notifications to other processes through
// Redis pub/sub on channel. A nil client dials redisAddr from the store
// settings, or reuses the Redis store's client.
func WithRedisBroadcast(client *redis.Client, channel string) Option {
	return func(s *Service) {
		s.broadcastRedis = true
		s.redisClient = client
		s.broadcastChannel = channel
	}
}

// WithObserverBuffer sets the notification buffer of streaming observers.
func WithObserverBuffer(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.observerBuffer = n
		}
	}
}

// WithDeliveryTimeout bounds each notification delivery.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
