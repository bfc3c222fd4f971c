// Package stats aggregates click and work-minute counters per day and per
// week on top of an abstract key-value store.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/domain/model"
	"github.com/okian/workpulse/pkg/logger"
	"github.com/okian/workpulse/pkg/metrics"
)

// KV is the persistence port. Values are JSON-compatible; Get returns
// model.ErrNotFound for keys that were never written.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

// Store performs read-modify-write operations on the dailyStats and
// weeklyStats keys. Calls on one Store are serialized; separate processes
// sharing a backend are not coordinated and may lose increments.
type Store struct {
	kv     KV
	mu     sync.Mutex
	clock  quartz.Clock
	loc    *time.Location
	logger logger.Logger
}

// New creates a stats store over kv.
func New(kv KV, opts ...Option) (*Store, error) {
	if kv == nil {
		return nil, ErrNilKV
	}
	s := &Store{
		kv:     kv,
		clock:  quartz.NewReal(),
		loc:    time.Local,
		logger: logger.Get().Named("stats"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Location returns the location date keys are evaluated in.
func (s *Store) Location() *time.Location {
	return s.loc
}

// IncrementClicks adds one click to the daily entry for date.
func (s *Store) IncrementClicks(ctx context.Context, date string) error {
	return s.mutate(ctx, "increment_clicks", func(snap *model.Snapshot) (bool, bool) {
		day := snap.DailyStats[date]
		day.Clicks++
		snap.DailyStats[date] = day
		return true, false
	})
}

// IncrementWeek adds one click to the weekly entry for week.
func (s *Store) IncrementWeek(ctx context.Context, week string) error {
	return s.mutate(ctx, "increment_week", func(snap *model.Snapshot) (bool, bool) {
		snap.WeeklyStats[week]++
		return false, true
	})
}

// RecordClick counts one click on the day and week of at and returns the
// resulting snapshot.
func (s *Store) RecordClick(ctx context.Context, at time.Time) (model.Snapshot, error) {
	at = at.In(s.loc)
	date, week := model.DateKey(at), model.WeekKey(at)

	var out model.Snapshot
	err := s.mutate(ctx, "record_click", func(snap *model.Snapshot) (bool, bool) {
		day := snap.DailyStats[date]
		day.Clicks++
		snap.DailyStats[date] = day
		snap.WeeklyStats[week]++
		out = snap.Clone()
		return true, true
	})
	if err != nil {
		return model.Snapshot{}, err
	}
	return out, nil
}

// AddWorkMinutes credits minutes to the daily entry for date. Negative
// values are treated as zero.
func (s *Store) AddWorkMinutes(ctx context.Context, date string, minutes int) error {
	if minutes < 0 {
		minutes = 0
	}
	err := s.mutate(ctx, "add_work_minutes", func(snap *model.Snapshot) (bool, bool) {
		day := snap.DailyStats[date]
		day.WorkMinutes += minutes
		snap.DailyStats[date] = day
		return true, false
	})
	if err == nil {
		metrics.RecordWorkMinutes(minutes)
	}
	return err
}

// Cleanup removes daily entries dated strictly before ref minus
// retentionDays, and entries whose key cannot be parsed as a date.
// Weekly stats are left untouched. It returns the number of removed entries.
func (s *Store) Cleanup(ctx context.Context, retentionDays int, ref time.Time) (int, error) {
	if retentionDays <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := ref.In(s.loc).AddDate(0, 0, -retentionDays)

	removed := 0
	err := s.mutate(ctx, "cleanup", func(snap *model.Snapshot) (bool, bool) {
		for key := range snap.DailyStats {
			day, ok := model.ParseDateKey(key, s.loc)
			if ok && !day.Before(cutoff) {
				continue
			}
			delete(snap.DailyStats, key)
			removed++
		}
		return removed > 0, false
	})
	if err != nil {
		return 0, err
	}
	metrics.RecordCleanupRemovals(removed)
	s.logger.Info(ctx, "retention cleanup finished",
		logger.Int("removed", removed),
		logger.Int("retention_days", retentionDays),
		logger.Time("cutoff", cutoff),
	)
	return removed, nil
}

// Reset deletes both stats keys.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(ctx, model.KeyDailyStats, model.KeyWeeklyStats); err != nil {
		return s.fail(ctx, "reset", err)
	}
	s.logger.Info(ctx, "stats reset")
	return nil
}

// Snapshot returns the current daily and weekly stats.
func (s *Store) Snapshot(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return model.Snapshot{}, s.fail(ctx, "snapshot", err)
	}
	return snap, nil
}

// mutate loads both maps, applies fn, and writes back the maps fn reports as
// changed. It holds the store lock for the whole cycle.
func (s *Store) mutate(ctx context.Context, op string, fn func(*model.Snapshot) (daily, weekly bool)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.clock.Now()
	defer func() {
		metrics.RecordStoreLatency(op, float64(s.clock.Since(start).Microseconds())/1000)
	}()

	snap, err := s.load(ctx)
	if err != nil {
		return s.fail(ctx, op, err)
	}
	daily, weekly := fn(&snap)
	if daily {
		if err := s.kv.Set(ctx, model.KeyDailyStats, snap.DailyStats); err != nil {
			return s.fail(ctx, op, err)
		}
	}
	if weekly {
		if err := s.kv.Set(ctx, model.KeyWeeklyStats, snap.WeeklyStats); err != nil {
			return s.fail(ctx, op, err)
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context) (model.Snapshot, error) {
	snap := model.Snapshot{DailyStats: model.DailyStats{}, WeeklyStats: model.WeeklyStats{}}
	if err := s.kv.Get(ctx, model.KeyDailyStats, &snap.DailyStats); err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.Snapshot{}, fmt.Errorf("read %s: %w", model.KeyDailyStats, err)
	}
	if err := s.kv.Get(ctx, model.KeyWeeklyStats, &snap.WeeklyStats); err != nil && !errors.Is(err, model.ErrNotFound) {
		return model.Snapshot{}, fmt.Errorf("read %s: %w", model.KeyWeeklyStats, err)
	}
	if snap.DailyStats == nil {
		snap.DailyStats = model.DailyStats{}
	}
	if snap.WeeklyStats == nil {
		snap.WeeklyStats = model.WeeklyStats{}
	}
	return snap, nil
}

// fail records the failure and makes sure callers can match ErrStoreUnavailable.
func (s *Store) fail(ctx context.Context, op string, err error) error {
	metrics.RecordStoreError(op)
	s.logger.Error(ctx, "stats operation failed", logger.String("op", op), logger.Error(err))
	if errors.Is(err, model.ErrStoreUnavailable) {
		return fmt.Errorf("stats %s: %w", op, err)
	}
	return fmt.Errorf("stats %s: %w: %w", op, model.ErrStoreUnavailable, err)
}
