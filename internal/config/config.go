// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/workpulse/internal/adapters/repository"
	"github.com/okian/workpulse/internal/domain/schedule"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Timezone names the IANA zone that defines calendar days. Empty means
	// the host's local zone.
	Timezone string `koanf:"timezone"`

	// TickInterval is how often the schedule is evaluated.
	TickInterval time.Duration `koanf:"tick_interval"`

	// CleanupInterval is how often old daily stats are evicted.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// RetentionDays is how many days of daily stats are kept.
	RetentionDays int `koanf:"retention_days"`

	// QueueSize bounds the in-memory click queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of queue workers. One keeps stats writes
	// single-writer within the process.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many event ids are remembered for retries.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreBackend selects the key-value store: memory, sqlite, redis or postgres.
	StoreBackend string `koanf:"store_backend"`

	SQLitePath     string `koanf:"sqlite_path"`
	RedisAddr      string `koanf:"redis_addr"`
	RedisPassword  string `koanf:"redis_password"`
	RedisDB        int    `koanf:"redis_db"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`
	PostgresDSN    string `koanf:"postgres_dsn"`

	// BroadcastRedis relays notifications between processes over Redis
	// pub/sub, using RedisAddr.
	BroadcastRedis bool `koanf:"broadcast_redis"`

	// BroadcastChannel is the pub/sub channel name.
	BroadcastChannel string `koanf:"broadcast_channel"`

	// ObserverBuffer is the notification buffer of each streaming observer.
	ObserverBuffer int `koanf:"observer_buffer"`

	// DeliveryTimeout bounds each notification delivery.
	DeliveryTimeout time.Duration `koanf:"delivery_timeout"`

	// Schedule optionally seeds the work schedule when none is stored.
	Schedule ScheduleConfig `koanf:"schedule"`
}

// ScheduleConfig is a work schedule in "HH:MM" form.
type ScheduleConfig struct {
	StartWork  string `koanf:"start_work"`
	LunchStart string `koanf:"lunch_start"`
	LunchEnd   string `koanf:"lunch_end"`
	EndWork    string `koanf:"end_work"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		TickInterval:     time.Minute,
		CleanupInterval:  7 * 24 * time.Hour,
		RetentionDays:    30,
		QueueSize:        1024,
		WorkerCount:      1,
		DedupeSize:       4096,
		StoreBackend:     repository.BackendSQLite,
		SQLitePath:       "workpulse.db",
		RedisAddr:        "localhost:6379",
		RedisKeyPrefix:   "workpulse:",
		BroadcastChannel: "workpulse:notifications",
		ObserverBuffer:   16,
		DeliveryTimeout:  2 * time.Second,
	}
}

// Validate checks the values Load cannot fix on its own.
func (c *Config) Validate(_ context.Context) error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.TickInterval <= 0 || c.CleanupInterval <= 0 {
		return fmt.Errorf("%w: intervals must be positive", ErrInvalidConfig)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention_days must be positive", ErrInvalidConfig)
	}
	if !slices.Contains(repository.Backends(), strings.ToLower(c.StoreBackend)) {
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, c.StoreBackend)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.SeedSchedule(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SeedSchedule parses the configured schedule. It returns nil when no
// schedule is configured.
func (c *Config) SeedSchedule() (*schedule.Schedule, error) {
	s := c.Schedule
	if s == (ScheduleConfig{}) {
		return nil, nil
	}
	parsed, err := schedule.Parse(s.StartWork, s.LunchStart, s.LunchEnd, s.EndWork)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return parsed, nil
}

// StoreSettings returns the repository settings for the configured backend.
func (c *Config) StoreSettings() repository.Settings {
	return repository.Settings{
		Backend:       c.StoreBackend,
		SQLitePath:    c.SQLitePath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		PostgresDSN:   c.PostgresDSN,
	}
}
