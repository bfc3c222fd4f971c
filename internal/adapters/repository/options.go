package repository

import (
	"time"

	"github.com/okian/workpulse/pkg/logger"
)

type options struct {
	keyPrefix   string
	busyTimeout time.Duration
	table       string
	logger      logger.Logger
}

func defaultOptions() options {
	return options{
		keyPrefix:   "workpulse:",
		busyTimeout: 10 * time.Second,
		table:       "workpulse_kv",
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithKeyPrefix namespaces Redis keys. Other backends ignore it.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.keyPrefix = prefix
	}
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithTable sets the SQL table name used by the SQLite and Postgres stores.
func WithTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.table = name
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("repository")
	}
	return o
}
