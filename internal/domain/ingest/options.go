package ingest

import (
	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/domain/dedupe"
	"github.com/okian/workpulse/pkg/logger"
)

// Option applies a configuration option to the Ingestor.
type Option func(*Ingestor)

// WithDeduper enables eventId de-duplication.
func WithDeduper(d dedupe.Deduper) Option {
	return func(i *Ingestor) {
		if d != nil {
			i.dedupe = d
		}
	}
}

// WithClock sets the clock that stamps accepted events.
func WithClock(c quartz.Clock) Option {
	return func(i *Ingestor) {
		if c != nil {
			i.clock = c
		}
	}
}

// WithLogger sets a custom logger for the ingestor.
func WithLogger(l logger.Logger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}
