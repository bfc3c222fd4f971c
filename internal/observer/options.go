package observer

import (
	"github.com/coder/quartz"
	"github.com/okian/workpulse/internal/domain/throttle"
	"github.com/okian/workpulse/pkg/logger"
)

// Option applies a configuration option to an Agent.
type Option func(*Agent)

// WithID overrides the generated observer id.
func WithID(id string) Option {
	return func(a *Agent) {
		if id != "" {
			a.id = id
		}
	}
}

// WithURL sets the page address reported by ping.
func WithURL(url string) Option {
	return func(a *Agent) {
		a.url = url
	}
}

// WithGate replaces the default throttle gate.
func WithGate(g *throttle.Gate) Option {
	return func(a *Agent) {
		if g != nil {
			a.gate = g
		}
	}
}

// WithClock sets the clock used to stamp interactions without a time.
func WithClock(c quartz.Clock) Option {
	return func(a *Agent) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithRetries resends a click whose delivery failed up to n more times
// under the same event id.
func WithRetries(n int) Option {
	return func(a *Agent) {
		if n >= 0 {
			a.retries = n
		}
	}
}

// WithLogger sets a custom logger for the agent.
func WithLogger(l logger.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}
