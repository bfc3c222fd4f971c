package broadcast

import (
	"context"
	"time"

	"github.com/okian/workpulse/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithDeliveryTimeout bounds each observer delivery.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithJoinHook runs fn after an observer registers. It is used to re-sync
// observers that join while a session is open.
func WithJoinHook(fn func(ctx context.Context, o Observer)) Option {
	return func(h *Hub) {
		h.onJoin = fn
	}
}
