package tracking

import (
	"time"

	"github.com/coder/quartz"
	"github.com/okian/workpulse/pkg/logger"
)

// Option applies a configuration option to the Controller.
type Option func(*Controller)

// WithClock sets the clock used for transitions.
func WithClock(c quartz.Clock) Option {
	return func(ctl *Controller) {
		if c != nil {
			ctl.clock = c
		}
	}
}

// WithLocation sets the location minutes-of-day and date keys are computed in.
func WithLocation(loc *time.Location) Option {
	return func(ctl *Controller) {
		if loc != nil {
			ctl.loc = loc
		}
	}
}

// WithLogger sets a custom logger for the controller.
func WithLogger(l logger.Logger) Option {
	return func(ctl *Controller) {
		if l != nil {
			ctl.logger = l
		}
	}
}
