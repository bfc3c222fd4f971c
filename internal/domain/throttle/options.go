package throttle

import "time"

// Option applies a configuration option to a Gate.
type Option func(*Gate)

// WithWindow overrides the window of one kind.
func WithWindow(kind Kind, window time.Duration) Option {
	return func(g *Gate) {
		if window >= 0 {
			g.windows[kind] = window
		}
	}
}

// WithMoveSampling forwards only every n-th window-accepted pointer move.
func WithMoveSampling(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.moveEvery = n
		}
	}
}
