// Package throttle rate-limits raw interactions on the observer side before
// they become clickDetected messages.
package throttle

import (
	"sync"
	"time"
)

// Kind groups raw interactions that share one throttle window.
type Kind int

// Interaction kinds.
const (
	// Primary covers click, mousedown and productive keydown. They share a window.
	Primary Kind = iota
	Scroll
	PointerMove
)

// Default windows and sampling.
const (
	DefaultPrimaryWindow = 100 * time.Millisecond
	DefaultScrollWindow  = time.Second
	DefaultMoveWindow    = 5 * time.Second
	DefaultMoveSampling  = 10
)

// Decision is the outcome of one Check.
type Decision int

// Decisions.
const (
	Forward Decision = iota
	Throttled
	Sampled
)

// String returns the metric label for d.
func (d Decision) String() string {
	switch d {
	case Forward:
		return "forward"
	case Throttled:
		return "throttled"
	case Sampled:
		return "sampled"
	default:
		return "unknown"
	}
}

// String returns the kind name used in payloads and metrics.
func (k Kind) String() string {
	switch k {
	case Primary:
		return "primary"
	case Scroll:
		return "scroll"
	case PointerMove:
		return "move"
	default:
		return "unknown"
	}
}

// ParseKind maps a payload kind name to a Kind. Empty means Primary.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "", "primary", "click", "mousedown", "keydown":
		return Primary, true
	case "scroll":
		return Scroll, true
	case "move", "mousemove":
		return PointerMove, true
	default:
		return Primary, false
	}
}

// Gate keeps the last accepted timestamp per kind for one observer.
// It is safe for concurrent use.
type Gate struct {
	mu        sync.Mutex
	windows   map[Kind]time.Duration
	last      map[Kind]time.Time
	moveEvery int
	moveCount int
}

// New creates a gate with the default windows.
func New(opts ...Option) *Gate {
	g := &Gate{
		windows: map[Kind]time.Duration{
			Primary:     DefaultPrimaryWindow,
			Scroll:      DefaultScrollWindow,
			PointerMove: DefaultMoveWindow,
		},
		last:      make(map[Kind]time.Time),
		moveEvery: DefaultMoveSampling,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check decides whether an interaction of kind at now should be forwarded.
// An interaction is throttled iff now - lastAccepted < window; the first
// interaction of each kind is always accepted.
func (g *Gate) Check(kind Kind, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	if last, ok := g.last[kind]; ok && now.Sub(last) < g.windows[kind] {
		return Throttled
	}
	g.last[kind] = now

	if kind != PointerMove {
		return Forward
	}
	g.moveCount++
	if g.moveCount%g.moveEvery != 0 {
		return Sampled
	}
	return Forward
}

// Allow is Check reduced to forward or not.
func (g *Gate) Allow(kind Kind, now time.Time) bool {
	return g.Check(kind, now) == Forward
}

// Reset forgets every timestamp and the move counter.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last = make(map[Kind]time.Time)
	g.moveCount = 0
}
