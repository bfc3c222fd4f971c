package model

import "time"

// ClickEvent is one accepted interaction waiting to be counted.
type ClickEvent struct {
	EventID    string    // optional, set by observers that retry
	ObserverID string    // sender, empty for anonymous callers
	Kind       string    // primary, scroll or move
	At         time.Time // acceptance time on the coordinator clock
}
