package model

import "errors"

// Sentinel errors shared across the domain and adapters.
var (
	// ErrNoSchedule is returned when a decision needs a schedule and none is configured.
	ErrNoSchedule = errors.New("no schedule configured")
	// ErrStoreUnavailable wraps every key-value store read or write failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrDeliveryFailure marks a notification that could not reach an observer.
	ErrDeliveryFailure = errors.New("delivery failure")
	// ErrNotFound is returned by stores when a key has never been written.
	ErrNotFound = errors.New("key not found")
)
