package observer

import "errors"

// Sentinel errors for the observer agent.
var (
	ErrNilSender        = errors.New("sender is required")
	ErrUnknownAction    = errors.New("unknown coordinator action")
	ErrUnknownInputType = errors.New("unknown interaction type")
)
