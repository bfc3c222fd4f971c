package scheduler

import "errors"

// Sentinel errors for job registration.
var (
	ErrNilJob          = errors.New("job is required")
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrDuplicateJob    = errors.New("job already registered")
	ErrAlreadyStarted  = errors.New("scheduler already started")
)
