package schedule

import "errors"

// Sentinel errors for schedule parsing and validation.
var (
	ErrInvalidClock    = errors.New("invalid clock value")
	ErrInvalidSchedule = errors.New("invalid schedule")
)
