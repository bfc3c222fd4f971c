package service

import "errors"

// Sentinel errors for the service lifecycle.
var (
	ErrNotOpen      = errors.New("service not open")
	ErrNilSchedule  = errors.New("schedule is required")
	ErrRedisMissing = errors.New("redis broadcast needs a redis address or client")
)
