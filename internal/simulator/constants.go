package simulator

import "time"

// HTTP status code constants.
const (
	StatusOK              = 200
	StatusAccepted        = 202
	StatusBadRequest      = 400
	StatusTooManyRequests = 429
)

// Defaults applied to zero config values.
const (
	DefaultObservers     = 4
	DefaultInteractions  = 200
	DefaultTimeout       = 10 * time.Second
	DefaultVerifyTimeout = 30 * time.Second
)

const (
	verifyPollInterval = 100 * time.Millisecond
	eventHello         = "hello"
)

const percentageMultiplier = 100
