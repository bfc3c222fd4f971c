package stats

import "errors"

// Sentinel errors for stats operations.
var (
	ErrNilKV            = errors.New("stats: nil key-value store")
	ErrInvalidRetention = errors.New("stats: retention days must be positive")
)
