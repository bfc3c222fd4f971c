package tracking

import "errors"

// Sentinel errors for the tracking controller.
var (
	ErrNilDependency = errors.New("tracking: nil dependency")
)
