package broadcast

import "errors"

// Sentinel errors for observer registration and delivery.
var (
	ErrDuplicateObserver = errors.New("observer already registered")
	ErrUnknownObserver   = errors.New("unknown observer")
	ErrBufferFull        = errors.New("observer buffer full")
	ErrObserverClosed    = errors.New("observer closed")
)
