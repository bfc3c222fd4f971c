package simulator

import "errors"

// Error constants.
var (
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrNoHello          = errors.New("stream closed before hello")
	ErrVerification     = errors.New("click verification failed")
)
