package types

import "errors"

// Sentinel errors for message decoding.
var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrMalformed      = errors.New("malformed message")
	ErrMissingPayload = errors.New("missing payload")
)
