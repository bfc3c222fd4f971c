package repository

import (
	"errors"

	"github.com/okian/workpulse/internal/domain/model"
)

// Sentinel errors for the key-value stores.
var (
	// ErrNotFound is model.ErrNotFound, re-exported for adapter callers.
	ErrNotFound       = model.ErrNotFound
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrClosed         = errors.New("store closed")
	ErrMissingDSN     = errors.New("missing connection string")
)
