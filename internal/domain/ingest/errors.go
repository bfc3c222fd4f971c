package ingest

import "errors"

// Sentinel errors for ingest construction.
var (
	ErrNilDependency = errors.New("ingest: nil dependency")
)
