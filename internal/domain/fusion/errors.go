// Package fusion combines zone, behavior and trust signals into intent risk.
package fusion

import "errors"

var (
	// ErrInvalidEngineConfig marks an engine assembled from missing parts or
	// inconsistent level boundaries.
	ErrInvalidEngineConfig = errors.New("invalid fusion engine configuration")

	// ErrUnknownStream marks a reset aimed at a stream the engine has never seen.
	ErrUnknownStream = errors.New("unknown stream")
)
