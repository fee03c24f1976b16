package geo

import "errors"

// Sentinel kinds for boundary construction errors.
var (
	ErrInvalidBoundary = errors.New("invalid boundary")
)
