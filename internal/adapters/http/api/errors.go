package api

import "errors"

// Sentinel kinds for request handling errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
)
