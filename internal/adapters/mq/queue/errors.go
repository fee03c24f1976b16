package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	// ErrClosed marks an enqueue attempt against a queue that has been
	// shut down. Callers distinguish it from plain backpressure.
	ErrClosed = errors.New("queue closed")
)
