package model

import "errors"

// Sentinel kinds for model validation errors.
var (
	// ErrMalformedFrame marks a frame buffer whose dimensions, channel count
	// and byte length disagree. Trust updates skip such frames.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrMalformedBatch marks an ingest envelope missing required identifiers.
	ErrMalformedBatch = errors.New("malformed batch")
)
