// Package riskboard maintains the live ranking of tracked subjects by their
// current intent risk.
package riskboard

import "errors"

var (
	// ErrNotFound marks a lookup for a subject with no entry on the board.
	ErrNotFound = errors.New("subject not found")

	// ErrInvalidLimit marks a top-N query with a non-positive limit.
	ErrInvalidLimit = errors.New("limit must be positive")
)
