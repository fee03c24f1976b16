package zone

import "errors"

// Sentinel kinds for classifier configuration errors.
var (
	ErrInvalidThresholds  = errors.New("invalid zone thresholds")
	ErrInvalidMultipliers = errors.New("invalid zone multipliers")
)
