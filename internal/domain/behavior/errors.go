package behavior

import "errors"

// Sentinel kinds for tracker configuration errors.
var (
	ErrInvalidTrackerConfig = errors.New("invalid tracker configuration")
	ErrInvalidWeights       = errors.New("invalid pattern weights")
)
