package trust

import "errors"

// Sentinel kinds for scorer configuration errors.
var (
	ErrInvalidScorerConfig = errors.New("invalid trust scorer configuration")
	ErrInvalidLayerWeights = errors.New("invalid trust layer weights")
)
