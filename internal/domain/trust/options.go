// Package trust scores camera feed integrity through layered frame checks.
package trust

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithLiveness tunes the frozen-feed detector: how many recent fingerprints
// are compared, how many repeats are tolerated, and how many points the score
// loses per repeat beyond the tolerance.
func WithLiveness(repeatWindow, tolerance int, slope float64) Option {
	return func(s *Scorer) {
		if repeatWindow > 0 {
			s.repeatWindow = repeatWindow
		}
		if tolerance >= 0 {
			s.freezeTolerance = tolerance
		}
		if slope > 0 {
			s.freezeSlope = slope
		}
	}
}

// WithEntropy tunes the information-content detector: the blank/blackout
// floor, the synthetic-noise ceiling, and the penalty slope above it.
func WithEntropy(floor, ceiling, slope float64) Option {
	return func(s *Scorer) {
		if floor > 0 {
			s.entropyFloor = floor
		}
		if ceiling > 0 {
			s.entropyCeiling = ceiling
		}
		if slope > 0 {
			s.entropySlope = slope
		}
	}
}

// WithMotion tunes the motion realism detector: the rolling diff window, the
// variance below which motion counts as artificially uniform, and the mean
// diff above which it counts as synthetic jitter.
func WithMotion(window int, uniformVariance, jitterCeiling float64) Option {
	return func(s *Scorer) {
		if window > 1 {
			s.motionWindow = window
		}
		if uniformVariance > 0 {
			s.uniformVariance = uniformVariance
		}
		if jitterCeiling > 0 {
			s.jitterCeiling = jitterCeiling
		}
	}
}

// WithWeights sets the relative contribution of the three layers.
func WithWeights(liveness, entropy, motion float64) Option {
	return func(s *Scorer) {
		s.weights = layerWeights{liveness: liveness, entropy: entropy, motion: motion}
	}
}

// WithSmoothing sets the exponential smoothing factor.
func WithSmoothing(alpha float64) Option {
	return func(s *Scorer) {
		if alpha > 0 && alpha <= 1 {
			s.alpha = alpha
		}
	}
}

// WithThreshold sets the trust score below which the feed is suspicious.
func WithThreshold(threshold float64) Option {
	return func(s *Scorer) {
		if threshold > 0 {
			s.threshold = threshold
		}
	}
}
