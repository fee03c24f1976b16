// Package fusion combines zone, behavior and trust signals into intent risk.
package fusion

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithLevelBoundaries sets the scores at which MEDIUM, HIGH and CRITICAL
// begin. Boundaries are validated as strictly ascending at construction.
func WithLevelBoundaries(medium, high, critical float64) Option {
	return func(e *Engine) {
		e.medium = medium
		e.high = high
		e.critical = critical
	}
}

// WithAbsenceFrames sets how many frame cycles a subject may go unseen before
// eviction.
func WithAbsenceFrames(frames uint64) Option {
	return func(e *Engine) {
		if frames > 0 {
			e.absenceFrames = frames
		}
	}
}
