// Package behavior derives movement-pattern risk from bounded position histories.
package behavior

import (
	"time"

	"github.com/okian/kestrel/internal/domain/model"
)

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithHistoryCapacity sets the per-subject ring buffer size.
func WithHistoryCapacity(capacity int) Option {
	return func(t *Tracker) {
		if capacity > 0 {
			t.historyCapacity = capacity
		}
	}
}

// WithPacing tunes the pacing detector: window sample count, minimum
// reversals before firing, and confidence added per reversal.
func WithPacing(window, minReversals int, perReversal float64) Option {
	return func(t *Tracker) {
		if window > 0 {
			t.pacingWindow = window
		}
		if minReversals > 0 {
			t.pacingMinReversals = minReversals
		}
		if perReversal > 0 {
			t.pacingPerReversal = perReversal
		}
	}
}

// WithPacingMinTangent sets the tangential speed below which motion direction
// is treated as jitter.
func WithPacingMinTangent(minTangent float64) Option {
	return func(t *Tracker) {
		if minTangent >= 0 {
			t.pacingMinTangent = minTangent
		}
	}
}

// WithApproachRetreat tunes the approach-retreat detector.
func WithApproachRetreat(window, minReversals int, deadband, closureScale float64) Option {
	return func(t *Tracker) {
		if window > 0 {
			t.approachWindow = window
		}
		if minReversals > 0 {
			t.approachMinReversals = minReversals
		}
		if deadband >= 0 {
			t.approachDeadband = deadband
		}
		if closureScale > 0 {
			t.approachClosureScale = closureScale
		}
	}
}

// WithLoitering tunes the loitering detector radius and dwell threshold.
func WithLoitering(radius float64, dwell time.Duration) Option {
	return func(t *Tracker) {
		if radius > 0 {
			t.loiterRadius = radius
		}
		if dwell > 0 {
			t.loiterDwell = dwell
		}
	}
}

// WithSurge tunes the sudden-movement detector: window sample count, the
// speed ratio over the subject's own average that triggers it, and the mean
// speed below which the subject counts as stationary.
func WithSurge(window int, ratio, minSpeed float64) Option {
	return func(t *Tracker) {
		if window > 0 {
			t.surgeWindow = window
		}
		if ratio > 1 {
			t.surgeRatio = ratio
		}
		if minSpeed >= 0 {
			t.surgeMinSpeed = minSpeed
		}
	}
}

// WithWeights sets the per-pattern contribution weights.
func WithWeights(weights map[model.PatternKind]float64) Option {
	return func(t *Tracker) {
		if len(weights) > 0 {
			w := make(map[model.PatternKind]float64, len(weights))
			for kind, v := range weights {
				w[kind] = v
			}
			t.weights = w
		}
	}
}

// WithSmoothing sets the exponential smoothing factor.
func WithSmoothing(alpha float64) Option {
	return func(t *Tracker) {
		if alpha > 0 && alpha <= 1 {
			t.alpha = alpha
		}
	}
}

// WithPresenceBase sets the ambient risk assigned to any tracked subject with
// history, before pattern contributions.
func WithPresenceBase(base float64) Option {
	return func(t *Tracker) {
		if base >= 0 {
			t.presenceBase = base
		}
	}
}
