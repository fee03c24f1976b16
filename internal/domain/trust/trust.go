// Package trust scores camera feed integrity through layered frame checks.
package trust

import (
	"fmt"
	"math"

	"github.com/okian/kestrel/internal/domain/model"
)

// Default scorer configuration.
const (
	defaultRepeatWindow    = 10
	defaultFreezeTolerance = 5
	defaultFreezeSlope     = 10.0

	defaultEntropyFloor   = 4.0
	defaultEntropyCeiling = 7.9
	defaultEntropySlope   = 200.0

	defaultMotionWindow    = 10
	defaultStaticVariance  = 0.1
	defaultStaticMean      = 0.5
	defaultUniformVariance = 1.0
	defaultJitterCeiling   = 40.0

	defaultSmoothingAlpha      = 0.35
	defaultSuspiciousThreshold = 70.0

	maxTrust = 100.0
)

// Motion layer verdict scores. A perfectly still diff window reads as a
// static injected image, a near-zero variance one as an artificial pan, and
// heavy inter-frame churn without any repeat pressure as synthetic jitter.
const (
	staticImageScore = 30.0
	uniformPanScore  = 60.0
	jitterScore      = 45.0
)

// layerWeights hold the relative contribution of each trust layer.
type layerWeights struct {
	liveness float64
	entropy  float64
	motion   float64
}

// Scorer evaluates the three frame-analysis layers and fuses them into a
// smoothed 0-100 trust score. The Scorer is pure configuration; all
// per-stream memory lives in State.
type Scorer struct {
	repeatWindow    int
	freezeTolerance int
	freezeSlope     float64

	entropyFloor   float64
	entropyCeiling float64
	entropySlope   float64

	motionWindow    int
	staticVariance  float64
	staticMean      float64
	uniformVariance float64
	jitterCeiling   float64

	weights   layerWeights
	alpha     float64
	threshold float64
}

// NewScorer builds a scorer and validates its configuration.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{
		repeatWindow:    defaultRepeatWindow,
		freezeTolerance: defaultFreezeTolerance,
		freezeSlope:     defaultFreezeSlope,
		entropyFloor:    defaultEntropyFloor,
		entropyCeiling:  defaultEntropyCeiling,
		entropySlope:    defaultEntropySlope,
		motionWindow:    defaultMotionWindow,
		staticVariance:  defaultStaticVariance,
		staticMean:      defaultStaticMean,
		uniformVariance: defaultUniformVariance,
		jitterCeiling:   defaultJitterCeiling,
		weights:         layerWeights{liveness: 1, entropy: 1, motion: 1},
		alpha:           defaultSmoothingAlpha,
		threshold:       defaultSuspiciousThreshold,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scorer) validate() error {
	switch {
	case s.repeatWindow < 1:
		return fmt.Errorf("%w: repeat window %d", ErrInvalidScorerConfig, s.repeatWindow)
	case s.freezeTolerance < 0 || s.freezeSlope <= 0:
		return fmt.Errorf("%w: freeze tolerance %d, slope %.2f", ErrInvalidScorerConfig, s.freezeTolerance, s.freezeSlope)
	case s.entropyFloor <= 0 || s.entropyCeiling <= s.entropyFloor || s.entropySlope <= 0:
		return fmt.Errorf("%w: entropy floor %.2f must stay below ceiling %.2f with positive slope",
			ErrInvalidScorerConfig, s.entropyFloor, s.entropyCeiling)
	case s.motionWindow < 2:
		return fmt.Errorf("%w: motion window %d", ErrInvalidScorerConfig, s.motionWindow)
	case s.staticVariance < 0 || s.staticMean < 0:
		return fmt.Errorf("%w: static thresholds must be non-negative", ErrInvalidScorerConfig)
	case s.uniformVariance < s.staticVariance:
		return fmt.Errorf("%w: uniform variance %.2f below static variance %.2f",
			ErrInvalidScorerConfig, s.uniformVariance, s.staticVariance)
	case s.jitterCeiling <= 0:
		return fmt.Errorf("%w: jitter ceiling %.2f", ErrInvalidScorerConfig, s.jitterCeiling)
	case s.alpha <= 0 || s.alpha > 1:
		return fmt.Errorf("%w: smoothing alpha %.3f", ErrInvalidScorerConfig, s.alpha)
	case s.threshold <= 0 || s.threshold > maxTrust:
		return fmt.Errorf("%w: suspicious threshold %.2f", ErrInvalidScorerConfig, s.threshold)
	}
	for name, w := range map[string]float64{
		"liveness": s.weights.liveness,
		"entropy":  s.weights.entropy,
		"motion":   s.weights.motion,
	} {
		if w < 0 {
			return fmt.Errorf("%w: negative weight for %s", ErrInvalidLayerWeights, name)
		}
	}
	if s.weights.liveness+s.weights.entropy+s.weights.motion <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidLayerWeights)
	}
	return nil
}

// Threshold reports the configured suspicious cut point.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Update folds one frame into the stream's trust state and returns the
// smoothed trust score plus the suspicious flag. A malformed frame leaves the
// state untouched and is reported back so the caller can carry the prior
// score forward and warn.
func (s *Scorer) Update(state *State, frame *model.Frame) (float64, bool, error) {
	if state == nil {
		return maxTrust, false, nil
	}
	if frame == nil {
		return state.smoothed, state.suspicious, nil
	}
	if err := frame.Validate(); err != nil {
		return state.smoothed, state.suspicious, fmt.Errorf("trust update skipped: %w", err)
	}

	luma := luminancePlane(frame, state.cur)
	state.cur = luma

	liveness := s.livenessScore(state, fingerprint(luma, frame.Width, frame.Height))
	entropy := s.entropyScore(shannonEntropy(luma))
	motion := s.motionScore(state, luma)

	// The current plane becomes the previous one; buffers swap to avoid
	// reallocating two full planes per frame.
	state.cur, state.prev = state.prev, state.cur
	state.prevValid = true

	total := s.weights.liveness + s.weights.entropy + s.weights.motion
	raw := (s.weights.liveness*liveness + s.weights.entropy*entropy + s.weights.motion*motion) / total

	state.liveness = liveness
	state.entropy = entropy
	state.motion = motion
	state.smoothed = s.alpha*raw + (1-s.alpha)*state.smoothed
	state.suspicious = state.smoothed < s.threshold
	state.frames++

	return state.smoothed, state.suspicious, nil
}

// livenessScore tracks fingerprint repeats. Repeats within the recent window
// build freeze pressure, fresh frames bleed it off; the score only starts
// dropping once the pressure clears the tolerance, then falls by the slope
// per extra repeat. The pressure is capped where the score bottoms out so
// recovery after a long freeze stays proportional, not unbounded.
func (s *Scorer) livenessScore(state *State, print uint64) float64 {
	limit := s.freezeTolerance + int(math.Ceil(maxTrust/s.freezeSlope))
	if state.seenPrint(print) {
		if state.freeze < limit {
			state.freeze++
		}
	} else if state.freeze > 0 {
		state.freeze--
	}
	state.pushPrint(print)

	if state.freeze <= s.freezeTolerance {
		return maxTrust
	}
	return math.Max(0, maxTrust-float64(state.freeze-s.freezeTolerance)*s.freezeSlope)
}

// entropyScore penalizes frames whose luminance entropy falls below the
// blank/blackout floor or climbs above the synthetic-noise ceiling.
func (s *Scorer) entropyScore(entropy float64) float64 {
	switch {
	case entropy < s.entropyFloor:
		return entropy / s.entropyFloor * maxTrust
	case entropy > s.entropyCeiling:
		return math.Max(0, maxTrust-(entropy-s.entropyCeiling)*s.entropySlope)
	default:
		return maxTrust
	}
}

// motionScore folds the mean absolute difference against the previous frame
// into the rolling window and judges the window's statistics. Judgement waits
// for a full window; a dimension change drops the stale plane instead of
// diffing across it.
func (s *Scorer) motionScore(state *State, luma []byte) float64 {
	if state.prevValid && len(state.prev) == len(luma) {
		state.pushMotion(meanAbsDiff(luma, state.prev))
	}
	if !state.motionWindowFull() {
		return maxTrust
	}

	mean, variance := meanVariance(state.motionSamples())
	switch {
	case variance < s.staticVariance && mean < s.staticMean:
		return staticImageScore
	case variance < s.uniformVariance:
		return uniformPanScore
	case mean > s.jitterCeiling && state.freeze == 0:
		return jitterScore
	default:
		return maxTrust
	}
}
