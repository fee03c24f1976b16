// Package behavior derives movement-pattern risk from bounded position histories.
package behavior

import (
	"fmt"
	"math"
	"time"

	"github.com/okian/kestrel/internal/domain/geo"
	"github.com/okian/kestrel/internal/domain/model"
)

// Default tracker configuration.
const (
	defaultHistoryCapacity = 600
	minHistoryCapacity     = 2

	defaultPacingWindow    = 30
	defaultApproachWindow  = 50
	defaultSurgeWindow     = 10

	defaultPacingMinReversals = 3
	defaultPacingPerReversal  = 0.15
	defaultPacingMinTangent   = 3.0 // units/s below which direction is noise

	defaultApproachMinReversals = 2
	defaultApproachDeadband     = 2.0  // distance delta treated as jitter
	defaultApproachClosureScale = 80.0 // closure magnitude mapping to full confidence

	defaultLoiterRadius = 50.0
	defaultLoiterDwell  = 8 * time.Second

	defaultSurgeRatio    = 3.0
	defaultSurgeMinSpeed = 5.0

	defaultSmoothingAlpha = 0.35
	defaultPresenceBase   = 15.0

	maxRisk = 100.0
)

// defaultWeights mirror the relative danger of each pattern: approach-retreat
// probing weighs heaviest, a single speed surge the least.
func defaultWeights() map[model.PatternKind]float64 {
	return map[model.PatternKind]float64{
		model.PatternPacing:          0.30,
		model.PatternApproachRetreat: 0.40,
		model.PatternLoitering:       0.20,
		model.PatternSuddenMovement:  0.10,
	}
}

// Tracker evaluates the four movement-pattern detectors over a subject's
// history window and folds them into a smoothed 0-100 behavior risk. The
// Tracker is pure configuration; all per-subject memory lives in State.
type Tracker struct {
	historyCapacity int

	pacingWindow       int
	pacingMinReversals int
	pacingPerReversal  float64
	pacingMinTangent   float64

	approachWindow       int
	approachMinReversals int
	approachDeadband     float64
	approachClosureScale float64

	loiterRadius float64
	loiterDwell  time.Duration

	surgeWindow   int
	surgeRatio    float64
	surgeMinSpeed float64

	weights      map[model.PatternKind]float64
	alpha        float64
	presenceBase float64
}

// NewTracker builds a tracker and validates its configuration.
func NewTracker(opts ...Option) (*Tracker, error) {
	t := &Tracker{
		historyCapacity:      defaultHistoryCapacity,
		pacingWindow:         defaultPacingWindow,
		pacingMinReversals:   defaultPacingMinReversals,
		pacingPerReversal:    defaultPacingPerReversal,
		pacingMinTangent:     defaultPacingMinTangent,
		approachWindow:       defaultApproachWindow,
		approachMinReversals: defaultApproachMinReversals,
		approachDeadband:     defaultApproachDeadband,
		approachClosureScale: defaultApproachClosureScale,
		loiterRadius:         defaultLoiterRadius,
		loiterDwell:          defaultLoiterDwell,
		surgeWindow:          defaultSurgeWindow,
		surgeRatio:           defaultSurgeRatio,
		surgeMinSpeed:        defaultSurgeMinSpeed,
		weights:              defaultWeights(),
		alpha:                defaultSmoothingAlpha,
		presenceBase:         defaultPresenceBase,
	}

	for _, opt := range opts {
		opt(t)
	}

	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tracker) validate() error {
	switch {
	case t.historyCapacity < minHistoryCapacity:
		return fmt.Errorf("%w: history capacity %d", ErrInvalidTrackerConfig, t.historyCapacity)
	case t.pacingWindow < 2 || t.approachWindow < 2 || t.surgeWindow < 2:
		return fmt.Errorf("%w: detector windows must hold at least 2 samples", ErrInvalidTrackerConfig)
	case t.pacingMinReversals < 1 || t.approachMinReversals < 1:
		return fmt.Errorf("%w: reversal minimums must be positive", ErrInvalidTrackerConfig)
	case t.pacingPerReversal <= 0 || t.pacingPerReversal > 1:
		return fmt.Errorf("%w: per-reversal confidence %.2f", ErrInvalidTrackerConfig, t.pacingPerReversal)
	case t.approachDeadband < 0 || t.approachClosureScale <= 0:
		return fmt.Errorf("%w: approach deadband/closure scale", ErrInvalidTrackerConfig)
	case t.loiterRadius <= 0 || t.loiterDwell <= 0:
		return fmt.Errorf("%w: loiter radius/dwell", ErrInvalidTrackerConfig)
	case t.surgeRatio <= 1 || t.surgeMinSpeed < 0:
		return fmt.Errorf("%w: surge ratio %.2f", ErrInvalidTrackerConfig, t.surgeRatio)
	case t.alpha <= 0 || t.alpha > 1:
		return fmt.Errorf("%w: smoothing alpha %.3f", ErrInvalidTrackerConfig, t.alpha)
	case t.presenceBase < 0 || t.presenceBase > maxRisk:
		return fmt.Errorf("%w: presence base %.2f", ErrInvalidTrackerConfig, t.presenceBase)
	}
	sum := 0.0
	for kind, w := range t.weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: weight %.2f for %s", ErrInvalidWeights, w, kind)
		}
		sum += w
	}
	if sum <= 0 {
		return fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}
	return nil
}

// HistoryCapacity reports the per-subject ring size this tracker expects.
func (t *Tracker) HistoryCapacity() int { return t.historyCapacity }

// Update folds one observation into the subject's history and returns the
// smoothed behavior risk plus the patterns active in the current window.
// Non-finite samples are dropped; the smoothed risk then simply carries.
func (t *Tracker) Update(state *State, sample Sample) (float64, []model.BehaviorEvent) {
	if state == nil {
		return 0, nil
	}
	if geo.Finite(sample.Pos) && !math.IsNaN(sample.Dist) && !math.IsInf(sample.Dist, 0) {
		state.push(sample)
	}
	if state.Len() == 0 {
		return 0, nil
	}

	events := t.evaluate(state)

	raw := t.presenceBase
	for _, ev := range events {
		raw += t.weights[ev.Kind] * ev.Confidence * maxRisk
	}
	raw = clamp(raw, 0, maxRisk)

	state.smoothed = t.alpha*raw + (1-t.alpha)*state.smoothed
	return state.smoothed, events
}

// evaluate runs all detectors over the current history.
func (t *Tracker) evaluate(state *State) []model.BehaviorEvent {
	var events []model.BehaviorEvent
	if ev, ok := t.detectPacing(state.lastN(t.pacingWindow)); ok {
		events = append(events, ev)
	}
	if ev, ok := t.detectApproachRetreat(state.lastN(t.approachWindow)); ok {
		events = append(events, ev)
	}
	if ev, ok := t.detectLoitering(state.lastN(state.Len())); ok {
		events = append(events, ev)
	}
	if ev, ok := t.detectSurge(state.lastN(t.surgeWindow)); ok {
		events = append(events, ev)
	}
	return events
}

// detectPacing counts sign reversals of the tangential velocity component.
// The tangent at each segment is the perpendicular of the approach direction
// recorded with the segment's first sample.
func (t *Tracker) detectPacing(window []Sample) (model.BehaviorEvent, bool) {
	reversals := 0
	lastSign := 0
	for i := 1; i < len(window); i++ {
		a, b := window[i-1], window[i]
		dt := b.At.Sub(a.At).Seconds()
		if dt <= 0 {
			continue
		}
		if a.Approach.X == 0 && a.Approach.Y == 0 {
			continue
		}
		// tangent is the approach direction rotated 90 degrees
		tx, ty := -a.Approach.Y, a.Approach.X
		tangential := ((b.Pos.X-a.Pos.X)*tx + (b.Pos.Y-a.Pos.Y)*ty) / dt
		if math.Abs(tangential) < t.pacingMinTangent {
			continue
		}
		sign := 1
		if tangential < 0 {
			sign = -1
		}
		if lastSign != 0 && sign != lastSign {
			reversals++
		}
		lastSign = sign
	}
	if reversals < t.pacingMinReversals {
		return model.BehaviorEvent{}, false
	}
	return model.BehaviorEvent{
		Kind:       model.PatternPacing,
		Confidence: clamp(float64(reversals)*t.pacingPerReversal, 0, 1),
		WindowSpan: span(window),
	}, true
}

// detectApproachRetreat counts reversals of the boundary-distance trend,
// weighted by how much ground the subject closed while approaching.
func (t *Tracker) detectApproachRetreat(window []Sample) (model.BehaviorEvent, bool) {
	reversals := 0
	closure := 0.0
	lastTrend := 0
	for i := 1; i < len(window); i++ {
		delta := window[i].Dist - window[i-1].Dist
		if math.Abs(delta) < t.approachDeadband {
			continue
		}
		trend := 1
		if delta < 0 {
			trend = -1
			closure += -delta
		}
		if lastTrend != 0 && trend != lastTrend {
			reversals++
		}
		lastTrend = trend
	}
	if reversals < t.approachMinReversals {
		return model.BehaviorEvent{}, false
	}
	return model.BehaviorEvent{
		Kind:       model.PatternApproachRetreat,
		Confidence: clamp(closure/t.approachClosureScale, 0, 1),
		WindowSpan: span(window),
	}, true
}

// loiterBaseConfidence is the confidence the moment the dwell threshold is
// met; it ramps linearly to 1 at twice the dwell.
const loiterBaseConfidence = 0.25

// detectLoitering fires when the whole history stays within loiterRadius of
// its centroid for at least the dwell time.
func (t *Tracker) detectLoitering(window []Sample) (model.BehaviorEvent, bool) {
	dwell := span(window)
	if dwell < t.loiterDwell || len(window) < 2 {
		return model.BehaviorEvent{}, false
	}
	var cx, cy float64
	for _, s := range window {
		cx += s.Pos.X
		cy += s.Pos.Y
	}
	cx /= float64(len(window))
	cy /= float64(len(window))
	for _, s := range window {
		if math.Hypot(s.Pos.X-cx, s.Pos.Y-cy) > t.loiterRadius {
			return model.BehaviorEvent{}, false
		}
	}
	overshoot := float64(dwell-t.loiterDwell) / float64(t.loiterDwell)
	conf := clamp(loiterBaseConfidence+(1-loiterBaseConfidence)*overshoot, loiterBaseConfidence, 1)
	return model.BehaviorEvent{
		Kind:       model.PatternLoitering,
		Confidence: conf,
		WindowSpan: dwell,
	}, true
}

// detectSurge compares the latest instantaneous speed against the subject's
// own rolling average, so camera scale never needs an absolute threshold.
func (t *Tracker) detectSurge(window []Sample) (model.BehaviorEvent, bool) {
	if len(window) < 3 {
		return model.BehaviorEvent{}, false
	}
	speeds := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		dt := window[i].At.Sub(window[i-1].At).Seconds()
		if dt <= 0 {
			continue
		}
		d := math.Hypot(window[i].Pos.X-window[i-1].Pos.X, window[i].Pos.Y-window[i-1].Pos.Y)
		speeds = append(speeds, d/dt)
	}
	if len(speeds) < 2 {
		return model.BehaviorEvent{}, false
	}
	latest := speeds[len(speeds)-1]
	mean := 0.0
	for _, v := range speeds[:len(speeds)-1] {
		mean += v
	}
	mean /= float64(len(speeds) - 1)
	if mean < t.surgeMinSpeed {
		return model.BehaviorEvent{}, false
	}
	ratio := latest / mean
	if ratio <= t.surgeRatio {
		return model.BehaviorEvent{}, false
	}
	return model.BehaviorEvent{
		Kind:       model.PatternSuddenMovement,
		Confidence: clamp((ratio-t.surgeRatio)/t.surgeRatio, 0, 1),
		WindowSpan: span(window),
	}, true
}

// span is the time covered by a chronological sample window.
func span(window []Sample) time.Duration {
	if len(window) < 2 {
		return 0
	}
	return window[len(window)-1].At.Sub(window[0].At)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
