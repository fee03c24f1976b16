// Package fusion combines zone, behavior and trust signals into intent risk.
// The engine owns every per-stream and per-subject table; callers hand it one
// observation batch per frame cycle and get back the scored results plus the
// stream's feed status. No other component keeps subject state.
package fusion

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/okian/kestrel/internal/domain/behavior"
	"github.com/okian/kestrel/internal/domain/geo"
	"github.com/okian/kestrel/internal/domain/model"
	"github.com/okian/kestrel/internal/domain/trust"
	"github.com/okian/kestrel/internal/domain/zone"
)

// Default alert level boundaries and subject lifecycle.
const (
	defaultMediumBoundary   = 30.0
	defaultHighBoundary     = 60.0
	defaultCriticalBoundary = 80.0

	// defaultAbsenceFrames is how many frame cycles a subject may go unseen
	// before its state is evicted (3 s at 30 fps).
	defaultAbsenceFrames = 90

	trustScale = 100.0
	maxScore   = 100.0
)

// Engine scores one batch per stream per frame cycle. Streams are independent:
// each has its own trust state and subject table, guarded by a per-stream
// mutex so the control surface can inspect or reset a stream while workers
// process others.
type Engine struct {
	boundary *geo.Polygon
	zones    *zone.Classifier
	tracker  *behavior.Tracker
	scorer   *trust.Scorer

	medium   float64
	high     float64
	critical float64

	absenceFrames uint64

	mu      sync.RWMutex
	streams map[string]*streamState
}

// streamState is one camera stream's live memory. cycle counts processed
// batches and drives the absence sweep; frameSeq echoes the upstream sequence
// for the feed status.
type streamState struct {
	mu        sync.Mutex
	trust     *trust.State
	subjects  map[string]*subjectState
	cycle     uint64
	frameSeq  uint64
	updatedAt time.Time
}

// subjectState is one tracked subject: its last zone for hysteresis, its
// behavior history, and the cycle it was last observed in.
type subjectState struct {
	zone     model.Zone
	behavior *behavior.State
	lastSeen uint64
}

// Output is everything one frame cycle produced: results in observation
// order, the stream's feed status, subjects evicted by the absence sweep,
// and the carried frame warning when the buffer was malformed.
type Output struct {
	Results []model.IntentRiskResult
	Feed    model.FeedStatus

	// Evicted lists subjects dropped by the absence sweep, sorted.
	Evicted []string

	// Dropped counts observations skipped for non-finite coordinates.
	Dropped int

	// SuspiciousChanged reports that this cycle flipped the stream's
	// suspicious flag, in either direction.
	SuspiciousChanged bool

	// FrameWarn carries the malformed-frame warning; the trust score was
	// carried forward and results were still produced.
	FrameWarn error
}

// StreamStatus is one stream's live summary for the control surface.
type StreamStatus struct {
	Feed     model.FeedStatus `json:"feed"`
	Subjects int              `json:"subjects"`
	Cycles   uint64           `json:"cycles"`
}

// NewEngine assembles the fusion engine from its four parts.
func NewEngine(boundary *geo.Polygon, zones *zone.Classifier, tracker *behavior.Tracker, scorer *trust.Scorer, opts ...Option) (*Engine, error) {
	e := &Engine{
		boundary:      boundary,
		zones:         zones,
		tracker:       tracker,
		scorer:        scorer,
		medium:        defaultMediumBoundary,
		high:          defaultHighBoundary,
		critical:      defaultCriticalBoundary,
		absenceFrames: defaultAbsenceFrames,
		streams:       make(map[string]*streamState),
	}

	for _, opt := range opts {
		opt(e)
	}

	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) validate() error {
	switch {
	case e.boundary == nil:
		return fmt.Errorf("%w: missing boundary", ErrInvalidEngineConfig)
	case e.zones == nil:
		return fmt.Errorf("%w: missing zone classifier", ErrInvalidEngineConfig)
	case e.tracker == nil:
		return fmt.Errorf("%w: missing behavior tracker", ErrInvalidEngineConfig)
	case e.scorer == nil:
		return fmt.Errorf("%w: missing trust scorer", ErrInvalidEngineConfig)
	case e.medium <= 0 || e.medium >= e.high || e.high >= e.critical || e.critical > maxScore:
		return fmt.Errorf("%w: level boundaries %.1f/%.1f/%.1f must be ascending within (0,%.0f]",
			ErrInvalidEngineConfig, e.medium, e.high, e.critical, maxScore)
	case e.absenceFrames < 1:
		return fmt.Errorf("%w: absence frames %d", ErrInvalidEngineConfig, e.absenceFrames)
	}
	return nil
}

// Cycle processes one observation batch. The frame (when present) updates the
// stream's trust first, then every observation is scored in order. Each
// subject is handled atomically: the context is only checked between
// subjects, so a cancellation returns the results committed so far and never
// leaves a half-updated subject behind.
func (e *Engine) Cycle(ctx context.Context, batch *model.Batch) (*Output, error) {
	if batch == nil {
		return nil, fmt.Errorf("%w: nil batch", model.ErrMalformedBatch)
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	st := e.stream(batch.StreamID)
	st.mu.Lock()
	defer st.mu.Unlock()

	at := batch.At
	if at.IsZero() {
		at = time.Now()
	}
	st.cycle++
	st.frameSeq = batch.FrameSeq
	st.updatedAt = at

	wasSuspicious := st.trust.Suspicious()
	feedScore, suspicious, frameWarn := e.scorer.Update(st.trust, batch.Frame)
	if frameWarn != nil {
		frameWarn = fmt.Errorf("stream %s: %w", batch.StreamID, frameWarn)
	}
	trustFactor := feedScore / trustScale

	out := &Output{
		Results:           make([]model.IntentRiskResult, 0, len(batch.Observations)),
		SuspiciousChanged: suspicious != wasSuspicious,
		FrameWarn:         frameWarn,
	}

	for i := range batch.Observations {
		select {
		case <-ctx.Done():
			out.Feed = st.feedStatus(batch.StreamID, at)
			return out, ctx.Err()
		default:
		}

		obs := &batch.Observations[i]
		if !geo.Finite(obs.Position) {
			out.Dropped++
			continue
		}
		oat := obs.At
		if oat.IsZero() {
			oat = at
		}

		sub, ok := st.subjects[obs.SubjectID]
		if !ok {
			sub = &subjectState{
				zone:     model.ZoneSafe,
				behavior: behavior.NewState(e.tracker.HistoryCapacity()),
			}
			st.subjects[obs.SubjectID] = sub
		}

		dist := e.boundary.Distance(obs.Position)
		risk, events := e.tracker.Update(sub.behavior, behavior.Sample{
			At:       oat,
			Pos:      obs.Position,
			Dist:     dist,
			Approach: e.boundary.ApproachDirection(obs.Position),
		})
		sub.zone = e.zones.Classify(dist, sub.zone)
		sub.lastSeen = st.cycle

		mult := e.zones.Multiplier(sub.zone)
		score := math.Max(0, math.Min(maxScore, risk*mult*trustFactor))

		out.Results = append(out.Results, model.IntentRiskResult{
			StreamID:       batch.StreamID,
			SubjectID:      obs.SubjectID,
			Score:          score,
			Level:          e.levelFor(score),
			BehaviorRisk:   risk,
			ZoneMultiplier: mult,
			TrustFactor:    trustFactor,
			Zone:           sub.zone,
			Events:         events,
			SuspiciousFeed: suspicious,
			At:             oat,
		})
	}

	for id, sub := range st.subjects {
		if st.cycle-sub.lastSeen >= e.absenceFrames {
			delete(st.subjects, id)
			out.Evicted = append(out.Evicted, id)
		}
	}
	sort.Strings(out.Evicted)

	out.Feed = st.feedStatus(batch.StreamID, at)
	return out, nil
}

// levelFor maps a score to its alert level by the configured boundaries.
func (e *Engine) levelFor(score float64) model.AlertLevel {
	switch {
	case score >= e.critical:
		return model.LevelCritical
	case score >= e.high:
		return model.LevelHigh
	case score >= e.medium:
		return model.LevelMedium
	default:
		return model.LevelLow
	}
}

// Streams reports every known stream's live summary, sorted by stream id.
func (e *Engine) Streams() []StreamStatus {
	e.mu.RLock()
	ids := make([]string, 0, len(e.streams))
	states := make(map[string]*streamState, len(e.streams))
	for id, st := range e.streams {
		ids = append(ids, id)
		states[id] = st
	}
	e.mu.RUnlock()
	sort.Strings(ids)

	out := make([]StreamStatus, 0, len(ids))
	for _, id := range ids {
		st := states[id]
		st.mu.Lock()
		out = append(out, StreamStatus{
			Feed:     st.feedStatus(id, st.updatedAt),
			Subjects: len(st.subjects),
			Cycles:   st.cycle,
		})
		st.mu.Unlock()
	}
	return out
}

// ResetStream drops one stream entirely: its subject table and its trust
// state. The next batch for the stream starts from baseline. Returns the
// number of subjects dropped.
func (e *Engine) ResetStream(id string) (int, error) {
	e.mu.Lock()
	st, ok := e.streams[id]
	if ok {
		delete(e.streams, id)
	}
	e.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownStream, id)
	}
	st.mu.Lock()
	n := len(st.subjects)
	st.mu.Unlock()
	return n, nil
}

// Reset drops all streams. In-flight cycles finish against the detached
// state. Returns the number of subjects dropped.
func (e *Engine) Reset() int {
	e.mu.Lock()
	old := e.streams
	e.streams = make(map[string]*streamState)
	e.mu.Unlock()

	dropped := 0
	for _, st := range old {
		st.mu.Lock()
		dropped += len(st.subjects)
		st.mu.Unlock()
	}
	return dropped
}

// stream finds or creates a stream's state.
func (e *Engine) stream(id string) *streamState {
	e.mu.RLock()
	st, ok := e.streams[id]
	e.mu.RUnlock()
	if ok {
		return st
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok = e.streams[id]; ok {
		return st
	}
	st = &streamState{
		trust:    e.scorer.NewState(),
		subjects: make(map[string]*subjectState),
	}
	e.streams[id] = st
	return st
}

// feedStatus snapshots the stream's trust layers. Callers hold st.mu.
func (st *streamState) feedStatus(id string, at time.Time) model.FeedStatus {
	return model.FeedStatus{
		StreamID:   id,
		TrustScore: st.trust.TrustScore(),
		Suspicious: st.trust.Suspicious(),
		Liveness:   st.trust.Liveness(),
		Entropy:    st.trust.Entropy(),
		Motion:     st.trust.Motion(),
		FrameSeq:   st.frameSeq,
		At:         at,
	}
}
