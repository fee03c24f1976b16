// Package service assembles the intent risk pipeline behind the HTTP API:
// the fusion engine, the risk board, the sharded ingest queue with its
// worker pool, and the websocket hub.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	ingestqueue "github.com/okian/kestrel/internal/adapters/mq/queue"
	workerpool "github.com/okian/kestrel/internal/adapters/mq/worker"
	"github.com/okian/kestrel/internal/adapters/riskboard"
	"github.com/okian/kestrel/internal/adapters/ws"
	"github.com/okian/kestrel/internal/config"
	"github.com/okian/kestrel/internal/domain/behavior"
	"github.com/okian/kestrel/internal/domain/dedupe"
	"github.com/okian/kestrel/internal/domain/fusion"
	"github.com/okian/kestrel/internal/domain/geo"
	"github.com/okian/kestrel/internal/domain/model"
	"github.com/okian/kestrel/internal/domain/trust"
	"github.com/okian/kestrel/internal/domain/zone"
	"github.com/okian/kestrel/pkg/logger"
	"github.com/okian/kestrel/pkg/metrics"
)

// Service implements the API dependencies for the intent risk system. It is
// also the worker pool's batch processor: workers feed dequeued batches back
// into Process, which runs the fusion cycle and publishes the results.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine  *fusion.Engine
	board   riskboard.Store
	deduper dedupe.Deduper
	queue   ingestqueue.Queue
	pool    *workerpool.Pool
	hub     *ws.Hub

	// Configuration
	cfg *config.Config

	// State
	started bool
	hubStop context.CancelFunc
	session sessionCounters

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the full service configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore sets a custom risk board implementation.
func WithStore(store riskboard.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.board = store
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:    config.New(),
		logger: nil, // Will be replaced when service starts
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start validates the configuration and brings up every component. The
// worker pool and the websocket hub run until Stop or until ctx is canceled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting intent risk service...")

	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("service config: %w", err)
	}

	engine, err := buildEngine(s.cfg)
	if err != nil {
		return fmt.Errorf("building fusion engine: %w", err)
	}
	s.engine = engine

	if s.board == nil {
		s.board = riskboard.NewMemoryStore()
	}
	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.cfg.Pipeline.DedupeSize),
	)
	s.queue = ingestqueue.NewShardedQueue(
		ingestqueue.WithShards(s.cfg.Pipeline.Shards),
		ingestqueue.WithShardCapacity(s.cfg.Pipeline.ShardCapacity),
	)

	// One worker per queue shard; the service itself processes batches.
	s.pool = workerpool.NewPool(s.queue, s)
	s.pool.Start(ctx)

	s.hub = ws.NewHub()
	hubCtx, hubStop := context.WithCancel(ctx)
	s.hubStop = hubStop
	go func() {
		if err := s.hub.Run(hubCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error(hubCtx, "websocket hub stopped", logger.Error(err))
		}
	}()

	s.session.reset()
	s.started = true
	s.logger.Info(ctx, "intent risk service started",
		logger.Int("shards", s.cfg.Pipeline.Shards),
		logger.Int("shardCapacity", s.cfg.Pipeline.ShardCapacity),
		logger.Int("dedupeSize", s.cfg.Pipeline.DedupeSize),
		logger.Int("boundaryVertices", len(s.cfg.Boundary.Polygon)),
	)

	return nil
}

// Stop gracefully shuts down the service, draining queued batches before the
// workers exit, and logs the session summary.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping intent risk service...")

	// Shutdown closes the queue first, so workers drain what is left.
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
		}
	}

	if s.hubStop != nil {
		s.hubStop()
	}

	s.started = false
	s.logger.Info(ctx, "intent risk service stopped", s.session.logFields()...)
}

// buildEngine maps the configuration onto the four domain components and
// fuses them.
func buildEngine(cfg *config.Config) (*fusion.Engine, error) {
	vertices := make([]geo.Point, 0, len(cfg.Boundary.Polygon))
	for _, pt := range cfg.Boundary.Polygon {
		vertices = append(vertices, geo.Point{X: pt[0], Y: pt[1]})
	}
	boundary, err := geo.NewPolygon(vertices)
	if err != nil {
		return nil, err
	}

	z := cfg.Zones
	zones, err := zone.NewClassifier(
		zone.WithThresholds(z.SafeMin, z.WarningMin, z.DangerMin),
		zone.WithMargin(z.HysteresisMargin),
		zone.WithMultipliers(map[model.Zone]float64{
			model.ZoneSafe:      z.Multipliers.Safe,
			model.ZoneWarning:   z.Multipliers.Warning,
			model.ZoneDanger:    z.Multipliers.Danger,
			model.ZoneIntrusion: z.Multipliers.Intrusion,
		}),
	)
	if err != nil {
		return nil, err
	}

	b := cfg.Behavior
	tracker, err := behavior.NewTracker(
		behavior.WithHistoryCapacity(b.Window),
		behavior.WithSmoothing(b.SmoothingAlpha),
		behavior.WithPresenceBase(b.PresenceBase),
		behavior.WithWeights(map[model.PatternKind]float64{
			model.PatternPacing:          b.Weights.Pacing,
			model.PatternApproachRetreat: b.Weights.ApproachRetreat,
			model.PatternLoitering:       b.Weights.Loitering,
			model.PatternSuddenMovement:  b.Weights.SuddenMovement,
		}),
		behavior.WithPacing(b.Pacing.Window, b.Pacing.MinReversals, b.Pacing.PerReversal),
		behavior.WithPacingMinTangent(b.Pacing.MinTangent),
		behavior.WithApproachRetreat(b.Approach.Window, b.Approach.MinReversals, b.Approach.Deadband, b.Approach.ClosureScale),
		behavior.WithLoitering(b.Loiter.Radius, b.Loiter.Dwell),
		behavior.WithSurge(b.Surge.Window, b.Surge.Ratio, b.Surge.MinSpeed),
	)
	if err != nil {
		return nil, err
	}

	t := cfg.Trust
	scorer, err := trust.NewScorer(
		trust.WithSmoothing(t.SmoothingAlpha),
		trust.WithThreshold(t.SuspiciousThreshold),
		trust.WithWeights(t.Weights.Liveness, t.Weights.Entropy, t.Weights.Motion),
		trust.WithLiveness(t.Liveness.RepeatWindow, t.Liveness.Tolerance, t.Liveness.Slope),
		trust.WithEntropy(t.Entropy.Floor, t.Entropy.Ceiling, t.Entropy.Slope),
		trust.WithMotion(t.Motion.Window, t.Motion.UniformVar, t.Motion.JitterCeiling),
	)
	if err != nil {
		return nil, err
	}

	return fusion.NewEngine(boundary, zones, tracker, scorer,
		fusion.WithLevelBoundaries(cfg.Risk.Medium, cfg.Risk.High, cfg.Risk.Critical),
		fusion.WithAbsenceFrames(uint64(cfg.Behavior.AbsenceFrames)),
	)
}

// SeenAndRecord atomically checks if a batch key was seen and records it if
// not. Returns true if the batch was already seen, false if newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordBatchDuplicate()
		s.session.add(func(c *counters) { c.duplicates++ })
	}
	return seen
}

// Unrecord removes a batch key from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits a batch for asynchronous analysis. Returns false when the
// owning shard is full, which the API surfaces as backpressure.
func (s *Service) Enqueue(ctx context.Context, b *model.Batch) bool {
	if b == nil {
		return false
	}

	s.logger.Debug(ctx, "enqueueing batch",
		logger.String("streamID", b.StreamID),
		logger.String("batchID", b.BatchID),
		logger.Uint64("frameSeq", b.FrameSeq),
		logger.Int("observations", len(b.Observations)),
	)

	ok := s.queue.Enqueue(ctx, b)
	if ok {
		metrics.RecordBatchIngested()
	} else {
		metrics.RecordBatchRejected()
		s.session.add(func(c *counters) { c.rejected++ })
	}
	return ok
}

// Process runs one dequeued batch through the fusion engine and publishes
// the outcome. It implements the worker pool's Processor contract.
func (s *Service) Process(ctx context.Context, b *model.Batch) error {
	start := time.Now()

	out, err := s.engine.Cycle(ctx, b)
	if err != nil {
		metrics.RecordErrorByComponent("engine", "cycle_error")
		return fmt.Errorf("cycle stream %s batch %s: %w", b.StreamID, b.BatchID, err)
	}

	s.publish(ctx, b, out)
	metrics.RecordCycleLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// publish pushes one cycle's outcome to the risk board, the metrics
// registry and the websocket hub.
func (s *Service) publish(ctx context.Context, b *model.Batch, out *fusion.Output) {
	if out.FrameWarn != nil {
		metrics.RecordFrameMalformed()
		s.session.add(func(c *counters) { c.malformedFrames++ })
		s.logger.Warn(ctx, "frame skipped by trust scorer",
			logger.String("streamID", b.StreamID),
			logger.Uint64("frameSeq", b.FrameSeq),
			logger.Error(out.FrameWarn),
		)
	} else if b.Frame != nil {
		metrics.RecordFrameProcessed()
	}

	if out.Dropped > 0 {
		metrics.RecordErrorByComponent("engine", "non_finite_observation")
		s.logger.Warn(ctx, "observations dropped",
			logger.String("streamID", b.StreamID),
			logger.Int("count", out.Dropped),
		)
	}

	metrics.RecordObservations(len(out.Results))
	s.session.add(func(c *counters) {
		c.cycles++
		c.observations += uint64(len(out.Results))
	})

	for i := range out.Results {
		res := &out.Results[i]

		boardStart := time.Now()
		err := s.board.Upsert(ctx, riskboard.Entry{
			StreamID:       res.StreamID,
			SubjectID:      res.SubjectID,
			Score:          res.Score,
			Level:          res.Level,
			Zone:           res.Zone,
			BehaviorRisk:   res.BehaviorRisk,
			TrustFactor:    res.TrustFactor,
			SuspiciousFeed: res.SuspiciousFeed,
			At:             res.At,
		})
		if err != nil {
			metrics.RecordErrorByComponent("riskboard", "upsert_error")
			s.logger.Error(ctx, "risk board upsert failed",
				logger.String("subjectID", res.SubjectID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordBoardUpdateLatency(float64(time.Since(boardStart).Milliseconds()))

		metrics.RecordRiskResult(res.Level.String())
		metrics.RecordRiskScore(res.Score)
		for _, ev := range res.Events {
			metrics.RecordBehaviorEvent(string(ev.Kind))
		}
		s.session.add(func(c *counters) { c.alerts[res.Level]++ })
	}

	for _, id := range out.Evicted {
		s.board.Remove(ctx, b.StreamID, id)
	}
	if n := len(out.Evicted); n > 0 {
		metrics.RecordSubjectEvicted(n)
		s.session.add(func(c *counters) { c.evictions += uint64(n) })
		s.logger.Info(ctx, "idle subjects evicted",
			logger.String("streamID", b.StreamID),
			logger.Int("count", n),
		)
	}
	metrics.UpdateBoardSubjects(s.board.Count(ctx))
	metrics.UpdateFeedTrust(b.StreamID, out.Feed.TrustScore)

	if out.SuspiciousChanged {
		s.hub.BroadcastFeedAlert(out.Feed)
		s.refreshStreamGauges()
		if out.Feed.Suspicious {
			metrics.RecordSuspiciousTransition()
			s.session.add(func(c *counters) { c.suspiciousFlips++ })
			s.logger.Warn(ctx, "camera feed turned suspicious",
				logger.String("streamID", b.StreamID),
				logger.Float64("trustScore", out.Feed.TrustScore),
				logger.Float64("liveness", out.Feed.Liveness),
				logger.Float64("entropy", out.Feed.Entropy),
				logger.Float64("motion", out.Feed.Motion),
			)
		} else {
			s.logger.Info(ctx, "camera feed recovered",
				logger.String("streamID", b.StreamID),
				logger.Float64("trustScore", out.Feed.TrustScore),
			)
		}
	}

	s.hub.BroadcastFrameResult(b.StreamID, out.Feed.FrameSeq, out.Results, out.Feed)
}

// TopRisks returns the n highest-risk subjects on the board in rank order.
func (s *Service) TopRisks(ctx context.Context, n int) ([]riskboard.Entry, error) {
	start := time.Now()
	entries, err := s.board.TopN(ctx, n)
	if err != nil {
		return nil, err
	}
	metrics.RecordBoardQueryLatency(float64(time.Since(start).Milliseconds()))
	return entries, nil
}

// Subject returns the current assessment for a subject id.
func (s *Service) Subject(ctx context.Context, subjectID string) (riskboard.Entry, error) {
	return s.board.Get(ctx, subjectID)
}

// Streams reports every known stream's live summary, sorted by stream id.
func (s *Service) Streams(_ context.Context) []fusion.StreamStatus {
	return s.engine.Streams()
}

// ResetStream drops one stream's analysis state and its board entries. The
// next batch for the stream starts from a clean baseline.
func (s *Service) ResetStream(ctx context.Context, streamID string) (int, error) {
	dropped, err := s.engine.ResetStream(streamID)
	if err != nil {
		return 0, err
	}

	removed := s.board.RemoveStream(ctx, streamID)
	metrics.RecordStreamReset()
	s.refreshStreamGauges()
	s.logger.Info(ctx, "stream reset",
		logger.String("streamID", streamID),
		logger.Int("subjectsDropped", dropped),
		logger.Int("boardEntriesRemoved", removed),
	)
	return dropped, nil
}

// ResetAll drops every stream's analysis state and empties the board.
func (s *Service) ResetAll(ctx context.Context) int {
	streams := s.engine.Streams()
	dropped := s.engine.Reset()
	for _, st := range streams {
		s.board.RemoveStream(ctx, st.Feed.StreamID)
	}
	metrics.RecordStreamReset()
	s.refreshStreamGauges()
	s.logger.Info(ctx, "all streams reset",
		logger.Int("streams", len(streams)),
		logger.Int("subjectsDropped", dropped),
	)
	return dropped
}

// Hub exposes the websocket hub so the HTTP layer can mount its handler.
func (s *Service) Hub() *ws.Hub {
	return s.hub
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":       s.started,
		"shards":        s.cfg.Pipeline.Shards,
		"shardCapacity": s.cfg.Pipeline.ShardCapacity,
		"dedupeSize":    s.cfg.Pipeline.DedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		boardCount := s.board.Count(ctx)
		streams := s.engine.Streams()

		subjects := 0
		suspicious := 0
		for _, st := range streams {
			subjects += st.Subjects
			if st.Feed.Suspicious {
				suspicious++
			}
		}

		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		stats["boardSubjects"] = boardCount
		stats["streams"] = len(streams)
		stats["subjectsTracked"] = subjects
		stats["suspiciousFeeds"] = suspicious
		stats["wsClients"] = s.hub.ClientCount()
		stats["session"] = s.session.snapshot()

		metrics.UpdateBoardSubjects(boardCount)
		metrics.UpdateSubjectsTracked(subjects)
		metrics.UpdateSuspiciousFeeds(suspicious)
	}

	return stats
}

// refreshStreamGauges recomputes the stream-derived gauges. Called on the
// transitions that change them, not per cycle.
func (s *Service) refreshStreamGauges() {
	subjects := 0
	suspicious := 0
	for _, st := range s.engine.Streams() {
		subjects += st.Subjects
		if st.Feed.Suspicious {
			suspicious++
		}
	}
	metrics.UpdateSubjectsTracked(subjects)
	metrics.UpdateSuspiciousFeeds(suspicious)
}

// counters is everything the session summary reports.
type counters struct {
	cycles          uint64
	observations    uint64
	duplicates      uint64
	rejected        uint64
	malformedFrames uint64
	evictions       uint64
	suspiciousFlips uint64
	alerts          map[model.AlertLevel]uint64
}

// sessionCounters guards the running totals since the last Start.
type sessionCounters struct {
	mu        sync.Mutex
	startedAt time.Time
	c         counters
}

func (s *sessionCounters) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startedAt = time.Now()
	s.c = counters{alerts: make(map[model.AlertLevel]uint64)}
}

func (s *sessionCounters) add(f func(*counters)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c.alerts == nil {
		s.c.alerts = make(map[model.AlertLevel]uint64)
	}
	f(&s.c)
}

// snapshot copies the totals into a JSON-friendly map.
func (s *sessionCounters) snapshot() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts := make(map[string]uint64, len(s.c.alerts))
	for level, n := range s.c.alerts {
		alerts[level.String()] = n
	}
	return map[string]interface{}{
		"uptimeSeconds":   int64(time.Since(s.startedAt).Seconds()),
		"cycles":          s.c.cycles,
		"observations":    s.c.observations,
		"duplicates":      s.c.duplicates,
		"rejected":        s.c.rejected,
		"malformedFrames": s.c.malformedFrames,
		"evictions":       s.c.evictions,
		"suspiciousFlips": s.c.suspiciousFlips,
		"alerts":          alerts,
	}
}

// logFields renders the totals for the shutdown summary line.
func (s *sessionCounters) logFields() []logger.Field {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields := []logger.Field{
		logger.Duration("uptime", time.Since(s.startedAt)),
		logger.Uint64("cycles", s.c.cycles),
		logger.Uint64("observations", s.c.observations),
		logger.Uint64("duplicates", s.c.duplicates),
		logger.Uint64("rejected", s.c.rejected),
		logger.Uint64("malformedFrames", s.c.malformedFrames),
		logger.Uint64("evictions", s.c.evictions),
		logger.Uint64("suspiciousFlips", s.c.suspiciousFlips),
	}
	for _, level := range []model.AlertLevel{model.LevelLow, model.LevelMedium, model.LevelHigh, model.LevelCritical} {
		fields = append(fields, logger.Uint64("alerts"+level.String(), s.c.alerts[level]))
	}
	return fields
}
