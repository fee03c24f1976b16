package fusion_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/okian/kestrel/internal/domain/behavior"
	"github.com/okian/kestrel/internal/domain/fusion"
	"github.com/okian/kestrel/internal/domain/geo"
	"github.com/okian/kestrel/internal/domain/model"
	"github.com/okian/kestrel/internal/domain/trust"
	"github.com/okian/kestrel/internal/domain/zone"
	. "github.com/smartystreets/goconvey/convey"
)

const frameInterval = 100 * time.Millisecond

// The boundary is a 400x400 square; distances are measured from its edges.
func newBoundary(t *testing.T) *geo.Polygon {
	t.Helper()
	p, err := geo.NewPolygon([]geo.Point{
		{X: 0, Y: 0}, {X: 400, Y: 0}, {X: 400, Y: 400}, {X: 0, Y: 400},
	})
	if err != nil {
		t.Fatalf("building boundary: %v", err)
	}
	return p
}

func newEngine(t *testing.T, opts ...fusion.Option) *fusion.Engine {
	t.Helper()
	zones, err := zone.NewClassifier()
	if err != nil {
		t.Fatalf("building classifier: %v", err)
	}
	tracker, err := behavior.NewTracker()
	if err != nil {
		t.Fatalf("building tracker: %v", err)
	}
	scorer, err := trust.NewScorer()
	if err != nil {
		t.Fatalf("building scorer: %v", err)
	}
	eng, err := fusion.NewEngine(newBoundary(t), zones, tracker, scorer, opts...)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return eng
}

// patrolPath walks parallel to the boundary far outside it.
func patrolPath(n int) []model.Position {
	out := make([]model.Position, n)
	for i := range out {
		out[i] = model.Position{X: 700, Y: 100 + 12*float64(i)}
	}
	return out
}

// pacingPath oscillates along the right edge at a fixed offset outside it,
// reversing direction every seventh step.
func pacingPath(n int, offset float64) []model.Position {
	out := make([]model.Position, n)
	y, dir := 200.0, 1.0
	for i := range out {
		y += 10 * dir
		if (i+1)%7 == 0 {
			dir = -dir
		}
		out[i] = model.Position{X: 400 + offset, Y: y}
	}
	return out
}

// patternFrame builds a deterministic textured frame; the same seed always
// produces the identical buffer, so reusing one seed simulates a frozen feed.
func patternFrame(seed int) *model.Frame {
	px := make([]byte, 64*64)
	for i := range px {
		px[i] = byte(80 + (i*7+seed*13)%97)
	}
	return &model.Frame{Width: 64, Height: 64, Channels: 1, Pixels: px}
}

// runPath feeds one subject along a path, one batch per frame cycle.
func runPath(t *testing.T, eng *fusion.Engine, stream, subject string, path []model.Position, frame func(i int) *model.Frame) []*fusion.Output {
	t.Helper()
	base := time.Now()
	outs := make([]*fusion.Output, 0, len(path))
	for i, pos := range path {
		at := base.Add(time.Duration(i) * frameInterval)
		var fr *model.Frame
		if frame != nil {
			fr = frame(i)
		}
		out, err := eng.Cycle(context.Background(), &model.Batch{
			StreamID:     stream,
			BatchID:      fmt.Sprintf("%s-%d", stream, i),
			FrameSeq:     uint64(i + 1),
			At:           at,
			Frame:        fr,
			Observations: []model.Observation{{SubjectID: subject, Position: pos, At: at}},
		})
		if err != nil {
			t.Fatalf("cycle %d: %v", i, err)
		}
		outs = append(outs, out)
	}
	return outs
}

func TestEngineValidation(t *testing.T) {
	Convey("Given engine construction", t, func() {
		zones, _ := zone.NewClassifier()
		tracker, _ := behavior.NewTracker()
		scorer, _ := trust.NewScorer()

		Convey("When a part is missing", func() {
			_, err := fusion.NewEngine(nil, zones, tracker, scorer)

			Convey("Then construction should fail", func() {
				So(errors.Is(err, fusion.ErrInvalidEngineConfig), ShouldBeTrue)
			})
		})

		Convey("When level boundaries are not ascending", func() {
			_, err := fusion.NewEngine(newBoundary(t), zones, tracker, scorer,
				fusion.WithLevelBoundaries(60, 60, 80))

			Convey("Then construction should fail", func() {
				So(errors.Is(err, fusion.ErrInvalidEngineConfig), ShouldBeTrue)
			})
		})

		Convey("When the critical boundary exceeds the score range", func() {
			_, err := fusion.NewEngine(newBoundary(t), zones, tracker, scorer,
				fusion.WithLevelBoundaries(30, 60, 120))

			Convey("Then construction should fail", func() {
				So(errors.Is(err, fusion.ErrInvalidEngineConfig), ShouldBeTrue)
			})
		})

		Convey("When the absence option carries zero", func() {
			eng, err := fusion.NewEngine(newBoundary(t), zones, tracker, scorer,
				fusion.WithAbsenceFrames(0))

			Convey("Then the default should be preserved", func() {
				So(err, ShouldBeNil)
				So(eng, ShouldNotBeNil)
			})
		})
	})
}

func TestNormalPatrol(t *testing.T) {
	Convey("Given a guard patrolling far outside the perimeter", t, func() {
		eng := newEngine(t)

		Convey("When fifty frames of straight walking are processed", func() {
			outs := runPath(t, eng, "cam-north", "guard-1", patrolPath(50), nil)
			last := outs[len(outs)-1]

			Convey("Then the subject should settle at low ambient risk", func() {
				So(last.Results, ShouldHaveLength, 1)
				res := last.Results[0]
				So(res.Score, ShouldBeBetweenOrEqual, 10, 20)
				So(res.Level, ShouldEqual, model.LevelLow)
				So(res.Zone, ShouldEqual, model.ZoneSafe)
				So(res.Events, ShouldBeEmpty)
				So(res.TrustFactor, ShouldEqual, 1.0)
				So(res.SuspiciousFeed, ShouldBeFalse)
			})

			Convey("And the feed should sit at the trust baseline", func() {
				So(last.Feed.TrustScore, ShouldEqual, 100)
				So(last.Feed.Suspicious, ShouldBeFalse)
				So(last.Feed.StreamID, ShouldEqual, "cam-north")
				So(last.Feed.FrameSeq, ShouldEqual, 50)
			})
		})
	})
}

func TestPacingEscalation(t *testing.T) {
	Convey("Given a subject pacing along the perimeter edge", t, func() {
		Convey("When the oscillation happens in the warning band", func() {
			eng := newEngine(t)
			outs := runPath(t, eng, "cam-east", "walker-1", pacingPath(50, 150), nil)
			res := outs[len(outs)-1].Results[0]

			Convey("Then the assessment should land in the medium band", func() {
				So(res.Zone, ShouldEqual, model.ZoneWarning)
				So(res.ZoneMultiplier, ShouldEqual, 1.5)
				So(res.Score, ShouldBeBetweenOrEqual, 40, 60)
				So(res.Level, ShouldEqual, model.LevelMedium)
			})

			Convey("And the pacing pattern should be reported", func() {
				found := false
				for _, ev := range res.Events {
					if ev.Kind == model.PatternPacing {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When the same oscillation happens in the danger band", func() {
			eng := newEngine(t)
			outs := runPath(t, eng, "cam-east", "walker-2", pacingPath(50, 75), nil)
			res := outs[len(outs)-1].Results[0]

			Convey("Then the assessment should escalate to high", func() {
				So(res.Zone, ShouldEqual, model.ZoneDanger)
				So(res.ZoneMultiplier, ShouldEqual, 2.0)
				So(res.Score, ShouldBeBetweenOrEqual, 60, 80)
				So(res.Level, ShouldEqual, model.LevelHigh)
			})
		})

		Convey("When the oscillation crosses into the perimeter", func() {
			eng := newEngine(t)
			outs := runPath(t, eng, "cam-east", "walker-3", pacingPath(50, 10), nil)
			res := outs[len(outs)-1].Results[0]

			Convey("Then the score should clip at the range ceiling", func() {
				So(res.Zone, ShouldEqual, model.ZoneIntrusion)
				So(res.Score, ShouldBeLessThanOrEqualTo, 100)
				So(res.Score, ShouldBeGreaterThan, 95)
				So(res.Level, ShouldEqual, model.LevelCritical)
			})
		})
	})
}

func TestCameraTampering(t *testing.T) {
	Convey("Given the same intruder seen by a healthy and a frozen camera", t, func() {
		path := pacingPath(50, 75)

		clean := newEngine(t)
		cleanOuts := runPath(t, clean, "cam-ok", "intruder", path, nil)
		cleanScore := cleanOuts[len(cleanOuts)-1].Results[0].Score

		tampered := newEngine(t)
		frozen := patternFrame(1)
		outs := runPath(t, tampered, "cam-frozen", "intruder", path, func(int) *model.Frame { return frozen })
		last := outs[len(outs)-1]

		Convey("Then the frozen feed should be flagged suspicious", func() {
			So(last.Feed.Suspicious, ShouldBeTrue)
			So(last.Feed.TrustScore, ShouldBeLessThan, 70)
			So(last.Feed.Liveness, ShouldEqual, 0)
			So(last.Results[0].SuspiciousFeed, ShouldBeTrue)
		})

		Convey("And the numeric score should shrink by the trust factor, not vanish", func() {
			res := last.Results[0]
			So(res.Score, ShouldBeGreaterThan, 0)
			So(res.Score, ShouldBeLessThan, cleanScore*0.6)
			So(res.TrustFactor, ShouldBeLessThan, 0.7)
		})

		Convey("And the suspicious flag should flip exactly once", func() {
			flips := 0
			for _, out := range outs {
				if out.SuspiciousChanged {
					flips++
				}
			}
			So(flips, ShouldEqual, 1)
		})
	})
}

func TestAbsenceEviction(t *testing.T) {
	Convey("Given a short absence timeout", t, func() {
		eng := newEngine(t, fusion.WithAbsenceFrames(5))
		base := time.Now()
		cycle := func(seq int, subjects ...string) *fusion.Output {
			at := base.Add(time.Duration(seq) * frameInterval)
			obs := make([]model.Observation, 0, len(subjects))
			for i, id := range subjects {
				obs = append(obs, model.Observation{
					SubjectID: id,
					Position:  model.Position{X: 700, Y: 100 + 10*float64(seq+i)},
					At:        at,
				})
			}
			out, err := eng.Cycle(context.Background(), &model.Batch{
				StreamID:     "cam-gate",
				BatchID:      fmt.Sprintf("gate-%d", seq),
				FrameSeq:     uint64(seq),
				At:           at,
				Observations: obs,
			})
			if err != nil {
				t.Fatalf("cycle %d: %v", seq, err)
			}
			return out
		}

		Convey("When a subject disappears from the feed", func() {
			for seq := 1; seq <= 3; seq++ {
				cycle(seq, "alpha", "beta")
			}
			var evictedAt *fusion.Output
			for seq := 4; seq <= 8; seq++ {
				out := cycle(seq, "beta")
				if len(out.Evicted) > 0 {
					evictedAt = out
				}
			}

			Convey("Then it should be evicted after the timeout", func() {
				So(evictedAt, ShouldNotBeNil)
				So(evictedAt.Evicted, ShouldResemble, []string{"alpha"})
			})

			Convey("And reappearing later should start from scratch", func() {
				out := cycle(9, "alpha", "beta")
				So(out.Results, ShouldHaveLength, 2)
				So(out.Results[0].SubjectID, ShouldEqual, "alpha")
				So(out.Results[0].BehaviorRisk, ShouldBeLessThan, 10)
				So(out.Results[1].SubjectID, ShouldEqual, "beta")
				So(out.Results[1].BehaviorRisk, ShouldBeGreaterThan, 10)
			})
		})
	})
}

func TestCycleEdgeCases(t *testing.T) {
	Convey("Given a running engine", t, func() {
		eng := newEngine(t)
		base := time.Now()

		Convey("When the batch envelope is invalid", func() {
			_, err := eng.Cycle(context.Background(), &model.Batch{BatchID: "b-1"})

			Convey("Then the cycle should be rejected", func() {
				So(errors.Is(err, model.ErrMalformedBatch), ShouldBeTrue)
			})
		})

		Convey("When the frame buffer is malformed", func() {
			good, err := eng.Cycle(context.Background(), &model.Batch{
				StreamID: "cam-a", BatchID: "b-1", FrameSeq: 1, At: base,
				Frame:        patternFrame(1),
				Observations: []model.Observation{{SubjectID: "s-1", Position: model.Position{X: 700, Y: 100}}},
			})
			So(err, ShouldBeNil)

			out, err := eng.Cycle(context.Background(), &model.Batch{
				StreamID: "cam-a", BatchID: "b-2", FrameSeq: 2, At: base.Add(frameInterval),
				Frame:        &model.Frame{Width: 64, Height: 64, Channels: 1, Pixels: make([]byte, 5)},
				Observations: []model.Observation{{SubjectID: "s-1", Position: model.Position{X: 700, Y: 110}}},
			})

			Convey("Then the warning should surface while results continue", func() {
				So(err, ShouldBeNil)
				So(errors.Is(out.FrameWarn, model.ErrMalformedFrame), ShouldBeTrue)
				So(out.Results, ShouldHaveLength, 1)
				So(out.Feed.TrustScore, ShouldEqual, good.Feed.TrustScore)
			})
		})

		Convey("When an observation carries non-finite coordinates", func() {
			out, err := eng.Cycle(context.Background(), &model.Batch{
				StreamID: "cam-a", BatchID: "b-3", FrameSeq: 3, At: base,
				Observations: []model.Observation{{SubjectID: "s-nan", Position: model.Position{X: math.NaN(), Y: 1}}},
			})

			Convey("Then the observation should be dropped, not scored", func() {
				So(err, ShouldBeNil)
				So(out.Dropped, ShouldEqual, 1)
				So(out.Results, ShouldBeEmpty)
			})
		})

		Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			out, err := eng.Cycle(ctx, &model.Batch{
				StreamID: "cam-a", BatchID: "b-4", FrameSeq: 4, At: base,
				Observations: []model.Observation{
					{SubjectID: "s-1", Position: model.Position{X: 700, Y: 100}},
					{SubjectID: "s-2", Position: model.Position{X: 700, Y: 120}},
				},
			})

			Convey("Then no subject should have been committed", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(out.Results, ShouldBeEmpty)
			})

			Convey("And the stream should keep working afterwards", func() {
				out, err := eng.Cycle(context.Background(), &model.Batch{
					StreamID: "cam-a", BatchID: "b-5", FrameSeq: 5, At: base,
					Observations: []model.Observation{{SubjectID: "s-1", Position: model.Position{X: 700, Y: 100}}},
				})
				So(err, ShouldBeNil)
				So(out.Results, ShouldHaveLength, 1)
			})
		})

		Convey("When a batch carries several subjects", func() {
			out, err := eng.Cycle(context.Background(), &model.Batch{
				StreamID: "cam-a", BatchID: "b-6", FrameSeq: 6, At: base,
				Observations: []model.Observation{
					{SubjectID: "charlie", Position: model.Position{X: 700, Y: 100}},
					{SubjectID: "alpha", Position: model.Position{X: 700, Y: 120}},
					{SubjectID: "bravo", Position: model.Position{X: 700, Y: 140}},
				},
			})

			Convey("Then results should preserve observation order", func() {
				So(err, ShouldBeNil)
				So(out.Results, ShouldHaveLength, 3)
				So(out.Results[0].SubjectID, ShouldEqual, "charlie")
				So(out.Results[1].SubjectID, ShouldEqual, "alpha")
				So(out.Results[2].SubjectID, ShouldEqual, "bravo")
			})
		})
	})
}

func TestStreamControls(t *testing.T) {
	Convey("Given an engine tracking two streams", t, func() {
		eng := newEngine(t)
		runPath(t, eng, "cam-b", "subj-1", patrolPath(3), nil)
		runPath(t, eng, "cam-a", "subj-2", patrolPath(5), nil)

		Convey("When stream summaries are requested", func() {
			streams := eng.Streams()

			Convey("Then both streams should be listed in order", func() {
				So(streams, ShouldHaveLength, 2)
				So(streams[0].Feed.StreamID, ShouldEqual, "cam-a")
				So(streams[0].Subjects, ShouldEqual, 1)
				So(streams[0].Cycles, ShouldEqual, 5)
				So(streams[1].Feed.StreamID, ShouldEqual, "cam-b")
				So(streams[1].Cycles, ShouldEqual, 3)
			})
		})

		Convey("When one stream is reset", func() {
			dropped, err := eng.ResetStream("cam-a")

			Convey("Then its subjects should be dropped", func() {
				So(err, ShouldBeNil)
				So(dropped, ShouldEqual, 1)
				streams := eng.Streams()
				So(streams, ShouldHaveLength, 1)
				So(streams[0].Feed.StreamID, ShouldEqual, "cam-b")
			})
		})

		Convey("When an unknown stream is reset", func() {
			_, err := eng.ResetStream("cam-z")

			Convey("Then the reset should be rejected", func() {
				So(errors.Is(err, fusion.ErrUnknownStream), ShouldBeTrue)
			})
		})

		Convey("When everything is reset", func() {
			dropped := eng.Reset()

			Convey("Then no stream state should remain", func() {
				So(dropped, ShouldEqual, 2)
				So(eng.Streams(), ShouldBeEmpty)
			})
		})
	})
}
