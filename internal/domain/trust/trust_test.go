package trust_test

import (
	"math/rand"
	"testing"

	"github.com/okian/kestrel/internal/domain/model"
	trust "github.com/okian/kestrel/internal/domain/trust"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	frameW = 128
	frameH = 128
)

func newScorer(t *testing.T, opts ...trust.Option) *trust.Scorer {
	t.Helper()
	s, err := trust.NewScorer(opts...)
	if err != nil {
		t.Fatalf("building scorer: %v", err)
	}
	return s
}

func grayFrame(w, h int, v byte) *model.Frame {
	px := make([]byte, w*h)
	for i := range px {
		px[i] = v
	}
	return &model.Frame{Width: w, Height: h, Channels: 1, Pixels: px}
}

// liveFrame synthesizes a plausible camera frame: mid-gray with noise whose
// amplitude cycles frame to frame, so consecutive diffs vary like a real
// scene instead of an artificially uniform pan.
func liveFrame(rng *rand.Rand, seq int) *model.Frame {
	spread := 16 + 12*(seq%3)
	px := make([]byte, frameW*frameH)
	for i := range px {
		px[i] = byte(128 + rng.Intn(2*spread+1) - spread)
	}
	return &model.Frame{Width: frameW, Height: frameH, Channels: 1, Pixels: px}
}

func feedLive(s *trust.Scorer, st *trust.State, rng *rand.Rand, n int) (float64, bool) {
	var score float64
	var suspicious bool
	for i := 0; i < n; i++ {
		score, suspicious, _ = s.Update(st, liveFrame(rng, i))
	}
	return score, suspicious
}

func TestScorerValidation(t *testing.T) {
	Convey("Given scorer construction", t, func() {
		Convey("When defaults are used", func() {
			s, err := trust.NewScorer()

			Convey("Then construction should succeed", func() {
				So(err, ShouldBeNil)
				So(s, ShouldNotBeNil)
				So(s.Threshold(), ShouldEqual, 70)
			})
		})

		Convey("When the entropy band is inverted", func() {
			_, err := trust.NewScorer(trust.WithEntropy(8.0, 4.0, 100))

			Convey("Then construction should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When a layer weight is negative", func() {
			_, err := trust.NewScorer(trust.WithWeights(-1, 1, 1))

			Convey("Then construction should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When all layer weights are zero", func() {
			_, err := trust.NewScorer(trust.WithWeights(0, 0, 0))

			Convey("Then construction should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When the original layer weighting is configured", func() {
			s, err := trust.NewScorer(trust.WithWeights(0.5, 0.3, 0.2))

			Convey("Then construction should succeed", func() {
				So(err, ShouldBeNil)
				So(s, ShouldNotBeNil)
			})
		})

		Convey("When guarded options carry invalid values", func() {
			s, err := trust.NewScorer(
				trust.WithLiveness(0, -1, 0),
				trust.WithMotion(1, 0, 0),
				trust.WithSmoothing(2),
			)

			Convey("Then defaults should be preserved", func() {
				So(err, ShouldBeNil)
				So(s, ShouldNotBeNil)
			})
		})
	})
}

func TestLiveFeedBaseline(t *testing.T) {
	Convey("Given a healthy live feed", t, func() {
		s := newScorer(t)
		st := s.NewState()
		rng := rand.New(rand.NewSource(7))

		Convey("When no frame has been seen yet", func() {
			Convey("Then trust should sit at the full baseline", func() {
				So(st.TrustScore(), ShouldEqual, 100)
				So(st.Suspicious(), ShouldBeFalse)
			})
		})

		Convey("When thirty varying frames arrive", func() {
			score, suspicious := feedLive(s, st, rng, 30)

			Convey("Then trust should stay at full confidence", func() {
				So(score, ShouldBeGreaterThan, 95)
				So(suspicious, ShouldBeFalse)
				So(st.Liveness(), ShouldEqual, 100)
				So(st.Motion(), ShouldEqual, 100)
				So(st.Frames(), ShouldEqual, 30)
			})
		})

		Convey("When the frame buffer is nil", func() {
			before := st.TrustScore()
			score, suspicious, err := s.Update(st, nil)

			Convey("Then the prior score should carry forward", func() {
				So(err, ShouldBeNil)
				So(score, ShouldEqual, before)
				So(suspicious, ShouldBeFalse)
			})
		})

		Convey("When a malformed frame arrives mid-stream", func() {
			feedLive(s, st, rng, 10)
			before := st.TrustScore()
			frames := st.Frames()
			bad := &model.Frame{Width: frameW, Height: frameH, Channels: 1, Pixels: make([]byte, 3)}
			score, _, err := s.Update(st, bad)

			Convey("Then the update should be skipped and surfaced", func() {
				So(err, ShouldNotBeNil)
				So(score, ShouldEqual, before)
				So(st.Frames(), ShouldEqual, frames)
			})
		})
	})
}

func TestFrozenFeed(t *testing.T) {
	Convey("Given a feed that freezes on one frame", t, func() {
		s := newScorer(t)
		st := s.NewState()
		rng := rand.New(rand.NewSource(11))
		frozen := liveFrame(rng, 0)

		Convey("When the identical frame repeats past the tolerance", func() {
			var score float64
			var suspicious bool
			for i := 0; i < 40; i++ {
				score, suspicious, _ = s.Update(st, frozen)
			}

			Convey("Then liveness should bottom out and the feed turn suspicious", func() {
				So(st.Liveness(), ShouldEqual, 0)
				So(st.Motion(), ShouldEqual, 30)
				So(score, ShouldBeLessThan, 70)
				So(suspicious, ShouldBeTrue)
			})

			Convey("And fresh frames should recover trust", func() {
				var recovered float64
				var still bool
				for i := 0; i < 40; i++ {
					recovered, still, _ = s.Update(st, liveFrame(rng, i))
				}
				So(recovered, ShouldBeGreaterThan, 70)
				So(still, ShouldBeFalse)
				So(st.Liveness(), ShouldEqual, 100)
			})
		})

		Convey("When the freeze stays within the tolerance", func() {
			for i := 0; i < 5; i++ {
				s.Update(st, frozen)
			}

			Convey("Then liveness should not be penalized yet", func() {
				So(st.Liveness(), ShouldEqual, 100)
			})
		})
	})
}

func TestEntropyLayer(t *testing.T) {
	Convey("Given feeds with degenerate visual content", t, func() {
		s := newScorer(t)

		Convey("When the feed blacks out after a live start", func() {
			st := s.NewState()
			rng := rand.New(rand.NewSource(13))
			feedLive(s, st, rng, 15)
			var score float64
			var suspicious bool
			for i := 0; i < 40; i++ {
				score, suspicious, _ = s.Update(st, grayFrame(frameW, frameH, 0))
			}

			Convey("Then the entropy layer should collapse and flag the feed", func() {
				So(st.Entropy(), ShouldEqual, 0)
				So(score, ShouldBeLessThan, 70)
				So(suspicious, ShouldBeTrue)
			})
		})

		Convey("When frames are injected uniform synthetic noise", func() {
			st := s.NewState()
			rng := rand.New(rand.NewSource(17))
			px := make([]byte, frameW*frameH)
			for i := 0; i < 20; i++ {
				for j := range px {
					px[j] = byte(rng.Intn(256))
				}
				frame := &model.Frame{Width: frameW, Height: frameH, Channels: 1, Pixels: append([]byte(nil), px...)}
				s.Update(st, frame)
			}

			Convey("Then the entropy layer should be penalized above the ceiling", func() {
				So(st.Entropy(), ShouldBeLessThan, 100)
			})
		})

		Convey("When a color frame is flat in every channel", func() {
			st := s.NewState()
			px := make([]byte, frameW*frameH*3)
			for i := 0; i < len(px); i += 3 {
				px[i], px[i+1], px[i+2] = 0, 0, 255 // B,G,R
			}
			s.Update(st, &model.Frame{Width: frameW, Height: frameH, Channels: 3, Pixels: px})

			Convey("Then luminance conversion should yield zero entropy", func() {
				So(st.Entropy(), ShouldEqual, 0)
			})
		})
	})
}

func TestMotionLayer(t *testing.T) {
	Convey("Given a feed with artificial motion statistics", t, func() {
		s := newScorer(t)

		Convey("When frames differ by a constant tiny offset", func() {
			st := s.NewState()
			// Alternate two gray levels two steps apart: every diff is exactly
			// the same non-zero value, like a static image panned artificially.
			for i := 0; i < 20; i++ {
				s.Update(st, grayFrame(frameW, frameH, byte(100+2*(i%2))))
			}

			Convey("Then the motion layer should read artificially uniform", func() {
				So(st.Motion(), ShouldEqual, 60)
			})
		})

		Convey("When the window has not filled yet", func() {
			st := s.NewState()
			rng := rand.New(rand.NewSource(19))
			feedLive(s, st, rng, 5)

			Convey("Then the motion layer should withhold judgement", func() {
				So(st.Motion(), ShouldEqual, 100)
			})
		})
	})
}

func TestSuspiciousThreshold(t *testing.T) {
	Convey("Given a scorer with a custom threshold", t, func() {
		s := newScorer(t, trust.WithThreshold(90))
		st := s.NewState()
		rng := rand.New(rand.NewSource(23))
		frozen := liveFrame(rng, 0)

		Convey("When trust erodes gradually under a freeze", func() {
			crossed := false
			var at float64
			for i := 0; i < 40 && !crossed; i++ {
				score, suspicious, _ := s.Update(st, frozen)
				if suspicious {
					crossed, at = true, score
				}
			}

			Convey("Then the flag should flip exactly below the threshold", func() {
				So(crossed, ShouldBeTrue)
				So(at, ShouldBeLessThan, 90)
			})
		})
	})
}
