package simfeed

import (
	"math"
	"math/rand"
)

// Scenario scripts one perimeter stream: a ground track, optional sensor
// frames, and the assessment the service is expected to settle on. Expected
// score bounds assume the default service configuration and leave room for
// smoothing lag and window-alignment jitter.
type Scenario struct {
	Name      string
	Summary   string
	StreamID  string
	SubjectID string
	Batches   int
	Seed      int64
	Path      pathFunc
	Frames    frameFunc
	Expect    Expectation
}

// Expectation bounds the final assessment for a scenario. Zone and Level are
// always checked; Patterns lists event kinds that must appear on the socket
// at least once; a MaxTrust of zero skips the trust ceiling check.
type Expectation struct {
	Zone       string
	Level      string
	MinScore   float64
	MaxScore   float64
	Patterns   []string
	Suspicious bool
	MinTrust   float64
	MaxTrust   float64
	FeedAlerts int
}

// DefaultScenarios returns the built-in scenario suite.
func DefaultScenarios() []Scenario {
	return []Scenario{
		steadyPatrol(),
		fencePacer(),
		gateLoiterer(),
		sprintProbe(),
		approachProber(),
		wireBreach(),
		frozenFeed(),
		blackoutFeed(),
	}
}

// steadyPatrol walks a guard along the outer road with a healthy camera.
// Nothing about the track or the feed should raise an alert.
func steadyPatrol() Scenario {
	return Scenario{
		Name:      "steady-patrol",
		Summary:   "guard on the outer road, healthy feed, stays LOW in SAFE",
		StreamID:  "cam-perimeter-north",
		SubjectID: "trk-patrol-01",
		Batches:   60,
		Seed:      101,
		Path: func(seq int) position {
			return position{x: 700, y: 40 + 12*float64(seq)}
		},
		Frames: liveFrame,
		Expect: Expectation{
			Zone:     "SAFE",
			Level:    "LOW",
			MinScore: 10,
			MaxScore: 20,
			MinTrust: 95,
			MaxTrust: 100,
		},
	}
}

// fencePacer strides back and forth along the danger strip the way someone
// casing a fence line does. Direction flips every six samples, which lands
// four to five tangential reversals in the detector window.
func fencePacer() Scenario {
	return Scenario{
		Name:      "fence-pacer",
		Summary:   "paces the danger strip, raises HIGH with a pacing pattern",
		StreamID:  "cam-east-fence",
		SubjectID: "trk-pacer-01",
		Batches:   50,
		Seed:      202,
		Path: func(seq int) position {
			period := seq % 12
			y := 200 + 12*float64(period)
			if period >= 6 {
				y = 200 + 12*float64(12-period)
			}
			return position{x: 475, y: y}
		},
		Expect: Expectation{
			Zone:     "DANGER",
			Level:    "HIGH",
			MinScore: 58,
			MaxScore: 78,
			Patterns: []string{"pacing"},
			MinTrust: 99,
		},
	}
}

// gateLoiterer holds position near the gate long enough to cross the dwell
// threshold. The residual wobble stays below the pacing tangent floor so
// only loitering fires.
func gateLoiterer() Scenario {
	return Scenario{
		Name:      "gate-loiterer",
		Summary:   "dwells by the gate, raises MEDIUM with a loitering pattern",
		StreamID:  "cam-gate-2",
		SubjectID: "trk-loiter-01",
		Batches:   120,
		Seed:      303,
		Path: func(seq int) position {
			return position{x: 550, y: 200 + 0.1*float64(seq%3)}
		},
		Expect: Expectation{
			Zone:     "WARNING",
			Level:    "MEDIUM",
			MinScore: 33,
			MaxScore: 50,
			Patterns: []string{"loitering"},
			MinTrust: 99,
		},
	}
}

// sprintProbe walks toward the fence, sprints five times faster for ten
// frames, then eases off. The burst trips the sudden-movement detector for a
// couple of frames; the final assessment settles back to LOW.
func sprintProbe() Scenario {
	return Scenario{
		Name:      "sprint-probe",
		Summary:   "walk-sprint-walk run, transient sudden_movement, ends LOW",
		StreamID:  "cam-south-yard",
		SubjectID: "trk-sprint-01",
		Batches:   60,
		Seed:      404,
		Path: func(seq int) position {
			// 1.5 units per frame with a 7.5 unit burst on frames 31-40.
			burst := math.Min(math.Max(float64(seq-30), 0), 10)
			return position{x: 700 - 1.5*float64(seq) - 6*burst, y: 120}
		},
		Expect: Expectation{
			Zone:     "WARNING",
			Level:    "LOW",
			MinScore: 18,
			MaxScore: 28,
			Patterns: []string{"sudden_movement"},
			MinTrust: 99,
		},
	}
}

// approachProber closes on the wall and falls back over and over, the classic
// probing track. The closure volume saturates the detector, so the fused
// score clears the critical boundary even though the prober never leaves the
// warning band.
func approachProber() Scenario {
	return Scenario{
		Name:      "approach-prober",
		Summary:   "repeated approach and retreat, raises CRITICAL",
		StreamID:  "cam-west-wall",
		SubjectID: "trk-prober-01",
		Batches:   120,
		Seed:      505,
		Path: func(seq int) position {
			phase := seq % 30
			if phase < 15 {
				return position{x: 635 - 7.5*float64(phase), y: 300}
			}
			return position{x: 522.5 + 7.5*float64(phase-15), y: 300}
		},
		Expect: Expectation{
			Zone:     "WARNING",
			Level:    "CRITICAL",
			MinScore: 78,
			MaxScore: 88,
			Patterns: []string{"approach_retreat"},
			MinTrust: 99,
		},
	}
}

// wireBreach advances on the boundary at a steady clip and ends inside the
// intrusion strip. No pattern fires; the intrusion multiplier alone carries
// the presence floor into MEDIUM.
func wireBreach() Scenario {
	return Scenario{
		Name:      "wire-breach",
		Summary:   "steady advance into the intrusion strip, ends MEDIUM",
		StreamID:  "cam-fence-line-4",
		SubjectID: "trk-breach-01",
		Batches:   60,
		Seed:      606,
		Path: func(seq int) position {
			return position{x: 600 - 3*float64(seq), y: 200}
		},
		Expect: Expectation{
			Zone:     "INTRUSION",
			Level:    "MEDIUM",
			MinScore: 40,
			MaxScore: 50,
			MinTrust: 99,
		},
	}
}

// frozenFeed parks a subject in the danger band while the camera freezes on
// one frame after a healthy start. Trust collapses to the frozen-feed floor
// and drags the fused score down with it.
func frozenFeed() Scenario {
	return Scenario{
		Name:      "frozen-feed",
		Summary:   "camera freezes mid-run, feed goes suspicious",
		StreamID:  "cam-dock-3",
		SubjectID: "trk-dock-01",
		Batches:   50,
		Seed:      707,
		Path: func(seq int) position {
			return position{x: 460, y: 200 + 0.1*float64(seq%3)}
		},
		Frames: func(rng *rand.Rand, seq int) *Frame {
			if seq < 10 {
				return liveFrame(rng, seq)
			}
			return texturedFrame(7)
		},
		Expect: Expectation{
			Zone:       "DANGER",
			Level:      "LOW",
			MinScore:   8,
			MaxScore:   20,
			Suspicious: true,
			MinTrust:   25,
			MaxTrust:   60,
			FeedAlerts: 1,
		},
	}
}

// blackoutFeed covers the lens outright. Entropy reads zero from the first
// frame, liveness and motion follow, and the stream flips suspicious within
// the first second.
func blackoutFeed() Scenario {
	return Scenario{
		Name:      "blackout-feed",
		Summary:   "camera blacked out, trust collapses",
		StreamID:  "cam-tunnel-1",
		SubjectID: "trk-tunnel-01",
		Batches:   40,
		Seed:      808,
		Path: func(seq int) position {
			return position{x: 560, y: 310 + 0.1*float64(seq%3)}
		},
		Frames: func(_ *rand.Rand, _ int) *Frame {
			return blackFrame()
		},
		Expect: Expectation{
			Zone:       "WARNING",
			Level:      "LOW",
			MinScore:   0,
			MaxScore:   8,
			Suspicious: true,
			MinTrust:   0,
			MaxTrust:   40,
			FeedAlerts: 1,
		},
	}
}
