package simfeed

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
)

func TestDefaultScenarios(t *testing.T) {
	convey.Convey("Given the built-in scenario suite", t, func() {
		scenarios := DefaultScenarios()

		convey.Convey("Then it holds eight scenarios", func() {
			convey.So(scenarios, convey.ShouldHaveLength, 8)
		})

		convey.Convey("Then names, streams and subjects are unique", func() {
			names := make(map[string]bool)
			streams := make(map[string]bool)
			subjects := make(map[string]bool)
			for _, scn := range scenarios {
				convey.So(names[scn.Name], convey.ShouldBeFalse)
				convey.So(streams[scn.StreamID], convey.ShouldBeFalse)
				convey.So(subjects[scn.SubjectID], convey.ShouldBeFalse)
				names[scn.Name] = true
				streams[scn.StreamID] = true
				subjects[scn.SubjectID] = true
			}
		})

		convey.Convey("Then every scenario is runnable and coherent", func() {
			for _, scn := range scenarios {
				convey.So(scn.Batches, convey.ShouldBeGreaterThan, 0)
				convey.So(scn.Path, convey.ShouldNotBeNil)
				convey.So(scn.Summary, convey.ShouldNotBeEmpty)
				convey.So(scn.Expect.MinScore, convey.ShouldBeLessThanOrEqualTo, scn.Expect.MaxScore)
				convey.So(scn.Expect.Zone, convey.ShouldBeIn, "SAFE", "WARNING", "DANGER", "INTRUSION")
				convey.So(scn.Expect.Level, convey.ShouldBeIn, "LOW", "MEDIUM", "HIGH", "CRITICAL")
				for _, kind := range scn.Expect.Patterns {
					convey.So(kind, convey.ShouldBeIn,
						"pacing", "approach_retreat", "loitering", "sudden_movement")
				}
			}
		})

		convey.Convey("Then suspicious-feed scenarios expect degraded trust", func() {
			for _, scn := range scenarios {
				if scn.Expect.Suspicious {
					convey.So(scn.Frames, convey.ShouldNotBeNil)
					convey.So(scn.Expect.MaxTrust, convey.ShouldBeLessThan, 70)
					convey.So(scn.Expect.FeedAlerts, convey.ShouldBeGreaterThanOrEqualTo, 1)
				}
			}
		})
	})
}

func TestScenarioPaths(t *testing.T) {
	convey.Convey("Given the scripted ground tracks", t, func() {
		byName := make(map[string]Scenario)
		for _, scn := range DefaultScenarios() {
			byName[scn.Name] = scn
		}

		convey.Convey("When the fence pacer walks its beat", func() {
			scn := byName["fence-pacer"]

			convey.Convey("Then the sweep is triangular with a 12-frame period", func() {
				convey.So(scn.Path(0).y, convey.ShouldAlmostEqual, 200)
				convey.So(scn.Path(6).y, convey.ShouldAlmostEqual, 272)
				convey.So(scn.Path(12).y, convey.ShouldAlmostEqual, 200)

				for seq := 1; seq < scn.Batches; seq++ {
					step := scn.Path(seq).y - scn.Path(seq-1).y
					convey.So(math.Abs(step), convey.ShouldAlmostEqual, 12)
					convey.So(scn.Path(seq).x, convey.ShouldAlmostEqual, 475)
				}
			})
		})

		convey.Convey("When the prober sweeps the wall", func() {
			scn := byName["approach-prober"]

			convey.Convey("Then the track is continuous at a constant step", func() {
				for seq := 1; seq < scn.Batches; seq++ {
					step := scn.Path(seq).x - scn.Path(seq-1).x
					convey.So(math.Abs(step), convey.ShouldAlmostEqual, 7.5)
				}
			})

			convey.Convey("Then the track stays inside the warning band", func() {
				for seq := 0; seq < scn.Batches; seq++ {
					dist := scn.Path(seq).x - 400
					convey.So(dist, convey.ShouldBeGreaterThanOrEqualTo, 120)
					convey.So(dist, convey.ShouldBeLessThan, 240)
				}
			})
		})

		convey.Convey("When the sprinter bursts", func() {
			scn := byName["sprint-probe"]

			convey.Convey("Then the step is 1.5 except during the ten-frame burst", func() {
				for seq := 1; seq < scn.Batches; seq++ {
					step := scn.Path(seq-1).x - scn.Path(seq).x
					if seq >= 31 && seq <= 40 {
						convey.So(step, convey.ShouldAlmostEqual, 7.5)
					} else {
						convey.So(step, convey.ShouldAlmostEqual, 1.5)
					}
				}
			})
		})

		convey.Convey("When the breacher advances", func() {
			scn := byName["wire-breach"]

			convey.Convey("Then the final position is inside the intrusion strip", func() {
				final := scn.Path(scn.Batches - 1)
				convey.So(final.x-400, convey.ShouldBeLessThan, 40)
				convey.So(final.x, convey.ShouldBeGreaterThan, 400)
			})
		})

		convey.Convey("When the loiterer dwells", func() {
			scn := byName["gate-loiterer"]

			convey.Convey("Then the wobble stays below the pacing tangent floor", func() {
				for seq := 1; seq < scn.Batches; seq++ {
					dy := math.Abs(scn.Path(seq).y - scn.Path(seq-1).y)
					speed := dy / frameInterval.Seconds()
					convey.So(speed, convey.ShouldBeLessThan, 3)
				}
			})

			convey.Convey("Then the dwell outlasts the loitering threshold", func() {
				span := time.Duration(scn.Batches-1) * frameInterval
				convey.So(span, convey.ShouldBeGreaterThan, 8*time.Second)
			})
		})
	})
}

func TestBuildBatches(t *testing.T) {
	convey.Convey("Given a scenario rendered into batches", t, func() {
		byName := make(map[string]Scenario)
		for _, scn := range DefaultScenarios() {
			byName[scn.Name] = scn
		}
		start := time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)

		convey.Convey("When the patrol scenario is rendered", func() {
			scn := byName["steady-patrol"]
			batches := buildBatches(&scn, start)

			convey.Convey("Then every batch is addressed and sequenced", func() {
				convey.So(batches, convey.ShouldHaveLength, scn.Batches)
				ids := make(map[string]bool)
				for i, b := range batches {
					convey.So(b.StreamID, convey.ShouldEqual, scn.StreamID)
					convey.So(b.FrameSeq, convey.ShouldEqual, uint64(i+1))
					convey.So(ids[b.BatchID], convey.ShouldBeFalse)
					ids[b.BatchID] = true
					convey.So(b.Observations, convey.ShouldHaveLength, 1)
					convey.So(b.Observations[0].SubjectID, convey.ShouldEqual, scn.SubjectID)
				}
			})

			convey.Convey("Then timestamps advance by the frame interval", func() {
				for i, b := range batches {
					at, err := time.Parse(time.RFC3339Nano, b.TS)
					convey.So(err, convey.ShouldBeNil)
					convey.So(at.Equal(start.Add(time.Duration(i)*frameInterval)), convey.ShouldBeTrue)
				}
			})

			convey.Convey("Then every batch carries a healthy frame", func() {
				for _, b := range batches {
					convey.So(b.Frame, convey.ShouldNotBeNil)
					convey.So(b.Frame.Width, convey.ShouldEqual, frameWidth)
					convey.So(b.Frame.Height, convey.ShouldEqual, frameHeight)
					convey.So(b.Frame.Channels, convey.ShouldEqual, 1)
					convey.So(b.Frame.Pixels, convey.ShouldHaveLength, frameWidth*frameHeight)
				}
			})
		})

		convey.Convey("When the frozen-feed scenario is rendered", func() {
			scn := byName["frozen-feed"]
			batches := buildBatches(&scn, start)

			convey.Convey("Then frames repeat byte for byte after the freeze", func() {
				frozen := batches[10].Frame
				for _, b := range batches[11:] {
					convey.So(b.Frame.Pixels, convey.ShouldResemble, frozen.Pixels)
				}
			})

			convey.Convey("Then the healthy prelude still varies", func() {
				convey.So(batches[0].Frame.Pixels, convey.ShouldNotResemble, batches[1].Frame.Pixels)
			})
		})

		convey.Convey("When the blackout scenario is rendered", func() {
			scn := byName["blackout-feed"]
			batches := buildBatches(&scn, start)

			convey.Convey("Then every frame is fully dark", func() {
				lit := 0
				for _, b := range batches {
					for _, px := range b.Frame.Pixels {
						if px != 0 {
							lit++
						}
					}
				}
				convey.So(lit, convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When a scenario carries no frame source", func() {
			scn := byName["fence-pacer"]
			batches := buildBatches(&scn, start)

			convey.Convey("Then batches ship without pixels", func() {
				for _, b := range batches {
					convey.So(b.Frame, convey.ShouldBeNil)
				}
			})
		})
	})
}

func TestFrameSynthesis(t *testing.T) {
	convey.Convey("Given the synthetic frame builders", t, func() {
		convey.Convey("When rendering the textured frame twice with one seed", func() {
			convey.Convey("Then the bytes are identical", func() {
				convey.So(texturedFrame(7).Pixels, convey.ShouldResemble, texturedFrame(7).Pixels)
			})
		})

		convey.Convey("When rendering with different seeds", func() {
			convey.Convey("Then the textures differ", func() {
				convey.So(texturedFrame(7).Pixels, convey.ShouldNotResemble, texturedFrame(8).Pixels)
			})
		})

		convey.Convey("When rendering live frames", func() {
			rng := rand.New(rand.NewSource(1))

			convey.Convey("Then consecutive frames differ", func() {
				a := liveFrame(rng, 0)
				b := liveFrame(rng, 1)
				convey.So(a.Pixels, convey.ShouldNotResemble, b.Pixels)
				convey.So(a.Pixels, convey.ShouldHaveLength, frameWidth*frameHeight)
			})
		})
	})
}

func TestSocketURL(t *testing.T) {
	convey.Convey("Given service base URLs", t, func() {
		convey.Convey("When deriving the socket endpoint", func() {
			cases := map[string]string{
				"http://localhost:9080":   "ws://localhost:9080/ws",
				"https://kestrel.example": "wss://kestrel.example/ws",
				"http://10.0.0.5:9080/":   "ws://10.0.0.5:9080/ws",
				"ws://localhost:9080":     "ws://localhost:9080/ws",
			}
			for in, want := range cases {
				got, err := socketURL(in)
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldEqual, want)
			}
		})

		convey.Convey("When the scheme is not speakable", func() {
			_, err := socketURL("ftp://localhost:9080")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestSelectScenarios(t *testing.T) {
	convey.Convey("Given the scenario selector", t, func() {
		convey.Convey("When no names are given", func() {
			picked, err := selectScenarios(nil)
			convey.So(err, convey.ShouldBeNil)
			convey.So(picked, convey.ShouldHaveLength, 8)
		})

		convey.Convey("When picking by name with stray spaces", func() {
			picked, err := selectScenarios([]string{" fence-pacer", "blackout-feed "})
			convey.So(err, convey.ShouldBeNil)
			convey.So(picked, convey.ShouldHaveLength, 2)
			convey.So(picked[0].Name, convey.ShouldEqual, "fence-pacer")
			convey.So(picked[1].Name, convey.ShouldEqual, "blackout-feed")
		})

		convey.Convey("When a name is unknown", func() {
			_, err := selectScenarios([]string{"ghost-run"})
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "ghost-run")
		})
	})
}

func TestCheckScenario(t *testing.T) {
	convey.Convey("Given a scenario and a set of findings", t, func() {
		scn := Scenario{
			Name:      "unit",
			StreamID:  "cam-unit",
			SubjectID: "trk-unit",
			Expect: Expectation{
				Zone:       "DANGER",
				Level:      "HIGH",
				MinScore:   60,
				MaxScore:   80,
				Patterns:   []string{"pacing"},
				MinTrust:   99,
				FeedAlerts: 0,
			},
		}

		watch := &watcher{
			patterns: map[string]map[string]int{"trk-unit": {"pacing": 4}},
			peaks:    map[string]float64{"trk-unit": 72},
			alerts:   map[string]int{},
			done:     make(chan struct{}),
		}

		found := &findings{
			subjects: map[string]RiskEntry{
				"trk-unit": {SubjectID: "trk-unit", StreamID: "cam-unit", Score: 70, Level: "HIGH", Zone: "DANGER"},
			},
			streams: map[string]StreamStatus{
				"cam-unit": {Feed: FeedStatus{StreamID: "cam-unit", TrustScore: 100}},
			},
		}

		convey.Convey("When everything matches", func() {
			convey.So(checkScenario(&scn, found, watch), convey.ShouldBeEmpty)
		})

		convey.Convey("When the zone disagrees", func() {
			entry := found.subjects["trk-unit"]
			entry.Zone = "WARNING"
			found.subjects["trk-unit"] = entry

			problems := checkScenario(&scn, found, watch)
			convey.So(problems, convey.ShouldHaveLength, 1)
			convey.So(problems[0], convey.ShouldContainSubstring, "zone")
		})

		convey.Convey("When the score drifts out of bounds", func() {
			entry := found.subjects["trk-unit"]
			entry.Score = 92
			found.subjects["trk-unit"] = entry

			problems := checkScenario(&scn, found, watch)
			convey.So(problems, convey.ShouldHaveLength, 1)
			convey.So(problems[0], convey.ShouldContainSubstring, "score")
		})

		convey.Convey("When the pattern never reached the socket", func() {
			watch.patterns = map[string]map[string]int{}

			problems := checkScenario(&scn, found, watch)
			convey.So(problems, convey.ShouldHaveLength, 1)
			convey.So(problems[0], convey.ShouldContainSubstring, "pacing")
		})

		convey.Convey("When the subject was never scored", func() {
			delete(found.subjects, "trk-unit")

			problems := checkScenario(&scn, found, watch)
			convey.So(problems, convey.ShouldHaveLength, 1)
			convey.So(problems[0], convey.ShouldContainSubstring, "no riskboard entry")
		})

		convey.Convey("When the stream status is missing", func() {
			delete(found.streams, "cam-unit")

			problems := checkScenario(&scn, found, watch)
			convey.So(problems, convey.ShouldHaveLength, 1)
			convey.So(problems[0], convey.ShouldContainSubstring, "no stream status")
		})

		convey.Convey("When a suspicious feed was expected", func() {
			scn.Expect.Suspicious = true
			scn.Expect.FeedAlerts = 1
			scn.Expect.MinTrust = 0
			scn.Expect.MaxTrust = 40

			convey.Convey("And the service never flagged it", func() {
				problems := checkScenario(&scn, found, watch)
				convey.So(len(problems), convey.ShouldBeGreaterThanOrEqualTo, 3)
			})

			convey.Convey("And the service flagged it with alerts", func() {
				entry := found.subjects["trk-unit"]
				entry.SuspiciousFeed = true
				found.subjects["trk-unit"] = entry
				found.streams["cam-unit"] = StreamStatus{
					Feed: FeedStatus{StreamID: "cam-unit", TrustScore: 12, Suspicious: true},
				}
				watch.alerts["cam-unit"] = 1

				convey.So(checkScenario(&scn, found, watch), convey.ShouldBeEmpty)
			})
		})
	})
}
