package config_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/kestrel/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Boundary.Polygon, convey.ShouldHaveLength, 4)
			convey.So(cfg.Zones.SafeMin, convey.ShouldEqual, 240)
			convey.So(cfg.Zones.WarningMin, convey.ShouldEqual, 120)
			convey.So(cfg.Zones.DangerMin, convey.ShouldEqual, 40)
			convey.So(cfg.Zones.HysteresisMargin, convey.ShouldEqual, 15)
			convey.So(cfg.Zones.Multipliers.Intrusion, convey.ShouldEqual, 3.0)
			convey.So(cfg.Behavior.Window, convey.ShouldEqual, 600)
			convey.So(cfg.Behavior.PresenceBase, convey.ShouldEqual, 15)
			convey.So(cfg.Behavior.AbsenceFrames, convey.ShouldEqual, 90)
			convey.So(cfg.Behavior.Loiter.Dwell, convey.ShouldEqual, 8*time.Second)
			convey.So(cfg.Trust.SuspiciousThreshold, convey.ShouldEqual, 70)
			convey.So(cfg.Trust.Entropy.Floor, convey.ShouldEqual, 4.0)
			convey.So(cfg.Trust.Entropy.Ceiling, convey.ShouldEqual, 7.9)
			convey.So(cfg.Risk.Medium, convey.ShouldEqual, 30)
			convey.So(cfg.Risk.High, convey.ShouldEqual, 60)
			convey.So(cfg.Risk.Critical, convey.ShouldEqual, 80)
			convey.So(cfg.Pipeline.Shards, convey.ShouldEqual, 4)
			convey.So(cfg.Pipeline.ShardCapacity, convey.ShouldEqual, 1024)
		})

		convey.Convey("Then the defaults should validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given config validation", t, func() {
		cases := []struct {
			name   string
			mutate func(*config.Config)
		}{
			{"empty addr", func(c *config.Config) { c.Addr = "" }},
			{"unknown log level", func(c *config.Config) { c.LogLevel = "verbose" }},
			{"zone thresholds not decreasing", func(c *config.Config) { c.Zones.SafeMin = 100 }},
			{"warning below danger", func(c *config.Config) { c.Zones.WarningMin = 30 }},
			{"multipliers decreasing", func(c *config.Config) { c.Zones.Multipliers.Intrusion = 1.0 }},
			{"risk medium above high", func(c *config.Config) { c.Risk.Medium = 90 }},
			{"risk critical above 100", func(c *config.Config) { c.Risk.Critical = 150 }},
			{"trust weights all zero", func(c *config.Config) {
				c.Trust.Weights = config.TrustWeights{}
			}},
			{"entropy floor above ceiling", func(c *config.Config) { c.Trust.Entropy.Floor = 8.0 }},
			{"behavior weights all zero", func(c *config.Config) {
				c.Behavior.Weights = config.BehaviorWeights{}
			}},
			{"smoothing alpha above one", func(c *config.Config) { c.Behavior.SmoothingAlpha = 1.5 }},
			{"surge ratio not above one", func(c *config.Config) { c.Behavior.Surge.Ratio = 1.0 }},
			{"too few polygon vertices", func(c *config.Config) {
				c.Boundary.Polygon = [][]float64{{0, 0}, {1, 0}}
			}},
			{"polygon vertex not a pair", func(c *config.Config) {
				c.Boundary.Polygon = [][]float64{{0, 0}, {1, 0}, {1}}
			}},
			{"polygon vertex not finite", func(c *config.Config) {
				c.Boundary.Polygon = [][]float64{{0, 0}, {1, 0}, {math.NaN(), 1}}
			}},
			{"absence frames zero", func(c *config.Config) { c.Behavior.AbsenceFrames = 0 }},
			{"pipeline shards zero", func(c *config.Config) { c.Pipeline.Shards = 0 }},
		}

		for _, tc := range cases {
			tc := tc
			convey.Convey("When the config has "+tc.name, func() {
				cfg := config.New()
				tc.mutate(cfg)
				err := cfg.Validate()

				convey.Convey("Then Validate reports an invalid config", func() {
					convey.So(err, convey.ShouldNotBeNil)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}
	})
}
