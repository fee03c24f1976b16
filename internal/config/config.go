// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Defaults live in New; Load layers file and environment on top.
// - Cross-field invariants (threshold ordering, weight sums) are enforced by
//   Validate, not scattered across consumers.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr" validate:"required"`

	// Boundary describes the protected-area polygon.
	Boundary BoundaryConfig `koanf:"boundary"`

	// Zones holds the proximity band thresholds and multipliers.
	Zones ZonesConfig `koanf:"zones"`

	// Behavior tunes the movement-pattern detectors.
	Behavior BehaviorConfig `koanf:"behavior"`

	// Trust tunes the camera feed integrity layers.
	Trust TrustConfig `koanf:"trust"`

	// Risk sets the alert level boundaries on the fused score.
	Risk RiskConfig `koanf:"risk"`

	// Pipeline sizes the ingest queue and dedupe cache.
	Pipeline PipelineConfig `koanf:"pipeline"`
}

// BoundaryConfig is the perimeter polygon as ordered [x, y] vertex pairs.
type BoundaryConfig struct {
	Polygon [][]float64 `koanf:"polygon" validate:"required,min=3,dive,len=2"`
}

// ZonesConfig holds the distance cut points (units of the boundary polygon)
// and the per-zone risk multipliers.
type ZonesConfig struct {
	SafeMin          float64           `koanf:"safe_min" validate:"gt=0"`
	WarningMin       float64           `koanf:"warning_min" validate:"gt=0"`
	DangerMin        float64           `koanf:"danger_min" validate:"gte=0"`
	HysteresisMargin float64           `koanf:"hysteresis_margin" validate:"gte=0"`
	Multipliers      MultipliersConfig `koanf:"multipliers"`
}

// MultipliersConfig maps each zone to its risk multiplier.
type MultipliersConfig struct {
	Safe      float64 `koanf:"safe" validate:"gt=0"`
	Warning   float64 `koanf:"warning" validate:"gt=0"`
	Danger    float64 `koanf:"danger" validate:"gt=0"`
	Intrusion float64 `koanf:"intrusion" validate:"gt=0"`
}

// BehaviorConfig tunes the behavior tracker and its four detectors.
type BehaviorConfig struct {
	// Window is the per-subject history capacity in samples. The loitering
	// detector spans the whole window; the others use their own sub-windows.
	Window         int             `koanf:"window" validate:"gt=1"`
	SmoothingAlpha float64         `koanf:"smoothing_alpha" validate:"gt=0,lte=1"`
	PresenceBase   float64         `koanf:"presence_base" validate:"gte=0,lte=100"`
	AbsenceFrames  int             `koanf:"absence_frames" validate:"gt=0"`
	Weights        BehaviorWeights `koanf:"weights"`
	Pacing         PacingConfig    `koanf:"pacing"`
	Approach       ApproachConfig  `koanf:"approach"`
	Loiter         LoiterConfig    `koanf:"loiter"`
	Surge          SurgeConfig     `koanf:"surge"`
}

// BehaviorWeights holds the per-pattern contribution weights.
type BehaviorWeights struct {
	Pacing          float64 `koanf:"pacing" validate:"gte=0,lte=1"`
	ApproachRetreat float64 `koanf:"approach_retreat" validate:"gte=0,lte=1"`
	Loitering       float64 `koanf:"loitering" validate:"gte=0,lte=1"`
	SuddenMovement  float64 `koanf:"sudden_movement" validate:"gte=0,lte=1"`
}

// PacingConfig tunes the tangential oscillation detector.
type PacingConfig struct {
	Window       int     `koanf:"window" validate:"gt=1"`
	MinReversals int     `koanf:"min_reversals" validate:"gt=0"`
	PerReversal  float64 `koanf:"per_reversal" validate:"gt=0,lte=1"`
	MinTangent   float64 `koanf:"min_tangent" validate:"gte=0"`
}

// ApproachConfig tunes the approach-retreat probing detector.
type ApproachConfig struct {
	Window       int     `koanf:"window" validate:"gt=1"`
	MinReversals int     `koanf:"min_reversals" validate:"gt=0"`
	Deadband     float64 `koanf:"deadband" validate:"gte=0"`
	ClosureScale float64 `koanf:"closure_scale" validate:"gt=0"`
}

// LoiterConfig tunes the dwell detector.
type LoiterConfig struct {
	Radius float64       `koanf:"radius" validate:"gt=0"`
	Dwell  time.Duration `koanf:"dwell" validate:"gt=0"`
}

// SurgeConfig tunes the sudden-movement detector.
type SurgeConfig struct {
	Window   int     `koanf:"window" validate:"gt=1"`
	Ratio    float64 `koanf:"ratio" validate:"gt=1"`
	MinSpeed float64 `koanf:"min_speed" validate:"gte=0"`
}

// TrustConfig tunes the camera trust scorer and its layers.
type TrustConfig struct {
	SmoothingAlpha      float64        `koanf:"smoothing_alpha" validate:"gt=0,lte=1"`
	SuspiciousThreshold float64        `koanf:"suspicious_threshold" validate:"gt=0,lte=100"`
	Weights             TrustWeights   `koanf:"weights"`
	Liveness            LivenessConfig `koanf:"liveness"`
	Entropy             EntropyConfig  `koanf:"entropy"`
	Motion              MotionConfig   `koanf:"motion"`
}

// TrustWeights holds the relative contribution of the trust layers.
type TrustWeights struct {
	Liveness float64 `koanf:"liveness" validate:"gte=0"`
	Entropy  float64 `koanf:"entropy" validate:"gte=0"`
	Motion   float64 `koanf:"motion" validate:"gte=0"`
}

// LivenessConfig tunes the frozen-feed detector.
type LivenessConfig struct {
	RepeatWindow int     `koanf:"repeat_window" validate:"gt=0"`
	Tolerance    int     `koanf:"tolerance" validate:"gte=0"`
	Slope        float64 `koanf:"slope" validate:"gt=0"`
}

// EntropyConfig tunes the information-content detector.
type EntropyConfig struct {
	Floor   float64 `koanf:"floor" validate:"gt=0"`
	Ceiling float64 `koanf:"ceiling" validate:"gt=0"`
	Slope   float64 `koanf:"slope" validate:"gt=0"`
}

// MotionConfig tunes the motion realism detector.
type MotionConfig struct {
	Window        int     `koanf:"window" validate:"gt=1"`
	UniformVar    float64 `koanf:"uniform_var" validate:"gt=0"`
	JitterCeiling float64 `koanf:"jitter_ceiling" validate:"gt=0"`
}

// RiskConfig holds the alert level boundaries on the fused 0-100 score.
type RiskConfig struct {
	Medium   float64 `koanf:"medium" validate:"gt=0"`
	High     float64 `koanf:"high" validate:"gt=0"`
	Critical float64 `koanf:"critical" validate:"gt=0,lte=100"`
}

// PipelineConfig sizes the ingest path.
type PipelineConfig struct {
	Shards        int `koanf:"shards" validate:"gt=0"`
	ShardCapacity int `koanf:"shard_capacity" validate:"gt=0"`
	// DedupeSize bounds the batch id cache; zero or negative means unbounded.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with the documented defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Addr:     ":9080",
		Boundary: BoundaryConfig{
			Polygon: [][]float64{{0, 0}, {400, 0}, {400, 400}, {0, 400}},
		},
		Zones: ZonesConfig{
			SafeMin:          240,
			WarningMin:       120,
			DangerMin:        40,
			HysteresisMargin: 15,
			Multipliers: MultipliersConfig{
				Safe:      1.0,
				Warning:   1.5,
				Danger:    2.0,
				Intrusion: 3.0,
			},
		},
		Behavior: BehaviorConfig{
			Window:         600,
			SmoothingAlpha: 0.35,
			PresenceBase:   15,
			AbsenceFrames:  90,
			Weights: BehaviorWeights{
				Pacing:          0.30,
				ApproachRetreat: 0.40,
				Loitering:       0.20,
				SuddenMovement:  0.10,
			},
			Pacing:   PacingConfig{Window: 30, MinReversals: 3, PerReversal: 0.15, MinTangent: 3.0},
			Approach: ApproachConfig{Window: 50, MinReversals: 2, Deadband: 2.0, ClosureScale: 80},
			Loiter:   LoiterConfig{Radius: 50, Dwell: 8 * time.Second},
			Surge:    SurgeConfig{Window: 10, Ratio: 3.0, MinSpeed: 5.0},
		},
		Trust: TrustConfig{
			SmoothingAlpha:      0.35,
			SuspiciousThreshold: 70,
			Weights:             TrustWeights{Liveness: 1, Entropy: 1, Motion: 1},
			Liveness:            LivenessConfig{RepeatWindow: 10, Tolerance: 5, Slope: 10},
			Entropy:             EntropyConfig{Floor: 4.0, Ceiling: 7.9, Slope: 200},
			Motion:              MotionConfig{Window: 10, UniformVar: 1.0, JitterCeiling: 40},
		},
		Risk: RiskConfig{
			Medium:   30,
			High:     60,
			Critical: 80,
		},
		Pipeline: PipelineConfig{
			Shards:        4,
			ShardCapacity: 1024,
			DedupeSize:    8192,
		},
	}
}

// Shared struct validator; construction deferred to first use.
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate enforces field constraints plus the cross-field invariants the
// struct tags cannot express. All failures wrap ErrInvalidConfig.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	z := c.Zones
	if z.SafeMin <= z.WarningMin || z.WarningMin <= z.DangerMin {
		return fmt.Errorf("%w: zone thresholds must decrease with severity (safe %.1f, warning %.1f, danger %.1f)",
			ErrInvalidConfig, z.SafeMin, z.WarningMin, z.DangerMin)
	}
	m := z.Multipliers
	if m.Safe > m.Warning || m.Warning > m.Danger || m.Danger > m.Intrusion {
		return fmt.Errorf("%w: zone multipliers must be non-decreasing with severity", ErrInvalidConfig)
	}

	r := c.Risk
	if r.Medium >= r.High || r.High >= r.Critical {
		return fmt.Errorf("%w: risk boundaries must increase (medium %.1f, high %.1f, critical %.1f)",
			ErrInvalidConfig, r.Medium, r.High, r.Critical)
	}

	t := c.Trust
	if t.Weights.Liveness+t.Weights.Entropy+t.Weights.Motion <= 0 {
		return fmt.Errorf("%w: trust layer weights must not all be zero", ErrInvalidConfig)
	}
	if t.Entropy.Floor >= t.Entropy.Ceiling {
		return fmt.Errorf("%w: entropy floor %.2f must sit below ceiling %.2f",
			ErrInvalidConfig, t.Entropy.Floor, t.Entropy.Ceiling)
	}

	w := c.Behavior.Weights
	if w.Pacing+w.ApproachRetreat+w.Loitering+w.SuddenMovement <= 0 {
		return fmt.Errorf("%w: behavior pattern weights must not all be zero", ErrInvalidConfig)
	}

	for i, pt := range c.Boundary.Polygon {
		for _, v := range pt {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: boundary vertex %d is not finite", ErrInvalidConfig, i)
			}
		}
	}

	return nil
}
