// Package zone classifies subject distance into perimeter proximity bands.
package zone

import (
	"fmt"
	"math"

	"github.com/okian/kestrel/internal/domain/model"
)

// Default distance cut points and hysteresis margin, in boundary units.
const (
	defaultSafeMin    = 240.0
	defaultWarningMin = 120.0
	defaultDangerMin  = 40.0
	defaultMargin     = 15.0
)

// Zone is the proximity band produced by classification.
type Zone = model.Zone

// defaultMultipliers follow the severity order: closer bands amplify risk.
func defaultMultipliers() map[Zone]float64 {
	return map[Zone]float64{
		model.ZoneSafe:      1.0,
		model.ZoneWarning:   1.5,
		model.ZoneDanger:    2.0,
		model.ZoneIntrusion: 3.0,
	}
}

// Classifier maps boundary distance to a zone and risk multiplier. It is a
// pure function over the distance plus the subject's last zone; the last zone
// feeds the hysteresis rule and is carried by the caller.
type Classifier struct {
	safeMin     float64
	warningMin  float64
	dangerMin   float64
	margin      float64
	multipliers map[Zone]float64
}

// NewClassifier builds a classifier and validates threshold monotonicity:
// safeMin > warningMin > dangerMin >= 0, margin >= 0, and multipliers
// non-decreasing with severity.
func NewClassifier(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		safeMin:     defaultSafeMin,
		warningMin:  defaultWarningMin,
		dangerMin:   defaultDangerMin,
		margin:      defaultMargin,
		multipliers: defaultMultipliers(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Classifier) validate() error {
	if !(c.safeMin > c.warningMin && c.warningMin > c.dangerMin && c.dangerMin >= 0) {
		return fmt.Errorf("%w: thresholds must satisfy safe > warning > danger >= 0, got %.2f/%.2f/%.2f",
			ErrInvalidThresholds, c.safeMin, c.warningMin, c.dangerMin)
	}
	if c.margin < 0 {
		return fmt.Errorf("%w: negative hysteresis margin %.2f", ErrInvalidThresholds, c.margin)
	}
	prev := 0.0
	for _, z := range []Zone{model.ZoneSafe, model.ZoneWarning, model.ZoneDanger, model.ZoneIntrusion} {
		m, ok := c.multipliers[z]
		if !ok || m <= 0 {
			return fmt.Errorf("%w: missing or non-positive multiplier for %s", ErrInvalidMultipliers, z)
		}
		if m < prev {
			return fmt.Errorf("%w: multiplier for %s decreases with severity", ErrInvalidMultipliers, z)
		}
		prev = m
	}
	return nil
}

// Classify returns the zone for the given boundary distance, honoring
// hysteresis: escalation is immediate, de-escalation requires the distance to
// clear the target band's threshold by the configured margin. A NaN distance
// keeps the subject in its last zone.
func (c *Classifier) Classify(distance float64, last Zone) Zone {
	if math.IsNaN(distance) {
		return last
	}
	raw := c.band(distance, 0)
	if raw >= last {
		return raw
	}
	eased := c.band(distance, c.margin)
	if eased >= last {
		return last
	}
	return eased
}

// Multiplier returns the configured risk multiplier for a zone.
func (c *Classifier) Multiplier(z Zone) float64 {
	return c.multipliers[z]
}

// band classifies by raw thresholds shifted up by offset. Shifting makes the
// less severe bands harder to reach, which is exactly the de-escalation rule.
func (c *Classifier) band(distance, offset float64) Zone {
	switch {
	case distance >= c.safeMin+offset:
		return model.ZoneSafe
	case distance >= c.warningMin+offset:
		return model.ZoneWarning
	case distance >= c.dangerMin+offset:
		return model.ZoneDanger
	default:
		return model.ZoneIntrusion
	}
}
