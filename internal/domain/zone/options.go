// Package zone classifies subject distance into perimeter proximity bands.
package zone

// Option applies a configuration option to the Classifier.
type Option func(*Classifier)

// WithThresholds sets the distance cut points for SAFE, WARNING and DANGER.
func WithThresholds(safeMin, warningMin, dangerMin float64) Option {
	return func(c *Classifier) {
		c.safeMin = safeMin
		c.warningMin = warningMin
		c.dangerMin = dangerMin
	}
}

// WithMargin sets the hysteresis margin applied to de-escalations.
func WithMargin(margin float64) Option {
	return func(c *Classifier) {
		c.margin = margin
	}
}

// WithMultipliers sets the per-zone risk multipliers.
func WithMultipliers(multipliers map[Zone]float64) Option {
	return func(c *Classifier) {
		if len(multipliers) > 0 {
			m := make(map[Zone]float64, len(multipliers))
			for z, v := range multipliers {
				m[z] = v
			}
			c.multipliers = m
		}
	}
}
