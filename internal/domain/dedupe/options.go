// Package dedupe provides idempotency tracking for observation batches.
package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*memoryDeduper)

// WithMaxSize sets how many batch keys are remembered. Positive values bound
// the set with FIFO eviction; zero or negative disables eviction entirely.
func WithMaxSize(maxSize int) Option {
	return func(d *memoryDeduper) {
		d.maxSize = maxSize
	}
}
