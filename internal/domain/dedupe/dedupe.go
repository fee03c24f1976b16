// Package dedupe provides idempotency tracking for observation batches.
// Upstream perception collaborators deliver at-least-once; the deduper turns
// that into at-most-once processing per (stream, batch) key.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// defaultMaxEntries bounds the remembered keys; at 30 fps per stream this
// covers several minutes of redelivery window across many cameras.
const defaultMaxEntries = 8192

// Key builds the idempotency key for one observation batch. Batch ids only
// need to be unique within their stream.
func Key(streamID, batchID string) string {
	return streamID + "/" + batchID
}

// Deduper records seen batch keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if
	// not. Returns true when the key was already seen.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord forgets a key so its batch can be retried. Used when a batch
	// was recorded but could not be handed to the pipeline (backpressure).
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// memoryDeduper keeps the live key set in a map and the insertion order in a
// fixed ring. When the set is full the oldest inserted key is evicted (FIFO).
// Unrecord only removes from the map; the ring slot goes stale and is skipped
// when eviction reaches it.
type memoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	head    int // next write slot
	tail    int // oldest slot
	queued  int // occupied ring slots, stale included
	maxSize int // 0 or negative disables eviction
	size    atomic.Int64
}

// NewInMemoryDeduper creates an in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &memoryDeduper{
		maxSize: defaultMaxEntries,
	}

	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[string]struct{})
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

// SeenAndRecord atomically checks whether key was seen and records it if not.
func (d *memoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if d.maxSize > 0 {
		for d.queued > 0 && (len(d.seen) >= d.maxSize || d.queued >= len(d.ring)) {
			d.popOldest()
		}
		d.ring[d.head] = key
		d.head = (d.head + 1) % len(d.ring)
		d.queued++
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

// Unrecord forgets a key so its batch can be retried.
func (d *memoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; !ok {
		return
	}
	delete(d.seen, key)
	d.size.Add(-1)
}

// popOldest frees exactly one ring slot, dropping its key from the live set
// when the slot is not stale. Callers hold d.mu.
func (d *memoryDeduper) popOldest() {
	key := d.ring[d.tail]
	d.ring[d.tail] = ""
	d.tail = (d.tail + 1) % len(d.ring)
	d.queued--
	if _, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// Size returns the number of live keys.
func (d *memoryDeduper) Size() int64 {
	return d.size.Load()
}
