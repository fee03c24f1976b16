// Package queue defines the contract for enqueuing and consuming
// observation batches.
//
// The in-memory implementation shards batches by stream so that frames
// from one camera are always consumed in arrival order, while distinct
// cameras can be processed in parallel.
package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/okian/kestrel/internal/domain/model"
	"github.com/okian/kestrel/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultShardCount    = 4
	defaultShardCapacity = 1024
)

// Batch represents the payload type flowing through the queue.
// Using the model.Batch type for type safety.
type Batch = model.Batch

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a batch to the shard owning its stream.
	// Returns false if the shard is full and the batch was not enqueued.
	Enqueue(ctx context.Context, b *Batch) bool

	// Dequeue returns a channel that will receive batches from the given
	// shard as they become available. The channel is closed when the
	// queue is closed.
	Dequeue(ctx context.Context, shard int) <-chan *Batch

	// Shards returns the number of shards in the queue.
	Shards() int

	// ShardFor returns the shard index that owns the given stream.
	ShardFor(streamID string) int

	// Len returns the current number of queued batches across all shards.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	// After closing, no new batches can be enqueued and all dequeue
	// channels will be closed once drained.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// ShardedQueue implements Queue using one buffered channel per shard.
//
// A stream is pinned to a shard by hashing its identifier, so two batches
// from the same camera never race each other through different workers.
type ShardedQueue struct {
	shards     []chan *Batch
	shardCount int
	capacity   int

	mu     sync.RWMutex
	closed bool
}

// NewShardedQueue creates a new sharded in-memory queue with
// configuration options.
func NewShardedQueue(opts ...Option) *ShardedQueue {
	q := &ShardedQueue{
		shardCount: defaultShardCount,
		capacity:   defaultShardCapacity,
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.shards = make([]chan *Batch, q.shardCount)
	for i := range q.shards {
		q.shards[i] = make(chan *Batch, q.capacity)
	}

	// Initialize metrics
	metrics.UpdateQueueCapacity(q.shardCount * q.capacity)
	metrics.UpdateQueueDepth(0)
	metrics.UpdateQueueUtilization(0.0)

	return q
}

// Shards returns the number of shards in the queue.
func (q *ShardedQueue) Shards() int {
	return q.shardCount
}

// ShardFor returns the shard index that owns the given stream.
// The mapping is stable for the lifetime of the queue.
func (q *ShardedQueue) ShardFor(streamID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(streamID))
	return int(h.Sum32() % uint32(q.shardCount))
}

// Enqueue adds a batch to the shard owning its stream.
func (q *ShardedQueue) Enqueue(ctx context.Context, b *Batch) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejection()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}

	shard := q.ShardFor(b.StreamID)
	select {
	case q.shards[shard] <- b:
		metrics.RecordQueueEnqueue()
		q.updateDepth(shard)
		return true
	case <-ctx.Done():
		metrics.RecordQueueRejection()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false // context cancelled
	default:
		metrics.RecordQueueRejection()
		metrics.RecordErrorByComponent("queue", "shard_full")
		return false // shard is full
	}
}

// Dequeue returns a channel that will receive batches from the given shard.
// An out-of-range shard yields an already closed channel.
func (q *ShardedQueue) Dequeue(ctx context.Context, shard int) <-chan *Batch {
	out := make(chan *Batch)
	if shard < 0 || shard >= q.shardCount {
		close(out)
		return out
	}

	// Wrap the shard channel to track dequeue metrics.
	go func() {
		defer close(out)
		for batch := range q.shards[shard] {
			select {
			case out <- batch:
				metrics.RecordQueueDequeue()
				q.updateDepth(shard)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued batches across all shards.
func (q *ShardedQueue) Len(ctx context.Context) int {
	total := 0
	for _, shard := range q.shards {
		total += len(shard)
	}
	metrics.UpdateQueueDepth(total)
	metrics.UpdateQueueUtilization(float64(total) / float64(q.shardCount*q.capacity))
	return total
}

// Close gracefully shuts down the queue.
func (q *ShardedQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	// Close every shard channel to signal consumers to stop.
	for _, shard := range q.shards {
		close(shard)
	}
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *ShardedQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// updateDepth refreshes the per-shard and aggregate depth gauges.
func (q *ShardedQueue) updateDepth(shard int) {
	metrics.UpdateQueueShardDepth(strconv.Itoa(shard), len(q.shards[shard]))
	total := 0
	for _, s := range q.shards {
		total += len(s)
	}
	metrics.UpdateQueueDepth(total)
	metrics.UpdateQueueUtilization(float64(total) / float64(q.shardCount*q.capacity))
}
