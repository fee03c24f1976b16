// Package queue defines the contract for enqueuing and consuming
// observation batches.
package queue

// Option applies a configuration option to the ShardedQueue.
type Option func(*ShardedQueue)

// WithShards sets the number of shards in the queue.
func WithShards(shards int) Option {
	return func(q *ShardedQueue) {
		if shards > 0 {
			q.shardCount = shards
		}
	}
}

// WithShardCapacity sets the buffer capacity of each shard.
func WithShardCapacity(capacity int) Option {
	return func(q *ShardedQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}
