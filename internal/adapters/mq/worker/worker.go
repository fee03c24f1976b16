// Package worker defines worker contracts for asynchronous batch analysis.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/kestrel/internal/domain/model"
	"github.com/okian/kestrel/pkg/logger"
	"github.com/okian/kestrel/pkg/metrics"
)

// Default worker configuration constants.
const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Batch abstracts what workers read off the queue.
// Using the model.Batch type for consistency.
type Batch = model.Batch

// Queue defines how workers receive batches.
type Queue interface {
	Dequeue(ctx context.Context, shard int) <-chan *Batch
	Shards() int
}

// Processor runs one queued batch through the analysis pipeline.
type Processor interface {
	Process(ctx context.Context, b *Batch) error
}

// Worker processes batches from a single queue shard.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// ShardWorker implements Worker, pinned to one queue shard.
//
// Pinning a worker to a shard keeps frames from the same camera in
// arrival order without any cross-worker coordination.
type ShardWorker struct {
	queue     Queue
	processor Processor
	shard     int
	name      string

	// Shutdown control
	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewShardWorker creates a worker bound to the given shard.
func NewShardWorker(queue Queue, processor Processor, shard int, opts ...Option) *ShardWorker {
	w := &ShardWorker{
		queue:     queue,
		processor: processor,
		shard:     shard,
		name:      "worker", // default name
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	// Apply all options
	for _, opt := range opts {
		opt(w)
	}

	// Set up logger with worker name if not already set
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop. It exits when the context is canceled, the
// worker is shut down, or the shard channel is closed and drained.
func (w *ShardWorker) Run(ctx context.Context) {
	defer func() {
		close(w.done)
	}()

	batches := w.queue.Dequeue(ctx, w.shard)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case b, ok := <-batches:
			if !ok {
				// Channel closed, worker should stop
				return
			}

			if err := w.processBatch(ctx, b); err != nil {
				w.logger.Error(ctx, "error processing batch",
					logger.String("streamID", b.StreamID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *ShardWorker) Shutdown(ctx context.Context) error {
	// Signal shutdown
	w.stopOnce.Do(func() { close(w.shutdown) })

	// Wait for worker to finish or context to timeout
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processBatch runs a single batch through the processor.
func (w *ShardWorker) processBatch(ctx context.Context, b *Batch) error {
	// Track overall processing latency
	start := time.Now()
	defer func() {
		latency := time.Since(start).Milliseconds()
		metrics.RecordWorkerProcessingLatency(float64(latency))
	}()

	if err := w.processor.Process(ctx, b); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "process_error")
		return fmt.Errorf("process batch %s: %w", b.BatchID, err)
	}

	return nil
}

// Pool manages one worker per queue shard.
type Pool struct {
	workers   []*ShardWorker
	queue     Queue
	processor Processor

	// Logging
	logger logger.Logger
}

// NewPool creates a worker pool with exactly one worker per shard.
func NewPool(queue Queue, processor Processor) *Pool {
	pool := &Pool{
		workers:   make([]*ShardWorker, queue.Shards()),
		queue:     queue,
		processor: processor,
		logger:    logger.Get().Named("worker-pool"),
	}

	for i := range pool.workers {
		pool.workers[i] = NewShardWorker(
			queue,
			processor,
			i,
			WithName("shard-"+strconv.Itoa(i)),
		)
	}

	metrics.UpdateWorkerActiveCount(len(pool.workers))

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, worker := range p.workers {
		go worker.Run(ctx)
	}
}

// Stop stops all workers without draining the queue.
func (p *Pool) Stop() {
	for _, worker := range p.workers {
		stopCtx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
		_ = worker.Shutdown(stopCtx)
		cancel()
	}
	metrics.UpdateWorkerActiveCount(0)
}

// Shutdown gracefully shuts down the entire worker pool. The queue is
// closed first so that workers drain the remaining batches before exiting.
func (p *Pool) Shutdown(ctx context.Context) error {
	// First close the queue to stop new batches
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	// Wait for all workers to drain their shards or the timeout to expire
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, worker := range p.workers {
		select {
		case <-worker.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("shard", i))
			_ = worker.Shutdown(shutdownCtx)
		}
	}

	metrics.UpdateWorkerActiveCount(0)

	return nil
}
