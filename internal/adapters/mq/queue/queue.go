// Package queue buffers store snapshots on their way to persistence.
package queue

import (
	"context"
	"sync"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/pkg/metrics"
)

const defaultQueueCapacity = 64

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a snapshot. Returns false when the queue is full or closed.
	Enqueue(ctx context.Context, s model.Snapshot) bool

	// Dequeue returns a channel receiving snapshots; it closes with the queue.
	Dequeue(ctx context.Context) <-chan model.Snapshot

	// Len returns the current number of queued snapshots.
	Len(ctx context.Context) int

	// Close stops accepting snapshots and closes the dequeue channel once drained.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	snapshots chan model.Snapshot
	capacity  int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.snapshots = make(chan model.Snapshot, q.capacity)
	metrics.UpdateQueue(0, q.capacity)
	return q
}

// Enqueue adds a snapshot without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, s model.Snapshot) bool { //nolint:gocritic // snapshot copied into the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordPersistDropped()
		return false
	}

	select {
	case q.snapshots <- s:
		metrics.RecordPersistEnqueued()
		metrics.UpdateQueue(len(q.snapshots), q.capacity)
		return true
	case <-ctx.Done():
		metrics.RecordPersistDropped()
		return false
	default:
		metrics.RecordPersistDropped()
		return false
	}
}

// Dequeue returns a channel that receives snapshots as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan model.Snapshot {
	out := make(chan model.Snapshot)
	go func() {
		defer close(out)
		for s := range q.snapshots {
			select {
			case out <- s:
				metrics.UpdateQueue(len(q.snapshots), q.capacity)
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued snapshots.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.snapshots)
	metrics.UpdateQueue(size, q.capacity)
	return size
}

// Close stops the queue. It is safe to call more than once.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.snapshots)
	q.closed = true
	return nil
}

