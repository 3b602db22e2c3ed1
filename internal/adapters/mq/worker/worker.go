// Package worker drains queued snapshots into persistent storage.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/pkg/logger"
	"github.com/ceejiggy/shinycounter/pkg/metrics"
)

const (
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Writer persists a snapshot.
type Writer interface {
	Write(ctx context.Context, s model.Snapshot) error
}

// Queue defines how workers receive snapshots.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.Snapshot
}

// Worker processes snapshots until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the current write to finish.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue  Queue
	writer Writer
	name   string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker.
func NewInMemoryWorker(q Queue, w Writer, opts ...Option) *InMemoryWorker {
	wk := &InMemoryWorker{
		queue:    q,
		writer:   w,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(wk)
	}
	if wk.name != "worker" {
		wk.logger = wk.logger.Named(wk.name)
	}
	return wk
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	snapshots := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case s, ok := <-snapshots:
			if !ok {
				return
			}
			if err := w.process(ctx, s); err != nil {
				w.logger.Error(ctx, "snapshot write failed",
					logger.Uint64("revision", s.Revision),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker. It is safe to call more than once.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signal()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) signal() {
	w.stopOnce.Do(func() { close(w.shutdown) })
}

func (w *InMemoryWorker) process(ctx context.Context, s model.Snapshot) error { //nolint:gocritic // snapshot received by value
	if err := w.writer.Write(ctx, s); err != nil {
		metrics.RecordPersistError()
		return fmt.Errorf("write revision %d: %w", s.Revision, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a worker pool. Counts below one are raised to one.
func NewPool(workerCount int, q Queue, w Writer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		o := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, w, o...)
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, wk := range p.workers {
		go wk.Run(ctx)
	}
}

// Stop signals every worker to exit without draining the queue and waits a
// bounded time for each. Snapshots still queued are abandoned.
func (p *Pool) Stop() {
	for _, wk := range p.workers {
		wk.signal()
	}
	for i, wk := range p.workers {
		ctx, cancel := context.WithTimeout(context.Background(), workerShutdownTimeout)
		if err := wk.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker did not stop", logger.Int("worker_id", i), logger.Error(err))
		}
		cancel()
	}
}

// Shutdown closes the queue, lets workers drain it, then waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, wk := range p.workers {
		select {
		case <-wk.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("pool shutdown: %w", shutdownCtx.Err())
		}
	}
	return nil
}
