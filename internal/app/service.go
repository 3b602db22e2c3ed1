// Package service wires the counter store, persistence, mirroring and catalog
// into one lifecycle and provides the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/ceejiggy/shinycounter/internal/adapters/catalog"
	"github.com/ceejiggy/shinycounter/internal/adapters/http/api"
	"github.com/ceejiggy/shinycounter/internal/adapters/mq/queue"
	"github.com/ceejiggy/shinycounter/internal/adapters/mq/worker"
	"github.com/ceejiggy/shinycounter/internal/adapters/obs"
	"github.com/ceejiggy/shinycounter/internal/adapters/repository"
	"github.com/ceejiggy/shinycounter/internal/domain/counter"
	"github.com/ceejiggy/shinycounter/internal/domain/mirror"
	"github.com/ceejiggy/shinycounter/internal/domain/model"
	"github.com/ceejiggy/shinycounter/pkg/logger"
)

const (
	defaultLookupTimeout = 30 * time.Second
	stopTimeout          = 10 * time.Second
)

// Catalog resolves a pokemon selection into a name and image.
type Catalog interface {
	Lookup(ctx context.Context, req catalog.Request) (catalog.Result, error)
}

// offlineSink stands in when no mirroring target is configured.
type offlineSink struct{}

func (offlineSink) SetText(context.Context, string, string) error  { return obs.ErrNotConnected }
func (offlineSink) SetImage(context.Context, string, string) error { return obs.ErrNotConnected }
func (offlineSink) Connected() bool                                { return false }

// Service owns every long-lived component.
type Service struct {
	mu sync.RWMutex

	// Core components
	kv          counter.KV
	kvCloser    io.Closer
	persistence *counter.Persistence
	queue       *queue.InMemoryQueue
	pool        *worker.Pool
	store       *counter.Store
	mirror      *mirror.Mirror
	obs         *obs.Client
	sink        mirror.Sink
	catalog     Catalog

	// Configuration
	storagePath       string
	busyTimeout       time.Duration
	queueSize         int
	workerCount       int
	obsURL            string
	obsPassword       string
	obsTimeout        time.Duration
	obsRequestTimeout time.Duration
	obsConnect        bool
	lookupTimeout     time.Duration
	newID             func() model.ID

	// State
	started    bool
	runCtx     context.Context //nolint:containedctx // lifetime of background goroutines
	cancel     context.CancelFunc
	mirrorDone chan struct{}
	lookups    sync.WaitGroup

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStoragePath selects a SQLite file. Empty keeps state in memory.
func WithStoragePath(path string) Option {
	return func(s *Service) {
		s.storagePath = strings.TrimSpace(path)
	}
}

// WithBusyTimeout sets the SQLite busy timeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithKV supplies a key-value store directly, overriding the storage path.
func WithKV(kv counter.KV) Option {
	return func(s *Service) {
		if kv != nil {
			s.kv = kv
		}
	}
}

// WithQueueSize sets the capacity of the persistence queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithWorkerCount sets the number of persistence workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithOBS enables the obs-websocket sink. When connect is true Start dials
// in the background.
func WithOBS(url, password string, connect bool) Option {
	return func(s *Service) {
		s.obsURL = strings.TrimSpace(url)
		s.obsPassword = password
		s.obsConnect = connect
	}
}

// WithOBSTimeouts bounds the obs dial plus handshake, and each request.
func WithOBSTimeouts(dial, request time.Duration) Option {
	return func(s *Service) {
		if dial > 0 {
			s.obsTimeout = dial
		}
		if request > 0 {
			s.obsRequestTimeout = request
		}
	}
}

// WithSink replaces the mirroring sink. It takes precedence over WithOBS.
func WithSink(sink mirror.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithCatalog enables pokemon lookups.
func WithCatalog(c Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLookupTimeout bounds a detached catalog lookup.
func WithLookupTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.lookupTimeout = d
		}
	}
}

// WithIDGenerator replaces the random id source for counters and mappings.
func WithIDGenerator(fn func() model.ID) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		busyTimeout:       5 * time.Second,
		queueSize:         64,
		workerCount:       max(1, runtime.NumCPU()/4),
		obsTimeout:        5 * time.Second,
		obsRequestTimeout: 5 * time.Second,
		lookupTimeout:     defaultLookupTimeout,
		newID:             model.NewID,
		logger:            nil, // replaced when the service starts
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens storage, loads state and starts the background workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.logger.Info(ctx, "starting shiny counter service...")

	if err := s.openStorage(ctx); err != nil {
		return err
	}

	s.persistence = counter.NewPersistence(s.kv, counter.WithPersistenceLogger(s.logger.Named("persistence")))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s.persistence, worker.WithLogger(s.logger.Named("worker")))

	sink := s.sink
	if sink == nil && s.obsURL != "" {
		s.obs = obs.NewClient(s.obsURL,
			obs.WithPassword(s.obsPassword),
			obs.WithTimeout(s.obsTimeout),
			obs.WithRequestTimeout(s.obsRequestTimeout),
			obs.WithLogger(s.logger.Named("obs")),
			obs.WithOnConnect(func() { s.mirror.Invalidate() }),
		)
		sink = s.obs
	}
	if sink == nil {
		sink = offlineSink{}
	}
	s.mirror = mirror.New(sink, mirror.WithLogger(s.logger.Named("mirror")), mirror.WithIDGenerator(s.newID))

	s.store = counter.New(
		counter.WithPersistence(s.persistence),
		counter.WithEnqueuer(s.queue),
		counter.WithIDGenerator(s.newID),
		counter.WithLogger(s.logger.Named("store")),
	)
	s.store.Subscribe(s.mirror.Notify)
	s.store.Load(ctx)
	s.mirror.Notify(s.store.Snapshot())

	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	// Workers exit when Stop closes the queue, not on cancel.
	s.pool.Start(context.WithoutCancel(ctx))
	s.mirrorDone = make(chan struct{})
	go func() {
		defer close(s.mirrorDone)
		s.mirror.Run(s.runCtx)
	}()

	if s.obs != nil && s.obsConnect {
		go s.connectOBS(s.runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "shiny counter service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.String("storage", s.storageLabel()),
		logger.Bool("obs", s.obs != nil),
		logger.Bool("catalog", s.catalog != nil),
	)
	return nil
}

func (s *Service) openStorage(ctx context.Context) error {
	if s.kv != nil {
		return nil
	}
	if s.storagePath == "" {
		s.kv = repository.NewMemoryKV()
		return nil
	}
	db, err := repository.OpenSQLite(ctx, s.storagePath, repository.WithBusyTimeout(s.busyTimeout))
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	s.kv = db
	s.kvCloser = db
	return nil
}

func (s *Service) storageLabel() string {
	if s.storagePath == "" {
		return "memory"
	}
	return s.storagePath
}

func (s *Service) connectOBS(ctx context.Context) {
	if err := s.obs.Connect(ctx); err != nil {
		s.logger.Warn(ctx, "obs connect failed; mirroring stays offline", logger.Error(err))
	}
}

// Stop flushes the latest state and shuts everything down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping shiny counter service...")

	// Pending lookups observe runCtx.
	s.cancel()
	s.lookups.Wait()

	if err := s.store.Flush(ctx); err != nil {
		s.logger.Error(ctx, "final flush failed", logger.Error(err))
	}
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "persistence workers did not drain", logger.Error(err))
		s.pool.Stop()
	}
	<-s.mirrorDone

	if s.obs != nil {
		if err := s.obs.Disconnect(); err != nil {
			s.logger.Warn(ctx, "obs disconnect failed", logger.Error(err))
		}
	}
	if s.kvCloser != nil {
		if err := s.kvCloser.Close(); err != nil {
			s.logger.Error(ctx, "closing storage failed", logger.Error(err))
		}
		s.kv = nil
		s.kvCloser = nil
	}

	s.started = false
	s.logger.Info(ctx, "shiny counter service stopped")
}

// Store returns the counter store. It is nil before Start.
func (s *Service) Store() *counter.Store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// Mirror returns the mapping registry. It is nil before Start.
func (s *Service) Mirror() *mirror.Mirror {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mirror
}

// APIDependencies returns what the HTTP server needs. Call after Start.
func (s *Service) APIDependencies() api.Dependencies {
	s.mu.RLock()
	defer s.mu.RUnlock()
	deps := api.Dependencies{
		Store:    s.store,
		Mappings: s.mirror,
		Stats:    s,
	}
	if s.obs != nil {
		deps.Sink = s.obs
	}
	if s.catalog != nil {
		deps.Selector = s
	}
	return deps
}

// SelectPokemon starts a catalog lookup and returns immediately. The result
// is applied to the counter with id if it still exists when the lookup ends.
func (s *Service) SelectPokemon(ctx context.Context, id model.ID, req catalog.Request) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return ErrNotStarted
	}
	if s.catalog == nil {
		return ErrCatalogDisabled
	}
	if strings.TrimSpace(req.Name) == "" {
		return catalog.ErrNoName
	}
	if _, ok := s.store.Counter(id); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCounter, id)
	}

	s.logger.Debug(ctx, "catalog lookup scheduled", logger.String("counter", string(id)), logger.String("name", req.Name))
	s.lookups.Add(1)
	go s.lookup(s.runCtx, s.store, id, req)
	return nil
}

func (s *Service) lookup(ctx context.Context, store *counter.Store, id model.ID, req catalog.Request) {
	defer s.lookups.Done()

	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	res, err := s.catalog.Lookup(ctx, req)
	if err != nil {
		s.logger.Warn(ctx, "catalog lookup failed",
			logger.String("counter", string(id)),
			logger.String("name", req.Name),
			logger.Error(err),
		)
		return
	}
	if !store.SetPokemonFor(id, res.Name, res.Image) {
		s.logger.Debug(ctx, "counter removed before lookup finished", logger.String("counter", string(id)))
		return
	}
	s.logger.Info(ctx, "pokemon selected",
		logger.String("counter", string(id)),
		logger.String("name", res.Name),
		logger.Bool("embedded", res.Embedded),
	)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"storage":     s.storageLabel(),
		"catalog":     s.catalog != nil,
	}
	if !s.started {
		return stats
	}

	snap := s.store.Snapshot()
	stats["revision"] = snap.Revision
	stats["lastWritten"] = s.persistence.LastWritten()
	stats["queueLength"] = s.queue.Len(ctx)
	stats["counters"] = len(snap.Counters)
	stats["homeCounters"] = len(snap.Home)
	stats["selected"] = snap.Selected
	stats["mappings"] = len(s.mirror.Mappings())
	if s.obs != nil {
		stats["obs"] = s.obs.Status()
	}
	return stats
}
