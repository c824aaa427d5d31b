// Package service wires the taste engine together and implements the
// operations the HTTP API exposes.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/okian/tastebud/internal/adapters/mq/queue"
	"github.com/okian/tastebud/internal/adapters/mq/worker"
	"github.com/okian/tastebud/internal/adapters/repository"
	"github.com/okian/tastebud/internal/domain/aggregate"
	"github.com/okian/tastebud/internal/domain/cache"
	"github.com/okian/tastebud/internal/domain/catalog"
	"github.com/okian/tastebud/internal/domain/inflight"
	"github.com/okian/tastebud/internal/domain/matching"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/seeding"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// Defaults for the service.
const (
	DefaultEmbeddingTimeout = 20 * time.Second
	DefaultQueueSize        = 10000
	DefaultInflightSize     = 10000
	DefaultSeedCount        = 10000
	DefaultMatchLimit       = 20
	MaxMatchLimit           = 100
	summaryArtists          = 5
)

// ProfileProvider fetches a user's listening history.
type ProfileProvider interface {
	Listening(ctx context.Context, username string) (model.Listening, error)
}

// Components are the collaborators the service orchestrates. Cache and
// Catalog are optional and only feed statistics.
type Components struct {
	Provider   ProfileProvider
	Store      repository.Store
	Aggregator *aggregate.Aggregator
	Gateway    *matching.Gateway
	Seeder     *seeding.Seeder
	Cache      *cache.LRU
	Catalog    *catalog.Catalog
}

// Service implements the API dependencies for the matching engine.
type Service struct {
	mu sync.RWMutex

	provider ProfileProvider
	store    repository.Store
	agg      *aggregate.Aggregator
	gateway  *matching.Gateway
	seeder   *seeding.Seeder
	cache    *cache.LRU
	catalog  *catalog.Catalog

	tracker inflight.Tracker
	jobs    *queue.InMemoryQueue
	pool    *worker.Pool

	workerCount      int
	queueSize        int
	inflightSize     int
	embeddingTimeout time.Duration
	seedCount        int

	stages *stageBook

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of regeneration workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the regeneration queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithInflightSize bounds how many regenerations may be pending at once.
func WithInflightSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.inflightSize = size
		}
	}
}

// WithEmbeddingTimeout bounds a single embedding generation.
func WithEmbeddingTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.embeddingTimeout = d
		}
	}
}

// WithDefaultSeedCount sets the ghost count used when a seed request names none.
func WithDefaultSeedCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.seedCount = n
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

// New constructs a Service over c.
func New(c Components, opts ...Option) (*Service, error) {
	switch {
	case c.Store == nil:
		return nil, ErrMissingStore
	case c.Provider == nil:
		return nil, ErrMissingSource
	case c.Aggregator == nil || c.Gateway == nil:
		return nil, ErrMissingEngine
	}
	s := &Service{
		provider:         c.Provider,
		store:            c.Store,
		agg:              c.Aggregator,
		gateway:          c.Gateway,
		seeder:           c.Seeder,
		cache:            c.Cache,
		catalog:          c.Catalog,
		workerCount:      runtime.NumCPU(),
		queueSize:        DefaultQueueSize,
		inflightSize:     DefaultInflightSize,
		embeddingTimeout: DefaultEmbeddingTimeout,
		seedCount:        DefaultSeedCount,
		stages:           newStageBook(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.seeder == nil {
		s.seeder = seeding.New(s.agg, s.store)
	}
	return s, nil
}

// Start brings up the regeneration queue and worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting tastebud service...")

	s.tracker = inflight.NewTracker(inflight.WithMaxSize(s.inflightSize))
	s.jobs = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.jobs, s, worker.WithJobTimeout(s.embeddingTimeout))
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "tastebud service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("inflightSize", s.inflightSize),
	)
	return nil
}

// Stop drains the worker pool. The vector index stays open; its owner closes it.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping tastebud service...")

	s.pool.Stop()
	_ = s.jobs.Close()

	s.started = false
	s.logger.Info(ctx, "tastebud service stopped")
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
	}
	if s.started {
		queueLen := s.jobs.Len(ctx)
		stats["queueLength"] = queueLen
		stats["activeWorkers"] = s.pool.Active()
		stats["inflight"] = s.tracker.Size()
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	if counts, err := s.store.Counts(ctx); err == nil {
		stats["profiles"] = counts
		stats["syntheticPercent"] = counts.SyntheticPercent()
	} else {
		stats["profilesError"] = err.Error()
	}
	if s.cache != nil {
		stats["cache"] = s.cache.Stats()
	}
	if s.catalog != nil {
		tracks, artists := s.catalog.Counts()
		stats["catalog"] = map[string]int{"items": s.catalog.Len(), "tracks": tracks, "artists": artists}
	}
	if b, ok := s.store.(*repository.BreakerStore); ok {
		stats["vectorIndexBreaker"] = b.State()
	}
	return stats
}
