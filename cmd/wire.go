package main

import (
	"context"
	"fmt"

	"github.com/okian/tastebud/internal/adapters/http/api"
	"github.com/okian/tastebud/internal/adapters/lastfm"
	"github.com/okian/tastebud/internal/adapters/repository"
	service "github.com/okian/tastebud/internal/app"
	"github.com/okian/tastebud/internal/config"
	"github.com/okian/tastebud/internal/domain/aggregate"
	"github.com/okian/tastebud/internal/domain/cache"
	"github.com/okian/tastebud/internal/domain/catalog"
	"github.com/okian/tastebud/internal/domain/matching"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/resolver"
	"github.com/okian/tastebud/internal/domain/scoring"
	"github.com/okian/tastebud/internal/domain/seeding"
	"github.com/okian/tastebud/pkg/logger"
)

// application holds the wired process components.
type application struct {
	svc     *service.Service
	handler *api.Server
	store   repository.Store
}

// Close releases the vector index.
func (a *application) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// build wires every component from cfg. provider overrides the Last.fm
// client when non-nil.
func build(ctx context.Context, cfg *config.Config, provider service.ProfileProvider) (*application, error) {
	log := logger.Get()

	cat, err := catalog.Load(ctx, cfg.Catalog.Driver, cfg.Catalog.Path, catalog.WithDimension(cfg.Catalog.Dimension))
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	tracks, artists := cat.Counts()
	log.Info(ctx, "catalog loaded",
		logger.String("path", cfg.Catalog.Path),
		logger.Int("tracks", tracks),
		logger.Int("artists", artists))

	lru, err := cache.New(cache.WithCapacity(cfg.Resolver.CacheCapacity))
	if err != nil {
		return nil, fmt.Errorf("resolution cache: %w", err)
	}
	res := resolver.New(cat, lru,
		resolver.WithFuzzyThreshold(cfg.Resolver.FuzzyThreshold),
		resolver.WithZeroShot(cfg.Resolver.ZeroShotK, cfg.Resolver.ZeroShotFloor))

	agg := aggregate.New(res,
		aggregate.WithDimension(cfg.Catalog.Dimension),
		aggregate.WithWeights(weights(cfg.Aggregation.Weights)),
		aggregate.WithHalfLife(cfg.Aggregation.HalfLifeDays),
		aggregate.WithConsistencyBoost(cfg.Aggregation.ConsistencyBoost),
		aggregate.WithConcurrency(cfg.Aggregation.Concurrency))

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gw := matching.New(store,
		matching.WithTimeout(cfg.Matching.Timeout),
		matching.WithOverfetch(cfg.Matching.Overfetch),
		matching.WithScorer(scoring.New(scoring.WithDisplayLimit(cfg.Matching.DisplayLimit))))

	seedOpts := []seeding.Option{seeding.WithConcurrency(cfg.Seeding.Concurrency)}
	if cfg.Seeding.PoolsPath != "" {
		pools, err := seeding.LoadPools(cfg.Seeding.PoolsPath)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("seed pools: %w", err)
		}
		seedOpts = append(seedOpts, seeding.WithPools(pools))
	}
	if cfg.Seeding.RandomSeed != 0 {
		seedOpts = append(seedOpts, seeding.WithSeed(cfg.Seeding.RandomSeed))
	}

	if provider == nil {
		client, err := lastfm.NewClient(cfg.LastFM.APIKey,
			lastfm.WithBaseURL(cfg.LastFM.BaseURL),
			lastfm.WithRateLimit(cfg.LastFM.RequestsPerSecond),
			lastfm.WithTimeout(cfg.LastFM.Timeout),
			lastfm.WithAllowPartial(cfg.LastFM.AllowPartial),
			lastfm.WithLimits(cfg.LastFM.TopLimit, cfg.LastFM.RecentLimit),
			lastfm.WithGenreArtists(cfg.LastFM.GenreArtists),
			lastfm.WithBreaker(cfg.Breaker.Failures, cfg.Breaker.OpenTimeout))
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("lastfm client: %w", err)
		}
		provider = client
	}

	svc, err := service.New(service.Components{
		Provider:   provider,
		Store:      store,
		Aggregator: agg,
		Gateway:    gw,
		Seeder:     seeding.New(agg, store, seedOpts...),
		Cache:      lru,
		Catalog:    cat,
	},
		service.WithWorkerCount(cfg.Regeneration.Workers),
		service.WithQueueSize(cfg.Regeneration.QueueSize),
		service.WithInflightSize(cfg.Regeneration.InflightSize),
		service.WithEmbeddingTimeout(cfg.Regeneration.EmbeddingTimeout),
		service.WithDefaultSeedCount(cfg.Seeding.DefaultCount),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &application{
		svc:     svc,
		handler: api.NewServer(svc, api.WithAdminKey(cfg.AdminKey)),
		store:   store,
	}, nil
}

// openStore opens the configured vector index behind a circuit breaker.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	opts := []repository.Option{
		repository.WithDimension(cfg.Catalog.Dimension),
		repository.WithKeyPrefix(cfg.Repository.KeyPrefix),
	}
	var next repository.Store
	switch cfg.Repository.Driver {
	case "redis":
		rc := cfg.Repository.Redis
		rs, err := repository.NewRedisStore(ctx, rc.Addr, rc.Password, rc.DB, opts...)
		if err != nil {
			return nil, fmt.Errorf("open redis index: %w", err)
		}
		next = rs
	default:
		next = repository.NewMemoryStore(ctx, opts...)
	}
	return repository.NewBreakerStore(next, repository.BreakerSettings{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.OpenTimeout,
		FailureThreshold: cfg.Breaker.Failures,
	}, nil), nil
}

func weights(in map[string]float64) aggregate.Weights {
	out := make(aggregate.Weights, len(in))
	for label, w := range in {
		out[model.WindowLabel(label)] = w
	}
	return out
}
