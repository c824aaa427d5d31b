package config

import (
	"fmt"
	"strings"

	"github.com/okian/tastebud/internal/domain/model"
)

// Validate checks invariants. It returns an error wrapping ErrInvalidConfig
// naming the first offending field.
func (c *Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log_level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return invalid("log_format must be text or json")
	}
	if c.Addr == "" {
		return invalid("addr is required")
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return invalid("server timeouts must be > 0")
	}

	switch c.Catalog.Driver {
	case "json", "sqlite":
	default:
		return invalid("catalog.driver must be json or sqlite")
	}
	if c.Catalog.Path == "" {
		return invalid("catalog.path is required")
	}
	if c.Catalog.Dimension <= 0 {
		return invalid("catalog.dimension must be > 0")
	}

	if c.Resolver.CacheCapacity <= 0 {
		return invalid("resolver.cache_capacity must be > 0")
	}
	if c.Resolver.FuzzyThreshold <= 0 || c.Resolver.FuzzyThreshold > 1 {
		return invalid("resolver.fuzzy_threshold must be in (0,1]")
	}
	if c.Resolver.ZeroShotK <= 0 {
		return invalid("resolver.zero_shot_k must be > 0")
	}
	if c.Resolver.ZeroShotFloor < 0 || c.Resolver.ZeroShotFloor > 1 {
		return invalid("resolver.zero_shot_floor must be in [0,1]")
	}

	if err := c.Aggregation.validate(); err != nil {
		return err
	}

	if c.Matching.Timeout <= 0 {
		return invalid("matching.timeout must be > 0")
	}
	if c.Matching.DisplayLimit <= 0 || c.Matching.Overfetch <= 0 {
		return invalid("matching.display_limit and matching.overfetch must be > 0")
	}

	r := c.Regeneration
	if r.EmbeddingTimeout <= 0 || r.Workers <= 0 || r.QueueSize <= 0 || r.InflightSize <= 0 {
		return invalid("regeneration settings must be > 0")
	}

	switch c.Repository.Driver {
	case "memory":
	case "redis":
		if c.Repository.Redis.Addr == "" {
			return invalid("repository.redis.addr is required for the redis driver")
		}
	default:
		return invalid("repository.driver must be memory or redis")
	}

	if c.Breaker.Failures == 0 || c.Breaker.OpenTimeout <= 0 {
		return invalid("breaker.failures and breaker.open_timeout must be > 0")
	}

	if c.LastFM.BaseURL == "" {
		return invalid("lastfm.base_url is required")
	}
	if c.LastFM.RequestsPerSecond <= 0 || c.LastFM.Timeout <= 0 {
		return invalid("lastfm.requests_per_second and lastfm.timeout must be > 0")
	}
	if c.LastFM.TopLimit <= 0 || c.LastFM.RecentLimit <= 0 || c.LastFM.GenreArtists < 0 {
		return invalid("lastfm limits must be positive")
	}

	if c.Seeding.DefaultCount <= 0 || c.Seeding.Concurrency <= 0 {
		return invalid("seeding.default_count and seeding.concurrency must be > 0")
	}
	return nil
}

func (a AggregationConfig) validate() error {
	if len(a.Weights) == 0 {
		return invalid("aggregation.weights must not be empty")
	}
	for label, w := range a.Weights {
		if !model.WindowLabel(label).Valid() {
			return invalid(fmt.Sprintf("aggregation.weights: unknown window %q", label))
		}
		if w < 0 {
			return invalid(fmt.Sprintf("aggregation.weights[%s] must be >= 0", label))
		}
	}
	if a.HalfLifeDays <= 0 {
		return invalid("aggregation.half_life_days must be > 0")
	}
	if a.ConsistencyBoost < 1 {
		return invalid("aggregation.consistency_boost must be >= 1")
	}
	if a.Concurrency <= 0 {
		return invalid("aggregation.concurrency must be > 0")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
