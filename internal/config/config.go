// Package config defines service configuration and its defaults.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr            string        `koanf:"addr"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// AdminKey guards the admin routes. Empty leaves them open.
	AdminKey string `koanf:"admin_key"`

	Catalog      CatalogConfig      `koanf:"catalog"`
	Resolver     ResolverConfig     `koanf:"resolver"`
	Aggregation  AggregationConfig  `koanf:"aggregation"`
	Matching     MatchingConfig     `koanf:"matching"`
	Regeneration RegenerationConfig `koanf:"regeneration"`
	Repository   RepositoryConfig   `koanf:"repository"`
	Breaker      BreakerConfig      `koanf:"breaker"`
	LastFM       LastFMConfig       `koanf:"lastfm"`
	Seeding      SeedingConfig      `koanf:"seeding"`
}

// CatalogConfig locates the item catalog.
type CatalogConfig struct {
	// Driver is json or sqlite.
	Driver    string `koanf:"driver"`
	Path      string `koanf:"path"`
	Dimension int    `koanf:"dimension"`
}

// ResolverConfig tunes the lookup chain and its cache.
type ResolverConfig struct {
	CacheCapacity  int     `koanf:"cache_capacity"`
	FuzzyThreshold float64 `koanf:"fuzzy_threshold"`
	ZeroShotK      int     `koanf:"zero_shot_k"`
	ZeroShotFloor  float64 `koanf:"zero_shot_floor"`
}

// AggregationConfig tunes the temporal aggregator.
type AggregationConfig struct {
	// Weights maps window labels to their weight.
	Weights          map[string]float64 `koanf:"weights"`
	HalfLifeDays     float64            `koanf:"half_life_days"`
	ConsistencyBoost float64            `koanf:"consistency_boost"`
	Concurrency      int                `koanf:"concurrency"`
}

// MatchingConfig tunes the matching gateway.
type MatchingConfig struct {
	Timeout      time.Duration `koanf:"timeout"`
	DisplayLimit int           `koanf:"display_limit"`
	Overfetch    int           `koanf:"overfetch"`
}

// RegenerationConfig sizes the regeneration workers.
type RegenerationConfig struct {
	EmbeddingTimeout time.Duration `koanf:"embedding_timeout"`
	Workers          int           `koanf:"workers"`
	QueueSize        int           `koanf:"queue_size"`
	InflightSize     int           `koanf:"inflight_size"`
}

// RepositoryConfig selects the vector index backend.
type RepositoryConfig struct {
	// Driver is memory or redis.
	Driver    string      `koanf:"driver"`
	KeyPrefix string      `koanf:"key_prefix"`
	Redis     RedisConfig `koanf:"redis"`
}

// RedisConfig addresses the Redis vector index.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// BreakerConfig tunes the circuit breakers around external dependencies.
type BreakerConfig struct {
	Failures    uint32        `koanf:"failures"`
	OpenTimeout time.Duration `koanf:"open_timeout"`
	MaxRequests uint32        `koanf:"max_requests"`
	Interval    time.Duration `koanf:"interval"`
}

// LastFMConfig configures the profile provider.
type LastFMConfig struct {
	APIKey            string        `koanf:"api_key"`
	BaseURL           string        `koanf:"base_url"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Timeout           time.Duration `koanf:"timeout"`
	AllowPartial      bool          `koanf:"allow_partial"`
	TopLimit          int           `koanf:"top_limit"`
	RecentLimit       int           `koanf:"recent_limit"`
	GenreArtists      int           `koanf:"genre_artists"`
}

// SeedingConfig configures cold-start seeding.
type SeedingConfig struct {
	DefaultCount int `koanf:"default_count"`
	// PoolsPath overrides the built-in segment pools.
	PoolsPath string `koanf:"pools_path"`
	// RandomSeed makes ghost generation reproducible when non-zero.
	RandomSeed  int64 `koanf:"random_seed"`
	Concurrency int   `koanf:"concurrency"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		Catalog: CatalogConfig{
			Driver:    "json",
			Path:      "data/catalog.json",
			Dimension: 128,
		},
		Resolver: ResolverConfig{
			CacheCapacity:  8000,
			FuzzyThreshold: 0.82,
			ZeroShotK:      5,
			ZeroShotFloor:  0.35,
		},
		Aggregation: AggregationConfig{
			Weights: map[string]float64{
				"overall":       0.45,
				"last-6-months": 0.25,
				"last-3-months": 0.15,
				"recent-200":    0.15,
			},
			HalfLifeDays:     30,
			ConsistencyBoost: 1.4,
			Concurrency:      16,
		},
		Matching: MatchingConfig{
			Timeout:      2 * time.Second,
			DisplayLimit: 10,
			Overfetch:    3,
		},
		Regeneration: RegenerationConfig{
			EmbeddingTimeout: 20 * time.Second,
			Workers:          runtime.NumCPU(),
			QueueSize:        10_000,
			InflightSize:     10_000,
		},
		Repository: RepositoryConfig{
			Driver:    "memory",
			KeyPrefix: "tastebud:",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Breaker: BreakerConfig{
			Failures:    5,
			OpenTimeout: 10 * time.Second,
			MaxRequests: 3,
			Interval:    30 * time.Second,
		},
		LastFM: LastFMConfig{
			BaseURL:           "https://ws.audioscrobbler.com/2.0/",
			RequestsPerSecond: 5,
			Timeout:           10 * time.Second,
			AllowPartial:      true,
			TopLimit:          50,
			RecentLimit:       200,
			GenreArtists:      10,
		},
		Seeding: SeedingConfig{
			DefaultCount: 10_000,
			Concurrency:  8,
		},
	}
}
