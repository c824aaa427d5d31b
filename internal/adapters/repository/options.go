package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
)

// DefaultKeyPrefix namespaces every Redis key the store writes.
const DefaultKeyPrefix = "tastebud:"

type options struct {
	dimension             int
	metricsUpdateInterval time.Duration
	keyPrefix             string
	now                   func() time.Time
	newID                 func() string
	logger                logger.Logger
}

func defaultOptions() options {
	return options{
		dimension:             model.Dimension,
		metricsUpdateInterval: 5 * time.Second,
		keyPrefix:             DefaultKeyPrefix,
		now:                   time.Now,
		newID:                 uuid.NewString,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("repository")
	}
	return o
}

// Option applies a configuration option to a Store implementation.
type Option func(*options)

// WithDimension sets the expected embedding length.
func WithDimension(dim int) Option {
	return func(o *options) {
		if dim > 0 {
			o.dimension = dim
		}
	}
}

// WithMetricsUpdateInterval sets the interval for background metrics updates.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.metricsUpdateInterval = interval
		}
	}
}

// WithKeyPrefix sets the Redis key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides how ids for new usernames are minted.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
