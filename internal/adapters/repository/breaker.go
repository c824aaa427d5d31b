package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// BreakerSettings configures the circuit breaker in front of a Store.
type BreakerSettings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultBreakerSettings returns production defaults.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		Name:             "vector-index",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerStore guards a Store with a circuit breaker. While the breaker is
// open every call fails fast with model.ErrDependencyUnavailable.
type BreakerStore struct {
	next   Store
	cb     *gobreaker.CircuitBreaker[any]
	logger logger.Logger
}

var _ Store = (*BreakerStore)(nil)

// NewBreakerStore wraps next.
func NewBreakerStore(next Store, cfg BreakerSettings, l logger.Logger) *BreakerStore {
	if l == nil {
		l = logger.Get().Named("repository")
	}
	def := DefaultBreakerSettings()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = def.MaxRequests
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	b := &BreakerStore{next: next, logger: l}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn(context.Background(), "circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			metrics.UpdateBreakerState(name, breakerState(to))
		},
	})
	metrics.UpdateBreakerState(cfg.Name, metrics.BreakerClosed)
	return b
}

// State reports the breaker state as closed, half-open or open.
func (b *BreakerStore) State() string {
	return b.cb.State().String()
}

// isHealthy reports whether err says nothing about the dependency's health.
func isHealthy(err error) bool {
	return err == nil ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, ErrInvalidProfile) ||
		errors.Is(err, ErrInvalidLimit) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, context.Canceled)
}

func breakerState(s gobreaker.State) int {
	switch s {
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	default:
		return metrics.BreakerClosed
	}
}

func guard[T any](b *BreakerStore, op string, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.RecordDependencyError("vector_index", "breaker_open")
			return zero, fmt.Errorf("%w: vector index %s: %v", model.ErrDependencyUnavailable, op, err)
		case errors.Is(err, model.ErrDependencyTimeout):
			metrics.RecordDependencyError("vector_index", "timeout")
		case errors.Is(err, model.ErrDependencyUnavailable):
			metrics.RecordDependencyError("vector_index", "unavailable")
		}
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// Upsert implements Store.Upsert.
func (b *BreakerStore) Upsert(ctx context.Context, p model.Profile) (model.Profile, error) {
	return guard(b, "upsert", func() (model.Profile, error) { return b.next.Upsert(ctx, p) })
}

// GetByUsername implements Store.GetByUsername.
func (b *BreakerStore) GetByUsername(ctx context.Context, username string) (model.Profile, error) {
	return guard(b, "get", func() (model.Profile, error) { return b.next.GetByUsername(ctx, username) })
}

// Query implements Store.Query.
func (b *BreakerStore) Query(ctx context.Context, vector model.Vector, k int, excludeIDs []string) ([]model.Hit, error) {
	return guard(b, "query", func() ([]model.Hit, error) { return b.next.Query(ctx, vector, k, excludeIDs) })
}

// Counts implements Store.Counts.
func (b *BreakerStore) Counts(ctx context.Context) (Counts, error) {
	return guard(b, "count", func() (Counts, error) { return b.next.Counts(ctx) })
}

// Usernames implements Store.Usernames.
func (b *BreakerStore) Usernames(ctx context.Context, kind Kind) ([]string, error) {
	return guard(b, "usernames", func() ([]string, error) { return b.next.Usernames(ctx, kind) })
}

// DeleteSynthetic implements Store.DeleteSynthetic.
func (b *BreakerStore) DeleteSynthetic(ctx context.Context) (int, error) {
	return guard(b, "delete", func() (int, error) { return b.next.DeleteSynthetic(ctx) })
}

// DeleteDuplicates implements Store.DeleteDuplicates.
func (b *BreakerStore) DeleteDuplicates(ctx context.Context) (int, error) {
	return guard(b, "dedupe", func() (int, error) { return b.next.DeleteDuplicates(ctx) })
}

// Close implements Store.Close.
func (b *BreakerStore) Close() error {
	return b.next.Close()
}
