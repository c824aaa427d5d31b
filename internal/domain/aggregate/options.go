package aggregate

import (
	"time"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
)

// Defaults for the temporal weighting.
const (
	DefaultHalfLifeDays     = 30.0
	DefaultConsistencyBoost = 1.4
	DefaultConcurrency      = 8
)

// Weights maps each window to its share of the final embedding.
type Weights map[model.WindowLabel]float64

// DefaultWeights favours long-term taste while keeping recency bounded.
func DefaultWeights() Weights {
	return Weights{
		model.WindowOverall:     0.45,
		model.WindowSixMonths:   0.25,
		model.WindowThreeMonths: 0.15,
		model.WindowRecent:      0.15,
	}
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWeights replaces the per-window weights. Windows missing from w keep their default.
func WithWeights(w Weights) Option {
	return func(a *Aggregator) {
		for label, weight := range w {
			if label.Valid() && weight >= 0 {
				a.weights[label] = weight
			}
		}
	}
}

// WithHalfLife sets the recency decay half-life in days.
func WithHalfLife(days float64) Option {
	return func(a *Aggregator) {
		if days > 0 {
			a.halfLifeDays = days
		}
	}
}

// WithDecayWindows sets which windows apply recency decay to timestamped stats.
func WithDecayWindows(labels ...model.WindowLabel) Option {
	return func(a *Aggregator) {
		a.decayWindows = make(map[model.WindowLabel]bool, len(labels))
		for _, l := range labels {
			a.decayWindows[l] = true
		}
	}
}

// WithConsistencyBoost sets the multiplier for items seen in several windows.
func WithConsistencyBoost(boost float64) Option {
	return func(a *Aggregator) {
		if boost >= 1 {
			a.boost = boost
		}
	}
}

// WithConcurrency bounds parallel resolutions within one window.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithDimension sets the embedding length. It must match the catalog.
func WithDimension(dim int) Option {
	return func(a *Aggregator) {
		if dim > 0 {
			a.dim = dim
		}
	}
}

// WithClock sets the time source used for decay and timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
