package resolver

import "github.com/okian/tastebud/pkg/logger"

// Default tuning for the approximate tiers.
const (
	DefaultFuzzyThreshold = 0.82
	DefaultZeroShotK      = 5
	DefaultZeroShotFloor  = 0.35
)

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithFuzzyThreshold sets the minimum name similarity for a fuzzy hit.
func WithFuzzyThreshold(threshold float64) Option {
	return func(r *Resolver) {
		if threshold > 0 && threshold <= 1 {
			r.fuzzyThreshold = threshold
		}
	}
}

// WithZeroShot sets how many similar artists are averaged and the minimum
// similarity each must reach.
func WithZeroShot(k int, floor float64) Option {
	return func(r *Resolver) {
		if k > 0 {
			r.zeroShotK = k
		}
		if floor > 0 && floor <= 1 {
			r.zeroShotFloor = floor
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}
