// Package matching queries the vector index for a user's nearest profiles
// and shapes the hits into ranked, explained match candidates.
package matching

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/scoring"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// Defaults for match queries.
const (
	DefaultTimeout   = 2 * time.Second
	DefaultOverfetch = 3
)

// Index is the nearest-neighbour search the gateway depends on.
type Index interface {
	Query(ctx context.Context, vector model.Vector, k int, excludeIDs []string) ([]model.Hit, error)
}

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithTimeout bounds each index query.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithOverfetch sets how many extra hits per requested match are fetched
// when a filter may discard some.
func WithOverfetch(factor int) Option {
	return func(g *Gateway) {
		if factor > 0 {
			g.overfetch = factor
		}
	}
}

// WithScorer sets the candidate scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(g *Gateway) {
		if s != nil {
			g.scorer = s
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gateway answers match queries. A query either returns the complete
// ranked list or an error, never a partial list.
type Gateway struct {
	index     Index
	scorer    *scoring.Scorer
	timeout   time.Duration
	overfetch int
	logger    logger.Logger
}

// New creates a Gateway over idx.
func New(idx Index, opts ...Option) *Gateway {
	g := &Gateway{
		index:     idx,
		scorer:    scoring.New(),
		timeout:   DefaultTimeout,
		overfetch: DefaultOverfetch,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Get().Named("matching")
	}
	return g
}

// FindMatches returns up to limit candidates closest to requester.Vector,
// excluding requester.ID, ordered by descending compatibility.
func (g *Gateway) FindMatches(ctx context.Context, requester model.Profile, limit int, filter *Filter) ([]model.MatchCandidate, error) {
	start := time.Now()
	cands, err := g.findMatches(ctx, requester, limit, filter)
	metrics.RecordMatchLatency(float64(time.Since(start).Microseconds()) / 1000)
	metrics.RecordMatchQuery(outcome(err))
	return cands, err
}

func (g *Gateway) findMatches(ctx context.Context, requester model.Profile, limit int, filter *Filter) ([]model.MatchCandidate, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive, got %d", model.ErrInvalidArgument, limit)
	}
	if requester.Vector.IsZero() {
		return nil, model.ErrZeroCoverage
	}

	k := limit
	if filter != nil {
		k = limit * g.overfetch
	}

	qctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	hits, err := g.index.Query(qctx, requester.Vector, k, []string{requester.ID})
	if err == nil {
		// a late answer is still a timeout
		err = qctx.Err()
	}
	if err != nil {
		err = classify(err)
		g.logger.Error(ctx, "vector index query failed",
			logger.String("requester", requester.ID),
			logger.Int("k", k),
			logger.Error(err),
		)
		return nil, err
	}

	cands := make([]model.MatchCandidate, 0, len(hits))
	for _, h := range hits {
		if h.Profile.ID == requester.ID {
			continue
		}
		c := g.scorer.Score(requester, h)
		ok, err := filter.Match(c)
		if err != nil {
			return nil, err
		}
		if ok {
			cands = append(cands, c)
		}
	}
	scoring.Rank(cands)
	if len(cands) > limit {
		cands = cands[:limit]
	}
	return cands, nil
}

// classify maps an index failure onto the dependency error taxonomy.
func classify(err error) error {
	switch {
	case errors.Is(err, model.ErrDependencyTimeout), errors.Is(err, model.ErrDependencyUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: vector index: %w", model.ErrDependencyTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: vector index: %w", model.ErrDependencyUnavailable, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrZeroCoverage):
		return "degenerate"
	case errors.Is(err, model.ErrDependencyTimeout):
		return "timeout"
	case errors.Is(err, model.ErrDependencyUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
