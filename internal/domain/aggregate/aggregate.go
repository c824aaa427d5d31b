// Package aggregate folds a user's listening windows into one unit-length
// taste embedding.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/vecmath"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// Resolver resolves a single item key.
type Resolver interface {
	Resolve(ctx context.Context, key model.ItemKey) model.ResolvedItem
}

// Resolution pairs every input stat with its resolved item.
type Resolution struct {
	Stats    []model.WindowStat
	Items    []model.ResolvedItem
	Coverage model.Coverage
}

// Contribution is the combined weight of one item across all windows.
type Contribution struct {
	Key     model.ItemKey
	Tier    model.Tier
	Vector  model.Vector
	Weight  float64
	Windows []model.WindowLabel
	Boosted bool
}

// Combined is the weighted mean before normalization.
type Combined struct {
	Mean          model.Vector
	WeightSum     float64
	Contributions []Contribution
	Coverage      model.Coverage
}

// Result is the output of a full aggregation.
type Result struct {
	Embedding     model.UserEmbedding
	Contributions []Contribution
	WeightSum     float64
}

// Aggregator is stateless between calls and safe for concurrent use.
type Aggregator struct {
	resolver     Resolver
	dim          int
	weights      Weights
	halfLifeDays float64
	decayWindows map[model.WindowLabel]bool
	boost        float64
	concurrency  int
	now          func() time.Time
	logger       logger.Logger
}

// New creates an aggregator over r.
func New(r Resolver, opts ...Option) *Aggregator {
	a := &Aggregator{
		resolver:     r,
		dim:          model.Dimension,
		weights:      DefaultWeights(),
		halfLifeDays: DefaultHalfLifeDays,
		decayWindows: map[model.WindowLabel]bool{model.WindowRecent: true},
		boost:        DefaultConsistencyBoost,
		concurrency:  DefaultConcurrency,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("aggregator")
	}
	return a
}

// Now returns the aggregator's clock reading.
func (a *Aggregator) Now() time.Time { return a.now() }

// Aggregate resolves, combines and normalizes groups in one call.
func (a *Aggregator) Aggregate(ctx context.Context, username string, groups []model.WindowGroup) (Result, error) {
	res, err := a.ResolveAll(ctx, groups)
	if err != nil {
		return Result{}, err
	}
	combined := a.Combine(res)
	emb := a.Normalize(ctx, username, combined)
	return Result{Embedding: emb, Contributions: combined.Contributions, WeightSum: combined.WeightSum}, nil
}

// ResolveAll resolves every stat. Items of one window are resolved in
// parallel; per-item misses are recorded, never returned as errors.
func (a *Aggregator) ResolveAll(ctx context.Context, groups []model.WindowGroup) (Resolution, error) {
	start := time.Now()
	total := 0
	for _, g := range groups {
		if !g.Label.Valid() {
			return Resolution{}, fmt.Errorf("%w: unknown window %q", model.ErrInvalidArgument, g.Label)
		}
		total += g.Len()
	}

	res := Resolution{
		Stats: make([]model.WindowStat, 0, total),
		Items: make([]model.ResolvedItem, total),
	}
	for _, g := range groups {
		offset := len(res.Stats)
		for _, st := range g.Stats {
			st.Window = g.Label
			res.Stats = append(res.Stats, st)
		}

		eg, egctx := errgroup.WithContext(ctx)
		eg.SetLimit(a.concurrency)
		for i := range g.Stats {
			idx := offset + i
			eg.Go(func() error {
				if err := egctx.Err(); err != nil {
					return err
				}
				res.Items[idx] = a.resolver.Resolve(egctx, res.Stats[idx].Key)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return Resolution{}, classify(err)
		}
	}
	if err := ctx.Err(); err != nil {
		return Resolution{}, classify(err)
	}

	for _, it := range res.Items {
		res.Coverage.Add(it.Tier)
	}
	metrics.RecordAggregationLatency(float64(time.Since(start).Microseconds()) / 1000)
	return res, nil
}

// Combine weighs every resolved stat, merges repeated keys, applies the
// consistency boost once per key seen in more than one window, and takes
// the weighted mean.
func (a *Aggregator) Combine(res Resolution) Combined {
	now := a.now()
	byKey := make(map[model.ItemKey]*Contribution)
	seen := make(map[model.ItemKey]map[model.WindowLabel]bool)

	for i, st := range res.Stats {
		it := res.Items[i]
		if !it.Resolved() {
			continue
		}
		decay := 1.0
		if a.decayWindows[st.Window] && !st.PlayedAt.IsZero() {
			decay = Decay(now.Sub(st.PlayedAt), a.halfLifeDays)
		}
		w := ItemWeight(st.PlayCount, a.weights[st.Window], decay)

		c, ok := byKey[st.Key]
		if !ok {
			c = &Contribution{Key: st.Key, Tier: it.Tier, Vector: it.Vector}
			byKey[st.Key] = c
			seen[st.Key] = make(map[model.WindowLabel]bool)
		}
		c.Weight += w
		if !seen[st.Key][st.Window] {
			seen[st.Key][st.Window] = true
			c.Windows = append(c.Windows, st.Window)
		}
	}

	contribs := make([]Contribution, 0, len(byKey))
	for _, c := range byKey {
		if len(c.Windows) > 1 {
			c.Weight *= a.boost
			c.Boosted = true
		}
		contribs = append(contribs, *c)
	}
	// sorted so the summation order is fixed
	sort.Slice(contribs, func(i, j int) bool { return contribs[i].Key.String() < contribs[j].Key.String() })

	mean := make(model.Vector, a.dim)
	var sum float64
	for _, c := range contribs {
		vecmath.AddScaled(mean, c.Vector, c.Weight)
		sum += c.Weight
	}
	if sum > 0 {
		vecmath.Scale(mean, 1/sum)
	}
	return Combined{Mean: mean, WeightSum: sum, Contributions: contribs, Coverage: res.Coverage}
}

// Normalize scales the weighted mean to unit length. A zero weight sum or
// a mean with no direction yields a zero vector.
func (a *Aggregator) Normalize(ctx context.Context, username string, c Combined) model.UserEmbedding {
	emb := model.UserEmbedding{
		Username:    username,
		GeneratedAt: a.now(),
		Coverage:    c.Coverage,
		Vector:      make(model.Vector, a.dim),
	}
	if c.WeightSum > 0 {
		if unit, ok := vecmath.Normalize(c.Mean); ok {
			emb.Vector = unit
		}
	}
	metrics.RecordCoverageRatio(emb.CoverageRatio())
	if emb.Degenerate() {
		metrics.RecordEmbeddingDegenerate()
		a.logger.Warn(ctx, "degenerate embedding",
			logger.String("username", username),
			logger.Int("items", c.Coverage.Total),
			logger.Int("resolved", c.Coverage.Resolved()),
		)
	}
	return emb
}

// TopContributions returns the n heaviest contributions.
func TopContributions(contribs []Contribution, n int) []Contribution {
	out := make([]Contribution, len(contribs))
	copy(out, contribs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrDependencyTimeout, err)
	}
	return err
}
