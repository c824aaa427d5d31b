// Package resolver turns item keys into embeddings through an ordered
// fallback chain: cache, exact catalog hit, fuzzy name match, zero-shot
// inference from artists, and finally a miss.
package resolver

import (
	"context"

	"github.com/okian/tastebud/internal/domain/cache"
	"github.com/okian/tastebud/internal/domain/catalog"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/vecmath"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// Catalog is the read-only lookup surface the resolver needs.
type Catalog interface {
	Lookup(key model.ItemKey) (model.ItemEmbedding, bool)
	Artist(name string) (model.ItemEmbedding, bool)
	Fuzzy(key model.ItemKey, threshold float64) (catalog.Match, bool)
	SimilarArtists(name string, k int, floor float64) []catalog.Match
	Dimension() int
}

// Resolver is safe for concurrent use; the cache is its only mutable collaborator.
type Resolver struct {
	catalog        Catalog
	cache          cache.Cache
	fuzzyThreshold float64
	zeroShotK      int
	zeroShotFloor  float64
	logger         logger.Logger
}

// New creates a resolver over cat, fronted by c.
func New(cat Catalog, c cache.Cache, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:        cat,
		cache:          c,
		fuzzyThreshold: DefaultFuzzyThreshold,
		zeroShotK:      DefaultZeroShotK,
		zeroShotFloor:  DefaultZeroShotFloor,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("resolver")
	}
	return r
}

// Resolve returns the embedding for key. It never fails: unresolvable keys
// come back with TierMiss and no vector.
func (r *Resolver) Resolve(ctx context.Context, key model.ItemKey) model.ResolvedItem {
	if key.IsZero() {
		return r.record(model.ResolvedItem{Key: key, Tier: model.TierMiss})
	}
	if hit, ok := r.cache.Get(ctx, key); ok {
		return r.record(hit)
	}

	res := r.lookup(key)
	if res.Resolved() {
		r.cache.Put(ctx, key, res)
	} else {
		r.logger.Debug(ctx, "item miss", logger.String("key", key.String()))
	}
	return r.record(res)
}

// lookup runs the catalog tiers in order; the first success wins.
func (r *Resolver) lookup(key model.ItemKey) model.ResolvedItem {
	if it, ok := r.catalog.Lookup(key); ok {
		return model.ResolvedItem{Key: key, MatchedKey: it.Key, Vector: it.Vector, Tier: model.TierExact, Similarity: 1}
	}
	if m, ok := r.catalog.Fuzzy(key, r.fuzzyThreshold); ok {
		return model.ResolvedItem{Key: key, MatchedKey: m.Item.Key, Vector: m.Item.Vector, Tier: model.TierFuzzy, Similarity: m.Similarity}
	}
	if res, ok := r.zeroShot(key); ok {
		return res
	}
	return model.ResolvedItem{Key: key, Tier: model.TierMiss}
}

// zeroShot infers a vector from the item's artist, or from the artists
// whose names are closest, weighted by name similarity.
func (r *Resolver) zeroShot(key model.ItemKey) (model.ResolvedItem, bool) {
	if !key.IsArtist() {
		if it, ok := r.catalog.Artist(key.Artist); ok {
			return model.ResolvedItem{Key: key, MatchedKey: it.Key, Vector: it.Vector, Tier: model.TierZeroShot, Similarity: 1}, true
		}
	}

	similar := r.catalog.SimilarArtists(key.Artist, r.zeroShotK, r.zeroShotFloor)
	if len(similar) == 0 {
		return model.ResolvedItem{}, false
	}
	vec := make(model.Vector, r.catalog.Dimension())
	var total float64
	for _, m := range similar {
		vecmath.AddScaled(vec, m.Item.Vector, m.Similarity)
		total += m.Similarity
	}
	if total == 0 {
		return model.ResolvedItem{}, false
	}
	vecmath.Scale(vec, 1/total)
	return model.ResolvedItem{
		Key:        key,
		MatchedKey: similar[0].Item.Key,
		Vector:     vec,
		Tier:       model.TierZeroShot,
		Similarity: similar[0].Similarity,
	}, true
}

func (r *Resolver) record(res model.ResolvedItem) model.ResolvedItem {
	metrics.RecordResolution(res.Tier.String())
	return res
}
