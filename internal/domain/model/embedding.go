package model

import (
	"math"
	"time"
)

// Dimension is the fixed length of every embedding.
const Dimension = 128

// Vector is an ordered sequence of embedding components.
type Vector []float64

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Norm returns the L2 norm of v.
func (v Vector) Norm() float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// IsZero reports whether every component is zero.
func (v Vector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// ItemEmbedding is the immutable catalog vector for an item.
type ItemEmbedding struct {
	Key        ItemKey
	Vector     Vector
	Popularity int64
}

// Tier records which lookup stage produced a resolved item.
type Tier uint8

// Resolution tiers in fallback order.
const (
	TierMiss Tier = iota
	TierExact
	TierFuzzy
	TierZeroShot
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierFuzzy:
		return "fuzzy"
	case TierZeroShot:
		return "zero-shot"
	default:
		return "miss"
	}
}

// Confidence is the weight a tier contributes to the quality score.
func (t Tier) Confidence() float64 {
	switch t {
	case TierExact:
		return 1.0
	case TierFuzzy:
		return 0.5
	case TierZeroShot:
		return 0.3
	default:
		return 0
	}
}

// ResolvedItem is the outcome of resolving a key. Misses carry no vector.
// MatchedKey is the catalog key that supplied the vector; for zero-shot
// results it is the artist that anchored the inference, if any.
type ResolvedItem struct {
	Key        ItemKey
	MatchedKey ItemKey
	Vector     Vector
	Tier       Tier
	Similarity float64
}

// Resolved reports whether the item carries a vector.
func (r ResolvedItem) Resolved() bool { return r.Tier != TierMiss && len(r.Vector) > 0 }

// Coverage counts resolution outcomes for one aggregation.
type Coverage struct {
	Total    int
	Exact    int
	Fuzzy    int
	ZeroShot int
	Miss     int
}

// Add records one resolution outcome.
func (c *Coverage) Add(t Tier) {
	c.Total++
	switch t {
	case TierExact:
		c.Exact++
	case TierFuzzy:
		c.Fuzzy++
	case TierZeroShot:
		c.ZeroShot++
	default:
		c.Miss++
	}
}

// Resolved returns the number of items that produced a vector.
func (c Coverage) Resolved() int { return c.Exact + c.Fuzzy + c.ZeroShot }

// Ratio is resolved items over total items considered. Zero when nothing was considered.
func (c Coverage) Ratio() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Resolved()) / float64(c.Total)
}

// Confidence is the tier-weighted share of resolved items.
func (c Coverage) Confidence() float64 {
	if c.Total == 0 {
		return 0
	}
	score := float64(c.Exact)*TierExact.Confidence() +
		float64(c.Fuzzy)*TierFuzzy.Confidence() +
		float64(c.ZeroShot)*TierZeroShot.Confidence()
	return score / float64(c.Total)
}

// Grade maps Confidence to a letter grade.
func (c Coverage) Grade() string {
	switch conf := c.Confidence(); {
	case conf > 0.8:
		return "A"
	case conf > 0.6:
		return "B"
	case conf > 0.4:
		return "C"
	case conf > 0.2:
		return "D"
	default:
		return "F"
	}
}

// UserEmbedding is a unit-length taste vector for one user.
// A degenerate embedding has a zero vector and must not be persisted or queried.
type UserEmbedding struct {
	Username    string
	Vector      Vector
	GeneratedAt time.Time
	Coverage    Coverage
}

// CoverageRatio is resolved items over total items considered.
func (u UserEmbedding) CoverageRatio() float64 { return u.Coverage.Ratio() }

// Degenerate reports whether the embedding carries no usable direction.
func (u UserEmbedding) Degenerate() bool {
	return u.Coverage.Resolved() == 0 || u.Vector.IsZero()
}
