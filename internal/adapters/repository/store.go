// Package repository stores taste profiles and answers nearest-neighbour
// queries over their embeddings.
package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/okian/tastebud/internal/domain/model"
)

// Supported repository drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Kind selects real users, synthetic ghosts or both.
type Kind int

// Profile kinds.
const (
	KindAll Kind = iota
	KindReal
	KindSynthetic
)

// String returns the metric label for k.
func (k Kind) String() string {
	switch k {
	case KindReal:
		return "real"
	case KindSynthetic:
		return "synthetic"
	default:
		return "all"
	}
}

func (k Kind) matches(p model.Profile) bool {
	switch k {
	case KindReal:
		return !p.Synthetic
	case KindSynthetic:
		return p.Synthetic
	default:
		return true
	}
}

// Counts reports how many profiles of each kind are stored.
type Counts struct {
	Total     int `json:"total"`
	Real      int `json:"real"`
	Synthetic int `json:"synthetic"`
}

// SyntheticPercent returns the share of ghosts in the index, 0..100.
func (c Counts) SyntheticPercent() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Synthetic) / float64(c.Total) * 100
}

// Store is the vector index the matching core populates and queries.
type Store interface {
	// Upsert stores p. A username already present keeps its id and creation
	// time; new usernames get a fresh id. Returns the stored profile.
	Upsert(ctx context.Context, p model.Profile) (model.Profile, error)

	// GetByUsername returns the profile for username.
	// Returns model.ErrNotFound if it is unknown.
	GetByUsername(ctx context.Context, username string) (model.Profile, error)

	// Query returns up to k profiles ordered by cosine similarity to vector,
	// highest first, ties broken by id. Profiles in excludeIDs are skipped.
	Query(ctx context.Context, vector model.Vector, k int, excludeIDs []string) ([]model.Hit, error)

	// Counts returns the number of stored profiles per kind.
	Counts(ctx context.Context) (Counts, error)

	// Usernames lists the usernames of the given kind in ascending order.
	Usernames(ctx context.Context, kind Kind) ([]string, error)

	// DeleteSynthetic removes every ghost profile and returns how many went.
	DeleteSynthetic(ctx context.Context) (int, error)

	// DeleteDuplicates removes profiles that share a normalized username
	// with another profile and returns how many went. The profile the
	// username maps to survives; an unmapped username keeps its most
	// recently updated profile.
	DeleteDuplicates(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// NormalizeUsername is the form usernames are indexed under.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validate(p model.Profile, dim int) error {
	if NormalizeUsername(p.Username) == "" {
		return ErrInvalidProfile
	}
	if len(p.Vector) != dim {
		return ErrDimensionMismatch
	}
	if p.Vector.IsZero() {
		return ErrInvalidProfile
	}
	return nil
}

func excludeSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// duplicates splits profiles grouped by normalized username into the ones
// to drop and the usernames whose mapping must move to a survivor.
// mapped returns the id a username currently resolves to.
func duplicates(groups map[string][]model.Profile, mapped func(string) (string, bool)) (drop []model.Profile, repoint map[string]string) {
	repoint = make(map[string]string)
	for name, ps := range groups {
		keep, ok := mapped(name)
		if !ok || !hasID(ps, keep) {
			sort.Slice(ps, func(i, j int) bool {
				if !ps[i].UpdatedAt.Equal(ps[j].UpdatedAt) {
					return ps[i].UpdatedAt.After(ps[j].UpdatedAt)
				}
				return ps[i].ID < ps[j].ID
			})
			keep = ps[0].ID
			repoint[name] = keep
		}
		for _, p := range ps {
			if p.ID != keep {
				drop = append(drop, p)
			}
		}
	}
	sort.Slice(drop, func(i, j int) bool { return drop[i].ID < drop[j].ID })
	return drop, repoint
}

func hasID(ps []model.Profile, id string) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}
