// Package catalog holds the static table of precomputed item embeddings
// and the name indexes used for approximate lookups.
package catalog

import (
	"fmt"

	"github.com/okian/tastebud/internal/domain/model"
)

// Match is a catalog item returned by an approximate lookup.
type Match struct {
	Item       model.ItemEmbedding
	Similarity float64
}

// Catalog is immutable after New returns and safe for concurrent reads.
// Vectors handed out are shared and must not be modified by callers.
type Catalog struct {
	dim     int
	items   map[model.ItemKey]model.ItemEmbedding
	tracks  *nameIndex
	artists *nameIndex
}

// New builds a catalog from items. Keys are normalized; when a key appears
// more than once the more popular entry wins.
func New(items []model.ItemEmbedding, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		dim:   model.Dimension,
		items: make(map[model.ItemKey]model.ItemEmbedding, len(items)),
	}
	for _, opt := range opts {
		opt(c)
	}

	for i, it := range items {
		key := model.NewItemKey(it.Key.Artist, it.Key.Track)
		if key.Artist == "" {
			return nil, fmt.Errorf("%w: item %d has no artist", ErrInvalidItem, i)
		}
		if len(it.Vector) != c.dim {
			return nil, fmt.Errorf("%w: %s has %d components, want %d", ErrDimensionMismatch, key, len(it.Vector), c.dim)
		}
		if prev, ok := c.items[key]; ok && prev.Popularity >= it.Popularity {
			continue
		}
		c.items[key] = model.ItemEmbedding{Key: key, Vector: it.Vector.Clone(), Popularity: it.Popularity}
	}

	var tracks, artists []model.ItemEmbedding
	for _, it := range c.items {
		if it.Key.IsArtist() {
			artists = append(artists, it)
		} else {
			tracks = append(tracks, it)
		}
	}
	c.tracks = newNameIndex(tracks)
	c.artists = newNameIndex(artists)
	return c, nil
}

// Dimension returns the vector length of every item.
func (c *Catalog) Dimension() int { return c.dim }

// Len returns the number of distinct items.
func (c *Catalog) Len() int { return len(c.items) }

// Counts returns the number of track and artist entries.
func (c *Catalog) Counts() (tracks, artists int) {
	return c.tracks.len(), c.artists.len()
}

// Lookup is the exact, normalized-key lookup.
func (c *Catalog) Lookup(key model.ItemKey) (model.ItemEmbedding, bool) {
	it, ok := c.items[key]
	return it, ok
}

// Artist looks up the artist-only embedding for name.
func (c *Catalog) Artist(name string) (model.ItemEmbedding, bool) {
	return c.Lookup(model.ArtistKey(name))
}

// Fuzzy returns the closest entry of the same kind as key whose name
// similarity is at least threshold. Ties go to the more popular entry.
func (c *Catalog) Fuzzy(key model.ItemKey, threshold float64) (Match, bool) {
	ix := c.tracks
	if key.IsArtist() {
		ix = c.artists
	}
	found := ix.search(key.Name(), threshold, 1)
	if len(found) == 0 {
		return Match{}, false
	}
	return found[0], true
}

// SimilarArtists returns up to k artists whose name similarity to name is
// at least floor, best first.
func (c *Catalog) SimilarArtists(name string, k int, floor float64) []Match {
	if k <= 0 {
		return nil
	}
	return c.artists.search(model.Normalize(name), floor, k)
}
