package catalog

import (
	"sort"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/vecmath"
)

// nameIndex is an inverted trigram index over item names. Postings only
// select candidates; every candidate is rescored with vecmath.Dice.
type nameIndex struct {
	entries  []model.ItemEmbedding
	postings map[string][]int32
}

func newNameIndex(items []model.ItemEmbedding) *nameIndex {
	// sorted so ids are stable across loads
	sort.Slice(items, func(i, j int) bool { return items[i].Key.String() < items[j].Key.String() })

	ix := &nameIndex{
		entries:  items,
		postings: make(map[string][]int32),
	}
	for i, it := range items {
		for g := range vecmath.Trigrams(it.Key.Name()) {
			ix.postings[g] = append(ix.postings[g], int32(i))
		}
	}
	return ix
}

func (ix *nameIndex) len() int { return len(ix.entries) }

// search ranks entries by Dice similarity, then popularity, then key.
func (ix *nameIndex) search(name string, floor float64, k int) []Match {
	if name == "" || len(ix.entries) == 0 {
		return nil
	}
	q := vecmath.Trigrams(name)
	candidates := make(map[int32]struct{})
	for g := range q {
		for _, id := range ix.postings[g] {
			candidates[id] = struct{}{}
		}
	}

	out := make([]Match, 0, len(candidates))
	for id := range candidates {
		sim := vecmath.Dice(name, ix.entries[id].Key.Name())
		if sim < floor {
			continue
		}
		out = append(out, Match{Item: ix.entries[id], Similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return ranksBefore(out[i], out[j]) })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// ranksBefore orders by similarity, then popularity, then key.
func ranksBefore(a, b Match) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	if a.Item.Popularity != b.Item.Popularity {
		return a.Item.Popularity > b.Item.Popularity
	}
	return a.Item.Key.String() < b.Item.Key.String()
}
