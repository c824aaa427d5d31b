package repository

import (
	"sort"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/vecmath"
)

// topK keeps the k best hits, similarity desc then id asc.
type topK struct {
	k    int
	hits []model.Hit
}

func newTopK(k int) *topK {
	return &topK{k: k, hits: make([]model.Hit, 0, k+1)}
}

func (t *topK) offer(query model.Vector, p model.Profile) {
	h := model.Hit{Profile: p, Similarity: vecmath.Cosine(query, p.Vector)}
	if len(t.hits) == t.k && !before(h, t.hits[len(t.hits)-1]) {
		return
	}
	i := sort.Search(len(t.hits), func(i int) bool { return before(h, t.hits[i]) })
	t.hits = append(t.hits, model.Hit{})
	copy(t.hits[i+1:], t.hits[i:])
	t.hits[i] = h
	if len(t.hits) > t.k {
		t.hits = t.hits[:t.k]
	}
}

func (t *topK) result() []model.Hit {
	return t.hits
}

func before(a, b model.Hit) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity > b.Similarity
	}
	return a.Profile.ID < b.Profile.ID
}
