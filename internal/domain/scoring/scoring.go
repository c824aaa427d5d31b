// Package scoring converts raw similarities into compatibility scores and
// explains each match through the artists, genres and tracks it shares
// with the requester.
package scoring

import (
	"math"
	"sort"

	"github.com/okian/tastebud/internal/domain/model"
)

// Default scoring configuration constants.
const (
	DefaultDisplayLimit = 10
	maxScoreValue       = 100
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithDisplayLimit caps how many shared items are listed per candidate.
// Full counts are always kept.
func WithDisplayLimit(limit int) Option {
	return func(s *Scorer) {
		if limit > 0 {
			s.displayLimit = limit
		}
	}
}

// Scorer shapes index hits into match candidates.
type Scorer struct {
	displayLimit int
}

// New creates a Scorer.
func New(opts ...Option) *Scorer {
	s := &Scorer{displayLimit: DefaultDisplayLimit}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compatibility maps a cosine similarity to an integer in [0, 100].
func Compatibility(similarity float64) int {
	if math.IsNaN(similarity) {
		return 0
	}
	score := math.Round(similarity * maxScoreValue)
	return int(math.Max(0, math.Min(maxScoreValue, score)))
}

// Score builds the candidate for one hit against the requester's profile.
func (s *Scorer) Score(requester model.Profile, hit model.Hit) model.MatchCandidate {
	p := hit.Profile
	artists := Intersect(requester.TopArtists, p.TopArtists)
	genres := Intersect(requester.TopGenres, p.TopGenres)
	tracks := Intersect(requester.TopTracks, p.TopTracks)

	return model.MatchCandidate{
		CandidateID:        p.ID,
		Username:           p.Username,
		RawSimilarity:      hit.Similarity,
		IsSynthetic:        p.Synthetic,
		Segment:            p.Segment,
		Country:            p.Country,
		SharedArtists:      capped(artists, s.displayLimit),
		SharedArtistCount:  len(artists),
		SharedGenres:       capped(genres, s.displayLimit),
		SharedGenreCount:   len(genres),
		SharedTracks:       capped(tracks, s.displayLimit),
		SharedTrackCount:   len(tracks),
		DiscoverArtists:    capped(Difference(p.TopArtists, requester.TopArtists), s.displayLimit),
		CompatibilityScore: Compatibility(hit.Similarity),
	}
}

// Rank orders candidates by score, then raw similarity, then id.
func Rank(cands []model.MatchCandidate) {
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.CompatibilityScore != b.CompatibilityScore {
			return a.CompatibilityScore > b.CompatibilityScore
		}
		if a.RawSimilarity != b.RawSimilarity {
			return a.RawSimilarity > b.RawSimilarity
		}
		return a.CandidateID < b.CandidateID
	})
}

// Intersect returns the case-insensitive, deduplicated intersection of a
// and b in a's order and spelling.
func Intersect(a, b []string) []string {
	in := fold(b)
	var out []string
	seen := make(map[string]bool)
	for _, v := range a {
		k := model.Normalize(v)
		if k == "" || seen[k] || !in[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// Difference returns the items of a missing from b, deduplicated and
// compared case-insensitively, in a's order.
func Difference(a, b []string) []string {
	ex := fold(b)
	var out []string
	seen := make(map[string]bool)
	for _, v := range a {
		k := model.Normalize(v)
		if k == "" || seen[k] || ex[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

func fold(vals []string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[model.Normalize(v)] = true
	}
	return m
}

func capped(vals []string, limit int) []string {
	if len(vals) > limit {
		vals = vals[:limit]
	}
	if vals == nil {
		return []string{}
	}
	return vals
}

// SummaryStats summarises a ranked match list.
type SummaryStats struct {
	Count            int      `json:"count"`
	AverageScore     float64  `json:"average_score"`
	MaxScore         int      `json:"max_score"`
	RealMatches      int      `json:"real_matches"`
	SyntheticMatches int      `json:"synthetic_matches"`
	TopSharedArtists []string `json:"top_shared_artists"`
}

// Summarize computes aggregate statistics over cands.
func Summarize(cands []model.MatchCandidate, topArtists int) SummaryStats {
	st := SummaryStats{Count: len(cands)}
	freq := make(map[string]int)
	display := make(map[string]string)
	var total int
	for _, c := range cands {
		total += c.CompatibilityScore
		st.MaxScore = max(st.MaxScore, c.CompatibilityScore)
		if c.IsSynthetic {
			st.SyntheticMatches++
		} else {
			st.RealMatches++
		}
		for _, a := range c.SharedArtists {
			k := model.Normalize(a)
			freq[k]++
			if _, ok := display[k]; !ok {
				display[k] = a
			}
		}
	}
	if len(cands) > 0 {
		st.AverageScore = float64(total) / float64(len(cands))
	}
	keys := make([]string, 0, len(freq))
	for k := range freq {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for i := 0; i < len(keys) && i < topArtists; i++ {
		st.TopSharedArtists = append(st.TopSharedArtists, display[keys[i]])
	}
	return st
}
