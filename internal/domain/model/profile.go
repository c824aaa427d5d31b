package model

import "time"

// Segment tags a synthetic profile with the taste population it was drawn from.
type Segment string

// Cold-start segments.
const (
	SegmentMainstream    Segment = "mainstream"
	SegmentNiche         Segment = "niche"
	SegmentVeteran       Segment = "veteran"
	SegmentInternational Segment = "international"
)

// Segments lists the cold-start segments in allocation order.
func Segments() []Segment {
	return []Segment{SegmentMainstream, SegmentNiche, SegmentVeteran, SegmentInternational}
}

// Profile is what the vector index stores for a user or ghost.
type Profile struct {
	ID         string
	Username   string
	Vector     Vector
	Synthetic  bool
	Segment    Segment
	Country    string
	TopArtists []string
	TopTracks  []string
	TopGenres  []string
	Coverage   float64
	Grade      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GhostProfile is a synthetic profile produced by cold-start seeding.
type GhostProfile struct {
	Embedding UserEmbedding
	Segment   Segment
	Country   string
	Artists   []string
	Tracks    []string
	Genres    []string
}

// Hit is a single nearest-neighbour result from the vector index.
type Hit struct {
	Profile    Profile
	Similarity float64
}

// MatchCandidate is one ranked match with its overlap explanation.
type MatchCandidate struct {
	CandidateID        string
	Username           string
	RawSimilarity      float64
	IsSynthetic        bool
	Segment            Segment
	Country            string
	SharedArtists      []string
	SharedArtistCount  int
	SharedGenres       []string
	SharedGenreCount   int
	SharedTracks       []string
	SharedTrackCount   int
	DiscoverArtists    []string
	CompatibilityScore int
}

// Profile converts the ghost into the form the vector index stores.
func (g GhostProfile) Profile() Profile {
	return Profile{
		Username:   g.Embedding.Username,
		Vector:     g.Embedding.Vector,
		Synthetic:  true,
		Segment:    g.Segment,
		Country:    g.Country,
		TopArtists: g.Artists,
		TopTracks:  g.Tracks,
		TopGenres:  g.Genres,
		Coverage:   g.Embedding.CoverageRatio(),
		Grade:      g.Embedding.Coverage.Grade(),
		CreatedAt:  g.Embedding.GeneratedAt,
		UpdatedAt:  g.Embedding.GeneratedAt,
	}
}
