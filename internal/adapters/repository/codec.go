package repository

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/okian/tastebud/internal/domain/model"
)

// document is the stored form of a profile.
type document struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Vector     []float64 `json:"vector"`
	Synthetic  bool      `json:"synthetic"`
	Segment    string    `json:"segment,omitempty"`
	Country    string    `json:"country,omitempty"`
	TopArtists []string  `json:"top_artists,omitempty"`
	TopTracks  []string  `json:"top_tracks,omitempty"`
	TopGenres  []string  `json:"top_genres,omitempty"`
	Coverage   float64   `json:"coverage"`
	Grade      string    `json:"grade,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func encodeProfile(p model.Profile) ([]byte, error) {
	return json.Marshal(document{
		ID:         p.ID,
		Username:   p.Username,
		Vector:     p.Vector,
		Synthetic:  p.Synthetic,
		Segment:    string(p.Segment),
		Country:    p.Country,
		TopArtists: p.TopArtists,
		TopTracks:  p.TopTracks,
		TopGenres:  p.TopGenres,
		Coverage:   p.Coverage,
		Grade:      p.Grade,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
	})
}

func decodeProfile(data []byte, dim int) (model.Profile, error) {
	var d document
	if err := json.Unmarshal(data, &d); err != nil {
		return model.Profile{}, fmt.Errorf("%w: %v", ErrCorruptProfile, err)
	}
	if d.ID == "" || d.Username == "" {
		return model.Profile{}, fmt.Errorf("%w: missing id or username", ErrCorruptProfile)
	}
	if len(d.Vector) != dim {
		return model.Profile{}, fmt.Errorf("%w: vector has %d dimensions, want %d", ErrCorruptProfile, len(d.Vector), dim)
	}
	return model.Profile{
		ID:         d.ID,
		Username:   d.Username,
		Vector:     d.Vector,
		Synthetic:  d.Synthetic,
		Segment:    model.Segment(d.Segment),
		Country:    d.Country,
		TopArtists: d.TopArtists,
		TopTracks:  d.TopTracks,
		TopGenres:  d.TopGenres,
		Coverage:   d.Coverage,
		Grade:      d.Grade,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}, nil
}
