package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/tastebud/internal/app"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
)

// UsersHandler serves the per-user embedding and match routes.
type UsersHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewUsersHandler creates a users handler.
func NewUsersHandler(deps Dependencies, l logger.Logger) *UsersHandler {
	return &UsersHandler{deps: deps, logger: l}
}

type resolutionJSON struct {
	Total    int `json:"total"`
	Exact    int `json:"exact"`
	Fuzzy    int `json:"fuzzy"`
	ZeroShot int `json:"zero_shot"`
	Miss     int `json:"miss"`
}

type contributionJSON struct {
	Item    string   `json:"item"`
	Tier    string   `json:"tier"`
	Weight  float64  `json:"weight"`
	Windows []string `json:"windows"`
	Boosted bool     `json:"boosted"`
}

type embeddingResponse struct {
	Username         string             `json:"username"`
	ProfileID        string             `json:"profile_id,omitempty"`
	Persisted        bool               `json:"persisted"`
	Degenerate       bool               `json:"degenerate"`
	Coverage         float64            `json:"coverage"`
	Grade            string             `json:"grade"`
	Resolution       resolutionJSON     `json:"resolution"`
	MissingWindows   []string           `json:"missing_windows"`
	TopContributions []contributionJSON `json:"top_contributions"`
	GeneratedAt      time.Time          `json:"generated_at"`
	DurationMs       int64              `json:"duration_ms"`
}

func newEmbeddingResponse(g service.Generation) embeddingResponse {
	cov := g.Embedding.Coverage
	out := embeddingResponse{
		Username:         g.Embedding.Username,
		ProfileID:        g.ProfileID,
		Persisted:        g.Persisted,
		Degenerate:       g.Embedding.Degenerate(),
		Coverage:         g.Embedding.CoverageRatio(),
		Grade:            cov.Grade(),
		Resolution:       resolutionJSON{Total: cov.Total, Exact: cov.Exact, Fuzzy: cov.Fuzzy, ZeroShot: cov.ZeroShot, Miss: cov.Miss},
		MissingWindows:   make([]string, 0, len(g.Missing)),
		TopContributions: make([]contributionJSON, 0, len(g.Contributions)),
		GeneratedAt:      g.Embedding.GeneratedAt,
		DurationMs:       g.Duration.Milliseconds(),
	}
	for _, w := range g.Missing {
		out.MissingWindows = append(out.MissingWindows, string(w))
	}
	for _, c := range g.Contributions {
		windows := make([]string, len(c.Windows))
		for i, w := range c.Windows {
			windows[i] = string(w)
		}
		out.TopContributions = append(out.TopContributions, contributionJSON{
			Item:    c.Key.String(),
			Tier:    c.Tier.String(),
			Weight:  c.Weight,
			Windows: windows,
			Boosted: c.Boosted,
		})
	}
	return out
}

// HandleGenerateEmbedding handles POST /v1/users/{username}/embedding.
func (h *UsersHandler) HandleGenerateEmbedding(w http.ResponseWriter, r *http.Request) {
	gen, err := h.deps.GenerateEmbedding(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newEmbeddingResponse(gen))
}

// HandleEmbeddingStatus handles GET /v1/users/{username}/embedding.
func (h *UsersHandler) HandleEmbeddingStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.EmbeddingStatus(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type candidateJSON struct {
	ID                 string   `json:"id"`
	Username           string   `json:"username"`
	CompatibilityScore int      `json:"compatibility_score"`
	Similarity         float64  `json:"similarity"`
	IsSynthetic        bool     `json:"is_synthetic"`
	Segment            string   `json:"segment,omitempty"`
	Country            string   `json:"country,omitempty"`
	SharedArtists      []string `json:"shared_artists"`
	SharedArtistCount  int      `json:"shared_artist_count"`
	SharedGenres       []string `json:"shared_genres"`
	SharedGenreCount   int      `json:"shared_genre_count"`
	SharedTracks       []string `json:"shared_tracks"`
	SharedTrackCount   int      `json:"shared_track_count"`
	DiscoverArtists    []string `json:"discover_artists"`
}

type matchesResponse struct {
	Username   string          `json:"username"`
	Degenerate bool            `json:"degenerate"`
	Message    string          `json:"message,omitempty"`
	Count      int             `json:"count"`
	Matches    []candidateJSON `json:"matches"`
}

func newCandidateJSON(c model.MatchCandidate) candidateJSON {
	return candidateJSON{
		ID:                 c.CandidateID,
		Username:           c.Username,
		CompatibilityScore: c.CompatibilityScore,
		Similarity:         c.RawSimilarity,
		IsSynthetic:        c.IsSynthetic,
		Segment:            string(c.Segment),
		Country:            c.Country,
		SharedArtists:      c.SharedArtists,
		SharedArtistCount:  c.SharedArtistCount,
		SharedGenres:       c.SharedGenres,
		SharedGenreCount:   c.SharedGenreCount,
		SharedTracks:       c.SharedTracks,
		SharedTrackCount:   c.SharedTrackCount,
		DiscoverArtists:    c.DiscoverArtists,
	}
}

// HandleGetMatches handles GET /v1/users/{username}/matches.
func (h *UsersHandler) HandleGetMatches(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", service.DefaultMatchLimit, 1, service.MaxMatchLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	m, err := h.deps.GetMatches(r.Context(), chi.URLParam(r, "username"), limit, r.URL.Query().Get("filter"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := matchesResponse{
		Username:   m.Username,
		Degenerate: m.Degenerate,
		Count:      len(m.Candidates),
		Matches:    make([]candidateJSON, 0, len(m.Candidates)),
	}
	if m.Degenerate {
		out.Message = "no matches yet: none of the listening history could be resolved"
	}
	for _, c := range m.Candidates {
		out.Matches = append(out.Matches, newCandidateJSON(c))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMatchStats handles GET /v1/users/{username}/matches/stats.
func (h *UsersHandler) HandleMatchStats(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", service.DefaultMatchLimit, 1, service.MaxMatchLimit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	st, err := h.deps.MatchStats(r.Context(), chi.URLParam(r, "username"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
