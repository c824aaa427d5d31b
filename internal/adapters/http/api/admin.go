package api

import (
	"net/http"

	"github.com/okian/tastebud/internal/adapters/repository"
	service "github.com/okian/tastebud/internal/app"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/seeding"
	"github.com/okian/tastebud/pkg/logger"
)

// AdminHandler serves ghost maintenance and regeneration routes.
type AdminHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(deps Dependencies, l logger.Logger) *AdminHandler {
	return &AdminHandler{deps: deps, logger: l}
}

type seedRequest struct {
	Count int                `json:"count"`
	Force bool               `json:"force"`
	Mix   map[string]float64 `json:"mix"`
}

// HandleSeed handles POST /v1/admin/seed.
func (h *AdminHandler) HandleSeed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	var mix seeding.Mix
	if len(req.Mix) > 0 {
		mix = make(seeding.Mix, len(req.Mix))
		for seg, share := range req.Mix {
			mix[model.Segment(seg)] = share
		}
	}
	h.logger.Info(r.Context(), "seed requested",
		logger.Int("count", req.Count),
		logger.Bool("force", req.Force))

	rep, err := h.deps.SeedColdStart(r.Context(), service.SeedRequest{Count: req.Count, Mix: mix, Force: req.Force})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

type ghostCountsResponse struct {
	repository.Counts
	SyntheticPercent float64 `json:"synthetic_percent"`
}

// HandleGhostCounts handles GET /v1/admin/ghosts.
func (h *AdminHandler) HandleGhostCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.deps.GhostCounts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ghostCountsResponse{Counts: counts, SyntheticPercent: counts.SyntheticPercent()})
}

// HandleDeleteGhosts handles DELETE /v1/admin/ghosts.
func (h *AdminHandler) HandleDeleteGhosts(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.DeleteGhosts(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

// HandleCleanDuplicates handles POST /v1/admin/clean/duplicates.
func (h *AdminHandler) HandleCleanDuplicates(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.DeleteDuplicates(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

type regenerateRequest struct {
	Usernames []string `json:"usernames"`
}

// HandleRegenerate handles POST /v1/admin/regenerate. An empty list
// regenerates every real user.
func (h *AdminHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateRequest
	if err := decodeBody(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	rep, err := h.deps.EnqueueRegeneration(r.Context(), req.Usernames)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rep)
}
