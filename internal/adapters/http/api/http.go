// Package api exposes the matching engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/okian/tastebud/internal/adapters/http/swagger"
	"github.com/okian/tastebud/internal/adapters/repository"
	service "github.com/okian/tastebud/internal/app"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/scoring"
	"github.com/okian/tastebud/pkg/logger"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	GenerateEmbedding(ctx context.Context, username string) (service.Generation, error)
	EmbeddingStatus(ctx context.Context, username string) (service.Status, error)
	GetMatches(ctx context.Context, username string, limit int, filter string) (service.Matches, error)
	MatchStats(ctx context.Context, username string, limit int) (scoring.SummaryStats, error)

	SeedColdStart(ctx context.Context, req service.SeedRequest) (service.SeedReport, error)
	DeleteGhosts(ctx context.Context) (int, error)
	DeleteDuplicates(ctx context.Context) (int, error)
	GhostCounts(ctx context.Context) (repository.Counts, error)
	EnqueueRegeneration(ctx context.Context, usernames []string) (service.RegenerationReport, error)
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithAdminKey protects the admin routes with key. An empty key leaves
// them open.
func WithAdminKey(key string) Option {
	return func(s *Server) {
		s.adminKey = key
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the matching API.
type Server struct {
	healthHandler *HealthHandler
	statsHandler  *StatsHandler
	usersHandler  *UsersHandler
	adminHandler  *AdminHandler

	adminKey string
	logger   logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("api")
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(deps)
	s.usersHandler = NewUsersHandler(deps, s.logger)
	s.adminHandler = NewAdminHandler(deps, s.logger)
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)
	swagger.Register(r)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/users/{username}", func(r chi.Router) {
			r.Post("/embedding", s.usersHandler.HandleGenerateEmbedding)
			r.Get("/embedding", s.usersHandler.HandleEmbeddingStatus)
			r.Get("/matches", s.usersHandler.HandleGetMatches)
			r.Get("/matches/stats", s.usersHandler.HandleMatchStats)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminKeyMiddleware(s.adminKey))
			r.Post("/seed", s.adminHandler.HandleSeed)
			r.Get("/ghosts", s.adminHandler.HandleGhostCounts)
			r.Delete("/ghosts", s.adminHandler.HandleDeleteGhosts)
			r.Post("/clean/duplicates", s.adminHandler.HandleCleanDuplicates)
			r.Post("/regenerate", s.adminHandler.HandleRegenerate)
		})
	})
	return r
}

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg, Retryable: status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout})
}

// writeServiceError maps the error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidArgument), errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrDependencyTimeout):
		writeError(w, http.StatusGatewayTimeout, "dependency_timeout", err)
	case errors.Is(err, model.ErrDependencyUnavailable), errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "dependency_unavailable", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// intQuery parses an optional integer query parameter.
func intQuery(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be an integer between %d and %d", ErrBadRequest, name, lo, hi)
	}
	return n, nil
}
