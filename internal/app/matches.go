package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tastebud/internal/adapters/repository"
	"github.com/okian/tastebud/internal/domain/matching"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/scoring"
	"github.com/okian/tastebud/pkg/logger"
)

// Matches is a ranked match list for one user.
type Matches struct {
	Username   string
	ProfileID  string
	Candidates []model.MatchCandidate
	// Degenerate is set when the user's embedding carries no direction;
	// callers should present "no matches yet" rather than an error.
	Degenerate bool
}

// GetMatches ranks the stored profiles closest to username's embedding.
// filter is an optional CEL expression over candidate fields. Index
// failures surface as errors; a partial list is never returned. A user
// whose latest embedding was degenerate gets an empty, flagged list.
func (s *Service) GetMatches(ctx context.Context, username string, limit int, filter string) (Matches, error) {
	if limit < 1 || limit > MaxMatchLimit {
		return Matches{}, fmt.Errorf("%w: limit must be between 1 and %d, got %d", model.ErrInvalidArgument, MaxMatchLimit, limit)
	}
	f, err := matching.CompileFilter(filter)
	if err != nil {
		return Matches{}, fmt.Errorf("%w: %w", model.ErrInvalidArgument, err)
	}
	// a stored vector from an earlier run is stale once the latest run
	// came back degenerate
	if name := repository.NormalizeUsername(username); s.stages.degenerate(name) {
		return Matches{Username: name, Candidates: []model.MatchCandidate{}, Degenerate: true}, nil
	}
	requester, err := s.requester(ctx, username)
	if err != nil {
		return Matches{}, err
	}

	out := Matches{Username: requester.Username, ProfileID: requester.ID, Candidates: []model.MatchCandidate{}}
	cands, err := s.gateway.FindMatches(ctx, requester, limit, f)
	switch {
	case errors.Is(err, model.ErrZeroCoverage):
		out.Degenerate = true
		return out, nil
	case err != nil:
		return Matches{}, err
	}
	out.Candidates = cands
	s.logger.Debug(ctx, "matches ranked",
		logger.String("username", requester.Username),
		logger.Int("limit", limit),
		logger.Int("count", len(cands)),
		logger.String("filter", f.String()))
	return out, nil
}

// MatchStats summarises username's top limit matches.
func (s *Service) MatchStats(ctx context.Context, username string, limit int) (scoring.SummaryStats, error) {
	m, err := s.GetMatches(ctx, username, limit, "")
	if err != nil {
		return scoring.SummaryStats{}, err
	}
	return scoring.Summarize(m.Candidates, summaryArtists), nil
}

func (s *Service) requester(ctx context.Context, username string) (model.Profile, error) {
	name := repository.NormalizeUsername(username)
	if name == "" {
		return model.Profile{}, fmt.Errorf("%w: username is required", model.ErrInvalidArgument)
	}
	p, err := s.store.GetByUsername(ctx, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.Profile{}, fmt.Errorf("%w: no embedding for %q", model.ErrNotFound, name)
		}
		return model.Profile{}, err
	}
	return p, nil
}
