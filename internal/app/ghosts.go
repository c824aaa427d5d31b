package service

import (
	"context"
	"fmt"

	"github.com/okian/tastebud/internal/adapters/repository"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/seeding"
	"github.com/okian/tastebud/pkg/logger"
)

// SeedRequest parameterises a cold-start run. A zero Count uses the
// configured default and a nil Mix the default segment mix.
type SeedRequest struct {
	Count int
	Mix   seeding.Mix
	// Force deletes every existing ghost before seeding.
	Force bool
}

// SeedReport is the outcome of a cold-start run.
type SeedReport struct {
	seeding.Report
	Deleted int `json:"deleted"`
}

// SeedColdStart adds synthetic profiles to the vector index.
func (s *Service) SeedColdStart(ctx context.Context, req SeedRequest) (SeedReport, error) {
	count := req.Count
	if count == 0 {
		count = s.seedCount
	}
	if count < 0 {
		return SeedReport{}, fmt.Errorf("%w: %w: %d", model.ErrInvalidArgument, seeding.ErrInvalidCount, count)
	}
	if req.Mix != nil {
		if err := req.Mix.Validate(); err != nil {
			return SeedReport{}, fmt.Errorf("%w: %w", model.ErrInvalidArgument, err)
		}
	}

	var out SeedReport
	if req.Force {
		n, err := s.store.DeleteSynthetic(ctx)
		if err != nil {
			return SeedReport{}, err
		}
		out.Deleted = n
		s.logger.Info(ctx, "deleted ghost profiles before seeding", logger.Int("deleted", n))
	}

	report, err := s.seeder.Seed(ctx, count, req.Mix)
	out.Report = report
	return out, err
}

// DeleteGhosts removes every synthetic profile and returns how many went.
func (s *Service) DeleteGhosts(ctx context.Context) (int, error) {
	n, err := s.store.DeleteSynthetic(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "ghost profiles deleted", logger.Int("deleted", n))
	return n, nil
}

// DeleteDuplicates removes stray profiles that share a username with the
// one the username resolves to and returns how many went.
func (s *Service) DeleteDuplicates(ctx context.Context) (int, error) {
	n, err := s.store.DeleteDuplicates(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "duplicate profiles cleaned", logger.Int("deleted", n))
	return n, nil
}

// GhostCounts reports profile counts by kind.
func (s *Service) GhostCounts(ctx context.Context) (repository.Counts, error) {
	return s.store.Counts(ctx)
}
