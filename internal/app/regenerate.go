package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/tastebud/internal/adapters/mq/queue"
	"github.com/okian/tastebud/internal/adapters/repository"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
)

// Reasons a username is not queued for regeneration.
const (
	RejectInvalid  = "invalid_username"
	RejectInFlight = "in_flight"
	RejectBusy     = "too_many_in_flight"
	RejectQueue    = "queue_full"
)

// RegenerationReport lists which usernames were queued.
type RegenerationReport struct {
	Queued   []string          `json:"queued"`
	Rejected map[string]string `json:"rejected"`
}

// EnqueueRegeneration queues embedding regeneration for usernames, or for
// every stored real user when usernames is empty. A username already
// queued or running is rejected.
func (s *Service) EnqueueRegeneration(ctx context.Context, usernames []string) (RegenerationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return RegenerationReport{}, ErrNotStarted
	}

	if len(usernames) == 0 {
		all, err := s.store.Usernames(ctx, repository.KindReal)
		if err != nil {
			return RegenerationReport{}, err
		}
		usernames = all
	}

	report := RegenerationReport{Queued: []string{}, Rejected: map[string]string{}}
	for _, raw := range usernames {
		name := repository.NormalizeUsername(raw)
		if name == "" {
			report.Rejected[raw] = RejectInvalid
			continue
		}
		if reason := s.enqueue(ctx, name); reason != "" {
			report.Rejected[name] = reason
			continue
		}
		report.Queued = append(report.Queued, name)
	}
	s.logger.Info(ctx, "regeneration requested",
		logger.Int("queued", len(report.Queued)),
		logger.Int("rejected", len(report.Rejected)))
	return report, nil
}

func (s *Service) enqueue(ctx context.Context, name string) string {
	ok, err := s.tracker.Acquire(ctx, name)
	switch {
	case err != nil:
		return RejectBusy
	case !ok:
		return RejectInFlight
	}
	job := queue.Job{ID: uuid.NewString(), Username: name, EnqueuedAt: time.Now()}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		s.tracker.Release(ctx, name)
		s.logger.Warn(ctx, "regeneration not queued", logger.String("username", name), logger.Error(err))
		return RejectQueue
	}
	return ""
}

// Process runs one queued regeneration. It implements worker.Processor.
func (s *Service) Process(ctx context.Context, job queue.Job) error {
	defer s.tracker.Release(context.Background(), job.Username)

	gen, err := s.GenerateEmbedding(ctx, job.Username)
	if err != nil {
		return fmt.Errorf("regenerate %s: %w", job.Username, err)
	}
	if !gen.Persisted {
		s.logger.Info(ctx, "regeneration produced no usable embedding",
			logger.String("username", job.Username),
			logger.String("job", job.ID),
			logger.String("reason", model.ErrZeroCoverage.Error()))
	}
	return nil
}
