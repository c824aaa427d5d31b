package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tastebud/internal/adapters/repository"
	"github.com/okian/tastebud/internal/domain/aggregate"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

const topContributions = 10

// Generation is the outcome of one embedding regeneration.
type Generation struct {
	Embedding model.UserEmbedding
	ProfileID string
	// Persisted is false for degenerate embeddings, which are never stored.
	Persisted     bool
	Missing       []model.WindowLabel
	Contributions []aggregate.Contribution
	Duration      time.Duration
}

// Status reports what is known about a user's embedding.
type Status struct {
	Username  string    `json:"username"`
	Exists    bool      `json:"exists"`
	ProfileID string    `json:"profile_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	Coverage  float64   `json:"coverage"`
	Grade     string    `json:"grade,omitempty"`
	Stage     string    `json:"stage"`
	LastError string    `json:"last_error,omitempty"`
	InFlight  bool      `json:"in_flight"`
}

// GenerateEmbedding fetches username's history, aggregates it and stores
// the resulting profile. Fetch failures abort before aggregation; a run
// that outlives the embedding timeout fails with ErrDependencyTimeout.
func (s *Service) GenerateEmbedding(ctx context.Context, username string) (Generation, error) {
	name := repository.NormalizeUsername(username)
	if name == "" {
		return Generation{}, fmt.Errorf("%w: username is required", model.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, s.embeddingTimeout)
	defer cancel()

	start := time.Now()
	run := s.stages.begin(name)
	gen, err := s.generate(ctx, run)
	gen.Duration = time.Since(start)
	if err != nil {
		run.fail(err)
		s.logger.Error(ctx, "embedding generation failed",
			logger.String("username", name),
			logger.String("stage", string(run.failedAt)),
			logger.Duration("duration", gen.Duration),
			logger.Error(err))
		return Generation{}, err
	}
	s.logger.Info(ctx, "embedding generated",
		logger.String("username", name),
		logger.Bool("persisted", gen.Persisted),
		logger.Float64("coverage", gen.Embedding.CoverageRatio()),
		logger.String("grade", gen.Embedding.Coverage.Grade()),
		logger.Duration("duration", gen.Duration))
	return gen, nil
}

func (s *Service) generate(ctx context.Context, run *stageRun) (Generation, error) {
	if err := run.advance(model.StageFetching); err != nil {
		return Generation{}, err
	}
	listening, err := s.provider.Listening(ctx, run.username)
	if err != nil {
		return Generation{}, deadline(ctx, err)
	}
	if len(listening.Groups) == 0 && len(listening.Missing) > 0 {
		return Generation{}, fmt.Errorf("%w: no listening window could be fetched", model.ErrDependencyUnavailable)
	}

	if err := run.advance(model.StageResolving); err != nil {
		return Generation{}, err
	}
	res, err := s.agg.ResolveAll(ctx, listening.Groups)
	if err != nil {
		return Generation{}, deadline(ctx, err)
	}

	if err := run.advance(model.StageAggregating); err != nil {
		return Generation{}, err
	}
	combined := s.agg.Combine(res)

	if err := run.advance(model.StageNormalizing); err != nil {
		return Generation{}, err
	}
	emb := s.agg.Normalize(ctx, run.username, combined)
	gen := Generation{
		Embedding:     emb,
		Missing:       listening.Missing,
		Contributions: aggregate.TopContributions(combined.Contributions, topContributions),
	}
	if err := ctx.Err(); err != nil {
		return Generation{}, deadline(ctx, err)
	}
	if emb.Degenerate() {
		run.degenerate()
		return gen, nil
	}

	stored, err := s.store.Upsert(ctx, model.Profile{
		Username:   run.username,
		Vector:     emb.Vector,
		Country:    listening.Country,
		TopArtists: listening.TopArtists,
		TopTracks:  listening.TopTracks,
		TopGenres:  listening.Genres,
		Coverage:   emb.CoverageRatio(),
		Grade:      emb.Coverage.Grade(),
	})
	if err != nil {
		return Generation{}, deadline(ctx, err)
	}
	if err := run.advance(model.StagePersisted); err != nil {
		return Generation{}, err
	}
	metrics.RecordEmbeddingGenerated()
	gen.ProfileID = stored.ID
	gen.Persisted = true
	return gen, nil
}

// EmbeddingStatus reports whether username has a stored embedding and
// where its latest regeneration stands.
func (s *Service) EmbeddingStatus(ctx context.Context, username string) (Status, error) {
	name := repository.NormalizeUsername(username)
	if name == "" {
		return Status{}, fmt.Errorf("%w: username is required", model.ErrInvalidArgument)
	}
	st := Status{Username: name, Stage: string(model.StageIdle)}
	if stage, lastErr, ok := s.stages.get(name); ok {
		st.Stage = string(stage)
		st.LastError = lastErr
	}
	s.mu.RLock()
	if s.tracker != nil {
		for _, k := range s.tracker.Keys() {
			if k == name {
				st.InFlight = true
				break
			}
		}
	}
	s.mu.RUnlock()

	p, err := s.store.GetByUsername(ctx, name)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return st, nil
	case err != nil:
		return Status{}, err
	}
	st.Exists = true
	st.ProfileID = p.ID
	st.UpdatedAt = p.UpdatedAt
	st.Coverage = p.Coverage
	st.Grade = p.Grade
	return st, nil
}

// deadline reports an expired generation as a timeout whatever the
// collaborator returned.
func deadline(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, model.ErrDependencyTimeout) {
		return fmt.Errorf("%w: %w", model.ErrDependencyTimeout, err)
	}
	return err
}

// stageBook remembers the latest regeneration stage per username.
type stageBook struct {
	mu    sync.Mutex
	state map[string]stageEntry
}

type stageEntry struct {
	stage      model.Stage
	lastErr    string
	degenerate bool
}

func newStageBook() *stageBook {
	return &stageBook{state: make(map[string]stageEntry)}
}

func (b *stageBook) begin(username string) *stageRun {
	b.set(username, stageEntry{stage: model.StageIdle})
	return &stageRun{book: b, username: username, stage: model.StageIdle}
}

func (b *stageBook) set(username string, e stageEntry) {
	b.mu.Lock()
	b.state[username] = e
	b.mu.Unlock()
}

func (b *stageBook) get(username string) (model.Stage, string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.state[username]
	return e.stage, e.lastErr, ok
}

// degenerate reports whether username's latest run ended with no
// resolvable items.
func (b *stageBook) degenerate(username string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state[username].degenerate
}

// stageRun drives one regeneration through the stage machine.
type stageRun struct {
	book     *stageBook
	username string
	stage    model.Stage
	failedAt model.Stage
}

func (r *stageRun) advance(to model.Stage) error {
	if !r.stage.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, r.stage, to)
	}
	r.stage = to
	r.book.set(r.username, stageEntry{stage: to})
	metrics.RecordStageTransition(string(to))
	return nil
}

func (r *stageRun) fail(err error) {
	r.finish(stageEntry{stage: model.StageFailed, lastErr: err.Error()})
}

// degenerate ends the run without persisting anything.
func (r *stageRun) degenerate() {
	r.finish(stageEntry{stage: model.StageFailed, lastErr: model.ErrZeroCoverage.Error(), degenerate: true})
}

func (r *stageRun) finish(e stageEntry) {
	if r.stage.Terminal() {
		return
	}
	r.failedAt = r.stage
	r.stage = model.StageFailed
	r.book.set(r.username, e)
	metrics.RecordStageTransition(string(model.StageFailed))
}
