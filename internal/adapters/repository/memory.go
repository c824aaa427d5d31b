package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// MemoryStore is an in-process Store that answers queries with a
// brute-force cosine scan.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]model.Profile
	byName map[string]string

	opts   options
	logger logger.Logger

	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	o := applyOptions(opts)
	s := &MemoryStore{
		byID:     make(map[string]model.Profile),
		byName:   make(map[string]string),
		opts:     o,
		logger:   o.logger,
		stopChan: make(chan struct{}),
	}
	s.startMetricsUpdater(ctx)
	return s
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Upsert implements Store.Upsert.
func (s *MemoryStore) Upsert(ctx context.Context, p model.Profile) (model.Profile, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIndexLatency("upsert", float64(time.Since(start).Microseconds())/1000)
	}()

	if err := validate(p, s.opts.dimension); err != nil {
		metrics.RecordErrorByComponent("repository", "invalid_profile")
		return model.Profile{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}

	name := NormalizeUsername(p.Username)
	now := s.opts.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneProfile(p)
	stored.Username = name
	stored.UpdatedAt = now
	if id, ok := s.byName[name]; ok {
		prev := s.byID[id]
		stored.ID = id
		stored.CreatedAt = prev.CreatedAt
	} else {
		stored.ID = s.opts.newID()
		stored.CreatedAt = now
	}
	s.byID[stored.ID] = stored
	s.byName[name] = stored.ID
	return cloneProfile(stored), nil
}

// GetByUsername implements Store.GetByUsername.
func (s *MemoryStore) GetByUsername(ctx context.Context, username string) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byName[NormalizeUsername(username)]
	if !ok {
		return model.Profile{}, model.ErrNotFound
	}
	return cloneProfile(s.byID[id]), nil
}

// Query implements Store.Query.
func (s *MemoryStore) Query(ctx context.Context, vector model.Vector, k int, excludeIDs []string) ([]model.Hit, error) {
	start := time.Now()
	defer func() {
		metrics.RecordIndexLatency("query", float64(time.Since(start).Microseconds())/1000)
	}()

	if k < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if len(vector) != s.opts.dimension {
		return nil, ErrDimensionMismatch
	}
	skip := excludeSet(excludeIDs)

	s.mu.RLock()
	defer s.mu.RUnlock()

	best := newTopK(k)
	for id, p := range s.byID {
		if _, ok := skip[id]; ok {
			continue
		}
		best.offer(vector, p)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := best.result()
	for i := range hits {
		hits[i].Profile = cloneProfile(hits[i].Profile)
	}
	return hits, nil
}

// Counts implements Store.Counts.
func (s *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked(), nil
}

func (s *MemoryStore) countsLocked() Counts {
	c := Counts{Total: len(s.byID)}
	for _, p := range s.byID {
		if p.Synthetic {
			c.Synthetic++
		}
	}
	c.Real = c.Total - c.Synthetic
	return c
}

// Usernames implements Store.Usernames.
func (s *MemoryStore) Usernames(ctx context.Context, kind Kind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.byID))
	for _, p := range s.byID {
		if kind.matches(p) {
			out = append(out, p.Username)
		}
	}
	sort.Strings(out)
	return out, nil
}

// DeleteSynthetic implements Store.DeleteSynthetic.
func (s *MemoryStore) DeleteSynthetic(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.byID {
		if !p.Synthetic {
			continue
		}
		delete(s.byID, id)
		delete(s.byName, p.Username)
		removed++
	}
	if removed > 0 {
		s.logger.Info(ctx, "synthetic profiles deleted", logger.Int("count", removed))
	}
	return removed, nil
}

// DeleteDuplicates implements Store.DeleteDuplicates.
func (s *MemoryStore) DeleteDuplicates(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string][]model.Profile)
	for _, p := range s.byID {
		name := NormalizeUsername(p.Username)
		groups[name] = append(groups[name], p)
	}
	drop, repoint := duplicates(groups, func(name string) (string, bool) {
		id, ok := s.byName[name]
		return id, ok
	})
	for _, p := range drop {
		delete(s.byID, p.ID)
	}
	for name, id := range repoint {
		s.byName[name] = id
	}
	if len(drop) > 0 {
		s.logger.Info(ctx, "duplicate profiles deleted", logger.Int("count", len(drop)))
	}
	return len(drop), nil
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.opts.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	s.mu.RLock()
	c := s.countsLocked()
	s.mu.RUnlock()
	metrics.UpdateProfileCount(KindReal.String(), c.Real)
	metrics.UpdateProfileCount(KindSynthetic.String(), c.Synthetic)
}

func cloneProfile(p model.Profile) model.Profile {
	p.Vector = p.Vector.Clone()
	p.TopArtists = append([]string(nil), p.TopArtists...)
	p.TopTracks = append([]string(nil), p.TopTracks...)
	p.TopGenres = append([]string(nil), p.TopGenres...)
	return p
}
