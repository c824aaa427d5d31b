// Package seeding creates synthetic ghost profiles so new users always
// have someone to match against. Ghost listening histories are drawn from
// per-segment pools and embedded by the same aggregator real users go
// through.
package seeding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tastebud/internal/domain/aggregate"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/pkg/logger"
	"github.com/okian/tastebud/pkg/metrics"
)

// Defaults for seeding.
const (
	DefaultConcurrency = 8
	topArtistLimit     = 10
	topTrackLimit      = 10
)

// Aggregator embeds a listening history.
type Aggregator interface {
	Aggregate(ctx context.Context, username string, groups []model.WindowGroup) (aggregate.Result, error)
	Now() time.Time
}

// Sink persists ghost profiles.
type Sink interface {
	Upsert(ctx context.Context, p model.Profile) (model.Profile, error)
}

// Option applies a configuration option to the Seeder.
type Option func(*Seeder)

// WithPools replaces the built-in segment pools.
func WithPools(p Pools) Option {
	return func(s *Seeder) {
		if len(p) > 0 {
			s.pools = p
		}
	}
}

// WithSeed makes ghost generation reproducible.
func WithSeed(seed int64) Option {
	return func(s *Seeder) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // not security sensitive
	}
}

// WithConcurrency bounds how many ghosts are embedded at once.
func WithConcurrency(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Seeder) {
		if l != nil {
			s.logger = l
		}
	}
}

// Report summarises one seeding run.
type Report struct {
	Requested int                   `json:"requested"`
	Created   int                   `json:"created"`
	Skipped   int                   `json:"skipped"`
	Planned   map[model.Segment]int `json:"planned"`
	BySegment map[model.Segment]int `json:"by_segment"`
}

// Seeder generates and stores ghost profiles.
type Seeder struct {
	agg         Aggregator
	sink        Sink
	pools       Pools
	concurrency int
	logger      logger.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// New creates a Seeder.
func New(agg Aggregator, sink Sink, opts ...Option) *Seeder {
	s := &Seeder{
		agg:         agg,
		sink:        sink,
		concurrency: DefaultConcurrency,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // not security sensitive
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pools == nil {
		s.pools = DefaultPools()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("seeder")
	}
	return s
}

// plan is one ghost's drawn listening history.
type plan struct {
	username string
	segment  model.Segment
	country  string
	genres   []string
	artists  []string
	tracks   []string
	groups   []model.WindowGroup
}

// Seed adds count ghost profiles split across segments by mix. Existing
// profiles are never replaced. Ghosts whose history resolves to nothing
// are skipped. The first store failure aborts the run; the report then
// counts what was stored before it.
func (s *Seeder) Seed(ctx context.Context, count int, mix Mix) (Report, error) {
	if count < 0 {
		return Report{}, ErrInvalidCount
	}
	if mix == nil {
		mix = DefaultMix()
	}
	alloc, err := mix.Allocate(count)
	if err != nil {
		return Report{}, err
	}
	if err := s.pools.Covers(mix); err != nil {
		return Report{}, err
	}

	report := Report{Requested: count, Planned: alloc, BySegment: make(map[model.Segment]int)}
	plans := s.draw(alloc)
	s.logger.Info(ctx, "seeding ghost profiles",
		logger.Int("count", count),
		logger.Any("planned", alloc))

	var (
		created atomic.Int64
		skipped atomic.Int64
		mu      sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range plans {
		g.Go(func() error {
			ok, err := s.build(gctx, p)
			if err != nil {
				return err
			}
			if !ok {
				skipped.Add(1)
				return nil
			}
			created.Add(1)
			mu.Lock()
			report.BySegment[p.segment]++
			mu.Unlock()
			metrics.RecordGhostCreated(string(p.segment))
			return nil
		})
	}
	err = g.Wait()

	report.Created = int(created.Load())
	report.Skipped = int(skipped.Load())
	if err != nil {
		s.logger.Error(ctx, "seeding aborted", logger.Int("created", report.Created), logger.Error(err))
		return report, err
	}
	s.logger.Info(ctx, "seeding complete",
		logger.Int("created", report.Created),
		logger.Int("skipped", report.Skipped))
	return report, nil
}

// build embeds and stores one ghost. Returns false when the ghost was
// degenerate and skipped.
func (s *Seeder) build(ctx context.Context, p plan) (bool, error) {
	res, err := s.agg.Aggregate(ctx, p.username, p.groups)
	if err != nil {
		return false, fmt.Errorf("aggregate %s: %w", p.username, err)
	}
	emb := res.Embedding
	if emb.Degenerate() {
		s.logger.Debug(ctx, "skipping degenerate ghost", logger.String("username", p.username))
		return false, nil
	}

	ghost := model.GhostProfile{
		Embedding: emb,
		Segment:   p.segment,
		Country:   p.country,
		Artists:   p.artists,
		Tracks:    p.tracks,
		Genres:    p.genres,
	}
	if _, err := s.sink.Upsert(ctx, ghost.Profile()); err != nil {
		if errors.Is(err, context.Canceled) {
			return false, err
		}
		return false, fmt.Errorf("store %s: %w", p.username, err)
	}
	return true, nil
}

// draw generates every ghost's history up front so a fixed seed yields
// the same ghosts regardless of scheduling.
func (s *Seeder) draw(alloc map[model.Segment]int) []plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.agg.Now()
	var plans []plan
	for _, seg := range model.Segments() {
		for i := 0; i < alloc[seg]; i++ {
			plans = append(plans, s.drawOne(s.pools[seg], now))
		}
	}
	return plans
}

func (s *Seeder) drawOne(pool Pool, now time.Time) plan {
	r := s.rng
	p := plan{
		username: ghostName(pool.Name, r),
		segment:  pool.Name,
		country:  pick(r, pool.Countries),
		genres:   sample(r, pool.Genres, between(r, 2, 4)),
	}

	type drawn struct {
		key   model.ItemKey
		label string
		plays int
	}
	var items []drawn
	for _, a := range sample(r, pool.Artists, between(r, pool.ArtistsPerProfile[0], pool.ArtistsPerProfile[1])) {
		items = append(items, drawn{key: model.ArtistKey(a), label: a, plays: between(r, pool.Plays[0], pool.Plays[1])})
	}
	nTracks := between(r, pool.TracksPerProfile[0], pool.TracksPerProfile[1])
	for _, i := range perm(r, len(pool.Tracks), nTracks) {
		t := pool.Tracks[i]
		items = append(items, drawn{
			key:   model.NewItemKey(t.Artist, t.Track),
			label: t.Artist + " - " + t.Track,
			plays: between(r, pool.Plays[0], pool.Plays[1]) / 4,
		})
	}

	windows := map[model.WindowLabel][]model.WindowStat{}
	for _, it := range items {
		plays := max(it.plays, 1)
		windows[model.WindowOverall] = append(windows[model.WindowOverall],
			model.WindowStat{Key: it.key, PlayCount: plays, Window: model.WindowOverall})
		if r.Float64() < 0.7 {
			windows[model.WindowSixMonths] = append(windows[model.WindowSixMonths],
				model.WindowStat{Key: it.key, PlayCount: max(plays*between(r, 20, 50)/100, 1), Window: model.WindowSixMonths})
		}
		if r.Float64() < 0.5 {
			windows[model.WindowThreeMonths] = append(windows[model.WindowThreeMonths],
				model.WindowStat{Key: it.key, PlayCount: max(plays*between(r, 10, 30)/100, 1), Window: model.WindowThreeMonths})
		}
		if !it.key.IsArtist() && r.Float64() < pool.RecentShare {
			age := time.Duration(r.Int63n(int64(pool.RecentDays+1)*int64(24*time.Hour) + 1))
			windows[model.WindowRecent] = append(windows[model.WindowRecent],
				model.WindowStat{Key: it.key, PlayCount: between(r, 1, 10), Window: model.WindowRecent, PlayedAt: now.Add(-age)})
		}
	}
	for _, label := range model.Windows() {
		if stats := windows[label]; len(stats) > 0 {
			p.groups = append(p.groups, model.WindowGroup{Label: label, Stats: stats})
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].plays > items[j].plays })
	for _, it := range items {
		if it.key.IsArtist() && len(p.artists) < topArtistLimit {
			p.artists = append(p.artists, it.label)
		}
		if !it.key.IsArtist() && len(p.tracks) < topTrackLimit {
			p.tracks = append(p.tracks, it.label)
		}
	}
	return p
}

func ghostName(seg model.Segment, r *rand.Rand) string {
	id, err := uuid.NewRandomFromReader(r)
	if err != nil {
		id = uuid.New()
	}
	return fmt.Sprintf("ghost_%s_%s", seg, strings.ReplaceAll(id.String(), "-", "")[:12])
}

func between(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

func pick(r *rand.Rand, vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[r.Intn(len(vals))]
}

func sample(r *rand.Rand, vals []string, n int) []string {
	idx := perm(r, len(vals), n)
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, vals[i])
	}
	return out
}

func perm(r *rand.Rand, size, n int) []int {
	n = min(n, size)
	if n <= 0 {
		return nil
	}
	return r.Perm(size)[:n]
}
