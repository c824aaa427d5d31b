package service_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tastebud/internal/adapters/repository"
	service "github.com/okian/tastebud/internal/app"
	"github.com/okian/tastebud/internal/domain/aggregate"
	"github.com/okian/tastebud/internal/domain/cache"
	"github.com/okian/tastebud/internal/domain/catalog"
	"github.com/okian/tastebud/internal/domain/catalog/catalogtest"
	"github.com/okian/tastebud/internal/domain/matching"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/resolver"
	"github.com/okian/tastebud/internal/domain/seeding"
	"github.com/okian/tastebud/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeProvider serves canned listening histories.
type fakeProvider struct {
	mu        sync.Mutex
	histories map[string]model.Listening
	errs      map[string]error
	delay     time.Duration
	calls     atomic.Int64
}

func newFakeProvider() *fakeProvider {
	stat := func(w model.WindowLabel, key model.ItemKey, plays int) model.WindowStat {
		return model.WindowStat{Key: key, PlayCount: plays, Window: w}
	}
	return &fakeProvider{
		errs: map[string]error{},
		histories: map[string]model.Listening{
			"alice": {
				Username: "alice",
				Country:  "GB",
				Groups: []model.WindowGroup{
					{Label: model.WindowOverall, Stats: []model.WindowStat{
						stat(model.WindowOverall, model.ArtistKey("Radiohead"), 300),
						stat(model.WindowOverall, model.NewItemKey("Radiohead", "Karma Police"), 90),
						stat(model.WindowOverall, model.ArtistKey("Pink Floyd"), 120),
					}},
					{Label: model.WindowRecent, Stats: []model.WindowStat{
						{Key: model.NewItemKey("Radiohead", "Karma Police"), PlayCount: 3, Window: model.WindowRecent, PlayedAt: now.Add(-48 * time.Hour)},
					}},
				},
				TopArtists: []string{"Radiohead", "Pink Floyd"},
				TopTracks:  []string{"Radiohead - Karma Police"},
				Genres:     []string{"alternative", "rock"},
			},
			"bob": {
				Username: "bob",
				Country:  "US",
				Groups: []model.WindowGroup{
					{Label: model.WindowOverall, Stats: []model.WindowStat{
						stat(model.WindowOverall, model.ArtistKey("Radiohead"), 200),
						stat(model.WindowOverall, model.NewItemKey("Radiohead", "Paranoid Android"), 60),
						stat(model.WindowOverall, model.ArtistKey("The Beatles"), 80),
					}},
				},
				TopArtists: []string{"Radiohead", "The Beatles"},
				TopTracks:  []string{"Radiohead - Paranoid Android"},
				Genres:     []string{"rock"},
			},
			"carol": {
				Username: "carol",
				Country:  "NG",
				Groups: []model.WindowGroup{
					{Label: model.WindowOverall, Stats: []model.WindowStat{
						stat(model.WindowOverall, model.ArtistKey("Burna Boy"), 400),
						stat(model.WindowOverall, model.NewItemKey("Burna Boy", "Last Last"), 150),
					}},
				},
				TopArtists: []string{"Burna Boy"},
				Genres:     []string{"afrobeats"},
			},
			"dave": {
				Username: "dave",
				Groups: []model.WindowGroup{
					{Label: model.WindowOverall, Stats: []model.WindowStat{
						stat(model.WindowOverall, model.ArtistKey("Zzzz Qqqq"), 10),
					}},
				},
			},
			"erin": {
				Username: "erin",
				Missing:  model.Windows(),
			},
		},
	}
}

func (f *fakeProvider) fail(username string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[username] = err
}

// swap serves from's history when username is requested.
func (f *fakeProvider) swap(username, from string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.histories[from]
	l.Username = username
	f.histories[username] = l
}

func (f *fakeProvider) Listening(ctx context.Context, username string) (model.Listening, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return model.Listening{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[username]; err != nil {
		return model.Listening{}, err
	}
	l, ok := f.histories[username]
	if !ok {
		return model.Listening{}, model.ErrNotFound
	}
	return l, nil
}

type harness struct {
	svc      *service.Service
	store    *repository.MemoryStore
	provider *fakeProvider
	catalog  *catalog.Catalog
}

func newHarness(opts ...service.Option) *harness {
	ctx := context.Background()
	cat := catalogtest.New()
	lru, err := cache.New(cache.WithCapacity(64))
	if err != nil {
		panic(err)
	}
	agg := aggregate.New(resolver.New(cat, lru), aggregate.WithClock(func() time.Time { return now }))
	store := repository.NewMemoryStore(ctx)
	provider := newFakeProvider()

	svc, err := service.New(service.Components{
		Provider:   provider,
		Store:      store,
		Aggregator: agg,
		Gateway:    matching.New(store),
		Seeder:     seeding.New(agg, store, seeding.WithSeed(7)),
		Cache:      lru,
		Catalog:    cat,
	}, append([]service.Option{service.WithWorkerCount(2)}, opts...)...)
	if err != nil {
		panic(err)
	}
	return &harness{svc: svc, store: store, provider: provider, catalog: cat}
}

func (h *harness) close() {
	h.svc.Stop()
	_ = h.store.Close()
}
