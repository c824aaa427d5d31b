package seeding_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tastebud/internal/domain/aggregate"
	"github.com/okian/tastebud/internal/domain/cache"
	"github.com/okian/tastebud/internal/domain/catalog/catalogtest"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/resolver"
	"github.com/okian/tastebud/internal/domain/seeding"
	"github.com/okian/tastebud/pkg/logger"
)

func init() {
	_ = logger.Init()
}

const testPools = `
segments:
  - name: mainstream
    countries: [US, GB]
    genres: [rock, pop, britpop]
    artists: [The Beatles, Pink Floyd, Radiohead]
    tracks:
      - {artist: The Beatles, track: Let It Be}
      - {artist: Pink Floyd, track: Time}
    artists_per_profile: [2, 3]
    tracks_per_profile: [1, 2]
    plays: [50, 500]
    recent_share: 0.5
    recent_days: 30
  - name: niche
    countries: [DE]
    genres: [idm, experimental]
    artists: [Aphex Twin, Black Midi, Black Country New Road]
    tracks:
      - {artist: Aphex Twin, track: Windowlicker}
    artists_per_profile: [1, 3]
    tracks_per_profile: [0, 1]
    plays: [10, 100]
    recent_share: 0.8
    recent_days: 14
  - name: veteran
    countries: [FI]
    genres: [classic rock]
    artists: [Pink Floyd, The Beatles]
    tracks: []
    artists_per_profile: [2, 2]
    tracks_per_profile: [0, 0]
    plays: [1000, 5000]
    recent_share: 0
    recent_days: 0
  - name: international
    countries: [NG]
    genres: [afrobeats]
    artists: [Burna Boy]
    tracks:
      - {artist: Burna Boy, track: Last Last}
    artists_per_profile: [1, 1]
    tracks_per_profile: [1, 1]
    plays: [20, 200]
    recent_share: 1
    recent_days: 7
`

const unknownPools = `
segments:
  - name: niche
    countries: [XX]
    genres: [noise]
    artists: [Qqqq Zzzz]
    tracks: []
    artists_per_profile: [1, 1]
    tracks_per_profile: [0, 0]
    plays: [1, 5]
    recent_share: 0
    recent_days: 0
`

var now = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func newAggregator() *aggregate.Aggregator {
	c, _ := cache.New(cache.WithCapacity(128))
	r := resolver.New(catalogtest.New(), c, resolver.WithFuzzyThreshold(0.95), resolver.WithZeroShot(5, 0.95))
	return aggregate.New(r, aggregate.WithClock(func() time.Time { return now }))
}

func mustPools(doc string) seeding.Pools {
	p, err := seeding.ReadPools(strings.NewReader(doc))
	if err != nil {
		panic(err)
	}
	return p
}

type memorySink struct {
	mu       sync.Mutex
	profiles []model.Profile
	err      error
}

func (m *memorySink) Upsert(ctx context.Context, p model.Profile) (model.Profile, error) {
	if m.err != nil {
		return model.Profile{}, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = append(m.profiles, p)
	return p, nil
}

func (m *memorySink) usernames() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.profiles))
	for _, p := range m.profiles {
		out[p.Username] = true
	}
	return out
}

func TestMixAllocate(t *testing.T) {
	Convey("The default mix splits 1000 ghosts 400/300/200/100", t, func() {
		got, err := seeding.DefaultMix().Allocate(1000)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, map[model.Segment]int{
			model.SegmentMainstream:    400,
			model.SegmentNiche:         300,
			model.SegmentVeteran:       200,
			model.SegmentInternational: 100,
		})
	})

	Convey("Largest remainders absorb rounding so parts sum to count", t, func() {
		got, err := seeding.DefaultMix().Allocate(7)
		So(err, ShouldBeNil)
		So(got[model.SegmentMainstream], ShouldEqual, 3)
		So(got[model.SegmentNiche], ShouldEqual, 2)
		So(got[model.SegmentVeteran], ShouldEqual, 1)
		So(got[model.SegmentInternational], ShouldEqual, 1)
	})

	Convey("Shares are normalized", t, func() {
		got, err := seeding.Mix{model.SegmentNiche: 3, model.SegmentVeteran: 1}.Allocate(8)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, map[model.Segment]int{model.SegmentNiche: 6, model.SegmentVeteran: 2})
	})

	Convey("Bad mixes are rejected", t, func() {
		_, err := seeding.Mix{}.Allocate(10)
		So(errors.Is(err, seeding.ErrInvalidMix), ShouldBeTrue)
		_, err = seeding.Mix{model.SegmentNiche: -1, model.SegmentVeteran: 2}.Allocate(10)
		So(errors.Is(err, seeding.ErrInvalidMix), ShouldBeTrue)
		_, err = seeding.Mix{"polka": 1}.Allocate(10)
		So(errors.Is(err, seeding.ErrInvalidMix), ShouldBeTrue)
		_, err = seeding.DefaultMix().Allocate(-1)
		So(errors.Is(err, seeding.ErrInvalidCount), ShouldBeTrue)
	})
}

func TestPools(t *testing.T) {
	Convey("The built-in pools cover every segment", t, func() {
		p := seeding.DefaultPools()
		So(p.Covers(seeding.DefaultMix()), ShouldBeNil)
		for _, seg := range model.Segments() {
			So(p[seg].Artists, ShouldNotBeEmpty)
		}
	})

	Convey("Invalid pool documents are rejected", t, func() {
		bad := []string{
			"segments:\n  - name: polka\n    artists: [a]\n    artists_per_profile: [1, 1]\n    plays: [1, 1]\n",
			"segments:\n  - name: niche\n    artists: []\n    artists_per_profile: [1, 1]\n    plays: [1, 1]\n",
			"segments:\n  - name: niche\n    artists: [a]\n    artists_per_profile: [3, 1]\n    plays: [1, 1]\n",
			"segments:\n  - name: niche\n    artists: [a]\n    artists_per_profile: [1, 1]\n    plays: [1, 1]\n    colour: blue\n",
		}
		for _, doc := range bad {
			_, err := seeding.ReadPools(strings.NewReader(doc))
			So(errors.Is(err, seeding.ErrInvalidPools), ShouldBeTrue)
		}
	})

	Convey("A mix naming a segment without a pool is rejected", t, func() {
		s := seeding.New(newAggregator(), &memorySink{}, seeding.WithPools(mustPools(unknownPools)))
		_, err := s.Seed(context.Background(), 4, seeding.DefaultMix())
		So(errors.Is(err, seeding.ErrInvalidPools), ShouldBeTrue)
	})
}

func TestSeed(t *testing.T) {
	ctx := context.Background()

	Convey("Given a seeder over the fixture catalog", t, func() {
		sink := &memorySink{}
		s := seeding.New(newAggregator(), sink, seeding.WithPools(mustPools(testPools)), seeding.WithSeed(42))

		Convey("When seeding ten ghosts", func() {
			report, err := s.Seed(ctx, 10, nil)
			So(err, ShouldBeNil)

			Convey("Then every ghost is created in the planned split", func() {
				So(report.Created, ShouldEqual, 10)
				So(report.Skipped, ShouldEqual, 0)
				So(report.BySegment[model.SegmentMainstream], ShouldEqual, 4)
				So(report.BySegment[model.SegmentNiche], ShouldEqual, 3)
				So(report.BySegment[model.SegmentVeteran], ShouldEqual, 2)
				So(report.BySegment[model.SegmentInternational], ShouldEqual, 1)
			})

			Convey("Then ghosts are synthetic, unit length and tagged", func() {
				So(sink.profiles, ShouldHaveLength, 10)
				for _, p := range sink.profiles {
					So(p.Synthetic, ShouldBeTrue)
					So(p.Vector.Norm(), ShouldAlmostEqual, 1, 1e-6)
					So(p.Username, ShouldStartWith, "ghost_"+string(p.Segment)+"_")
					So(p.TopArtists, ShouldNotBeEmpty)
					So(p.TopGenres, ShouldNotBeEmpty)
					So(p.Country, ShouldNotBeEmpty)
					So(p.Grade, ShouldNotBeEmpty)
				}
			})

			Convey("Then seeding again adds rather than replaces", func() {
				again, err := s.Seed(ctx, 10, nil)
				So(err, ShouldBeNil)
				So(again.Created, ShouldEqual, 10)
				So(sink.usernames(), ShouldHaveLength, 20)
			})
		})

		Convey("A fixed seed reproduces the same ghosts", func() {
			other := &memorySink{}
			twin := seeding.New(newAggregator(), other, seeding.WithPools(mustPools(testPools)), seeding.WithSeed(42))
			_, err := s.Seed(ctx, 5, nil)
			So(err, ShouldBeNil)
			_, err = twin.Seed(ctx, 5, nil)
			So(err, ShouldBeNil)
			So(other.usernames(), ShouldResemble, sink.usernames())
		})

		Convey("Zero ghosts is a no-op", func() {
			report, err := s.Seed(ctx, 0, nil)
			So(err, ShouldBeNil)
			So(report.Created, ShouldEqual, 0)
		})
	})

	Convey("Ghosts whose history resolves to nothing are skipped", t, func() {
		sink := &memorySink{}
		s := seeding.New(newAggregator(), sink, seeding.WithPools(mustPools(unknownPools)), seeding.WithSeed(1))
		report, err := s.Seed(ctx, 3, seeding.Mix{model.SegmentNiche: 1})
		So(err, ShouldBeNil)
		So(report.Created, ShouldEqual, 0)
		So(report.Skipped, ShouldEqual, 3)
		So(sink.profiles, ShouldBeEmpty)
	})

	Convey("A store failure aborts the run", t, func() {
		sink := &memorySink{err: model.ErrDependencyUnavailable}
		s := seeding.New(newAggregator(), sink, seeding.WithPools(mustPools(testPools)), seeding.WithSeed(7))
		report, err := s.Seed(ctx, 4, nil)
		So(errors.Is(err, model.ErrDependencyUnavailable), ShouldBeTrue)
		So(report.Created, ShouldEqual, 0)
	})
}
