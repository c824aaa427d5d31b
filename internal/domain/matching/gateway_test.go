package matching_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tastebud/internal/domain/matching"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/scoring"
	"github.com/okian/tastebud/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeIndex struct {
	hits    []model.Hit
	err     error
	delay   time.Duration
	lastK   int
	exclude []string
}

func (f *fakeIndex) Query(ctx context.Context, _ model.Vector, k int, exclude []string) ([]model.Hit, error) {
	f.lastK = k
	f.exclude = exclude
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if len(f.hits) > k {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func unit() model.Vector {
	v := make(model.Vector, model.Dimension)
	v[0] = 1
	return v
}

func hit(id string, sim float64, country string, artists ...string) model.Hit {
	return model.Hit{Similarity: sim, Profile: model.Profile{ID: id, Username: id, Country: country, TopArtists: artists}}
}

func TestFindMatches(t *testing.T) {
	ctx := context.Background()
	me := model.Profile{ID: "me", Vector: unit(), TopArtists: []string{"Radiohead", "Björk"}}

	Convey("Given a gateway over an index with hits", t, func() {
		idx := &fakeIndex{hits: []model.Hit{
			hit("b", 0.801, "US", "radiohead"),
			hit("a", 0.801, "JP", "Björk", "Radiohead"),
			hit("me", 1.0, "US"),
			hit("c", 0.95, "JP", "Burial"),
			hit("d", -0.2, "DE"),
		}}
		g := matching.New(idx, matching.WithScorer(scoring.New(scoring.WithDisplayLimit(1))))

		Convey("When asking for matches", func() {
			got, err := g.FindMatches(ctx, me, 10, nil)

			Convey("Then candidates are ranked and the requester is excluded", func() {
				So(err, ShouldBeNil)
				ids := []string{}
				for _, c := range got {
					ids = append(ids, c.CandidateID)
				}
				So(ids, ShouldResemble, []string{"c", "a", "b", "d"})
				So(idx.exclude, ShouldResemble, []string{"me"})
			})

			Convey("Then scores are bounded and overlap is explained", func() {
				So(got[0].CompatibilityScore, ShouldEqual, 95)
				So(got[3].CompatibilityScore, ShouldEqual, 0)
				So(got[1].SharedArtistCount, ShouldEqual, 2)
				So(got[1].SharedArtists, ShouldHaveLength, 1)
				So(got[0].DiscoverArtists, ShouldResemble, []string{"Burial"})
			})
		})

		Convey("When the limit is smaller than the hit list", func() {
			got, err := g.FindMatches(ctx, me, 2, nil)
			So(err, ShouldBeNil)
			So(got, ShouldHaveLength, 2)
			So(idx.lastK, ShouldEqual, 2)
		})

		Convey("When a filter is given", func() {
			f, err := matching.CompileFilter(`candidate.country == "JP" && candidate.score >= 80`)
			So(err, ShouldBeNil)
			got, err := g.FindMatches(ctx, me, 1, f)

			Convey("Then extra hits are fetched and only matching candidates remain", func() {
				So(err, ShouldBeNil)
				So(idx.lastK, ShouldEqual, matching.DefaultOverfetch)
				So(got, ShouldHaveLength, 1)
				So(got[0].CandidateID, ShouldEqual, "a")
			})
		})

		Convey("When the limit is not positive", func() {
			_, err := g.FindMatches(ctx, me, 0, nil)
			So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
		})

		Convey("When the requester embedding is degenerate", func() {
			_, err := g.FindMatches(ctx, model.Profile{ID: "x", Vector: make(model.Vector, model.Dimension)}, 5, nil)
			So(errors.Is(err, model.ErrZeroCoverage), ShouldBeTrue)
		})
	})

	Convey("Given a failing index", t, func() {
		Convey("When the index is unreachable", func() {
			g := matching.New(&fakeIndex{err: fmt.Errorf("dial tcp: connection refused")})
			got, err := g.FindMatches(ctx, me, 5, nil)

			Convey("Then the call fails as unavailable with no partial result", func() {
				So(errors.Is(err, model.ErrDependencyUnavailable), ShouldBeTrue)
				So(got, ShouldBeNil)
			})
		})

		Convey("When the index already classified its failure", func() {
			g := matching.New(&fakeIndex{err: fmt.Errorf("%w: breaker open", model.ErrDependencyUnavailable)})
			_, err := g.FindMatches(ctx, me, 5, nil)
			So(errors.Is(err, model.ErrDependencyUnavailable), ShouldBeTrue)
			So(errors.Is(err, model.ErrDependencyTimeout), ShouldBeFalse)
		})

		Convey("When the index query exceeds the timeout", func() {
			idx := &fakeIndex{hits: []model.Hit{hit("a", 0.9, "US")}, delay: 200 * time.Millisecond}
			g := matching.New(idx, matching.WithTimeout(10*time.Millisecond))
			got, err := g.FindMatches(ctx, me, 5, nil)

			Convey("Then a timeout is returned, never an empty success", func() {
				So(errors.Is(err, model.ErrDependencyTimeout), ShouldBeTrue)
				So(got, ShouldBeNil)
			})
		})
	})
}

func TestCompileFilter(t *testing.T) {
	Convey("Given filter expressions", t, func() {
		c := model.MatchCandidate{CandidateID: "x", Country: "BR", CompatibilityScore: 72, IsSynthetic: true, SharedArtists: []string{"Anitta"}}

		Convey("When the expression is empty", func() {
			f, err := matching.CompileFilter("  ")
			So(err, ShouldBeNil)
			So(f, ShouldBeNil)
			ok, err := f.Match(c)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
		})

		Convey("When the expression is valid", func() {
			f, err := matching.CompileFilter(`!candidate.is_synthetic || "Anitta" in candidate.shared_artists`)
			So(err, ShouldBeNil)
			ok, err := f.Match(c)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(f.String(), ShouldContainSubstring, "is_synthetic")
		})

		Convey("When the expression does not parse", func() {
			_, err := matching.CompileFilter(`candidate.country ==`)
			So(errors.Is(err, matching.ErrInvalidFilter), ShouldBeTrue)
		})

		Convey("When the expression is not boolean", func() {
			f, err := matching.CompileFilter(`candidate.score + 1`)
			So(err, ShouldBeNil)
			_, err = f.Match(c)
			So(errors.Is(err, matching.ErrInvalidFilter), ShouldBeTrue)
		})
	})
}
