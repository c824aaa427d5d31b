package model_test

import (
	"testing"

	model "github.com/okian/tastebud/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestItemKey(t *testing.T) {
	Convey("Given raw artist and track names", t, func() {
		Convey("When building a key", func() {
			k := model.NewItemKey("  The   Smiths ", "How Soon Is NOW?")

			Convey("Then names are case-folded and whitespace collapsed", func() {
				So(k.Artist, ShouldEqual, "the smiths")
				So(k.Track, ShouldEqual, "how soon is now?")
				So(k.IsArtist(), ShouldBeFalse)
				So(k.String(), ShouldEqual, "the smiths||how soon is now?")
				So(k.Name(), ShouldEqual, "the smiths how soon is now?")
			})

			Convey("Then parsing the rendered form returns the same key", func() {
				So(model.ParseItemKey(k.String()), ShouldResemble, k)
			})
		})

		Convey("When building an artist key", func() {
			k := model.ArtistKey("Aphex Twin")

			Convey("Then it has no track", func() {
				So(k.IsArtist(), ShouldBeTrue)
				So(k.String(), ShouldEqual, "aphex twin")
				So(model.ParseItemKey("APHEX twin"), ShouldResemble, k)
			})
		})

		Convey("When keys differ only by case", func() {
			So(model.NewItemKey("BTS", "Dynamite"), ShouldResemble, model.NewItemKey("bts", "dynamite"))
		})
	})
}

func TestCoverage(t *testing.T) {
	Convey("Given a coverage counter", t, func() {
		var c model.Coverage

		Convey("When nothing was considered", func() {
			Convey("Then ratio and confidence are zero and the grade is F", func() {
				So(c.Ratio(), ShouldEqual, 0)
				So(c.Confidence(), ShouldEqual, 0)
				So(c.Grade(), ShouldEqual, "F")
			})
		})

		Convey("When outcomes of every tier are recorded", func() {
			c.Add(model.TierExact)
			c.Add(model.TierExact)
			c.Add(model.TierFuzzy)
			c.Add(model.TierZeroShot)
			c.Add(model.TierMiss)

			Convey("Then counts and ratio reflect them", func() {
				So(c.Total, ShouldEqual, 5)
				So(c.Resolved(), ShouldEqual, 4)
				So(c.Miss, ShouldEqual, 1)
				So(c.Ratio(), ShouldAlmostEqual, 0.8, 1e-9)
			})

			Convey("Then confidence weights tiers", func() {
				So(c.Confidence(), ShouldAlmostEqual, (2+0.5+0.3)/5.0, 1e-9)
				So(c.Grade(), ShouldEqual, "C")
			})
		})

		Convey("When every item resolves exactly", func() {
			for i := 0; i < 10; i++ {
				c.Add(model.TierExact)
			}
			So(c.Grade(), ShouldEqual, "A")
		})
	})
}

func TestUserEmbeddingDegenerate(t *testing.T) {
	Convey("Given user embeddings", t, func() {
		Convey("When nothing resolved", func() {
			u := model.UserEmbedding{Vector: make(model.Vector, model.Dimension)}
			So(u.Degenerate(), ShouldBeTrue)
			So(u.CoverageRatio(), ShouldEqual, 0)
		})

		Convey("When a unit vector was produced", func() {
			v := make(model.Vector, model.Dimension)
			v[0] = 1
			u := model.UserEmbedding{Vector: v, Coverage: model.Coverage{Total: 1, Exact: 1}}
			So(u.Degenerate(), ShouldBeFalse)
			So(u.Vector.Norm(), ShouldAlmostEqual, 1, 1e-9)
		})
	})
}

func TestStageTransitions(t *testing.T) {
	Convey("Given the regeneration stages", t, func() {
		Convey("Then the happy path is strictly ordered", func() {
			path := []model.Stage{
				model.StageIdle, model.StageFetching, model.StageResolving,
				model.StageAggregating, model.StageNormalizing, model.StagePersisted,
			}
			for i := 0; i+1 < len(path); i++ {
				So(path[i].CanTransition(path[i+1]), ShouldBeTrue)
			}
		})

		Convey("Then stages cannot be skipped", func() {
			So(model.StageFetching.CanTransition(model.StageAggregating), ShouldBeFalse)
			So(model.StageIdle.CanTransition(model.StagePersisted), ShouldBeFalse)
		})

		Convey("Then any running stage may fail but terminal ones may not", func() {
			So(model.StageResolving.CanTransition(model.StageFailed), ShouldBeTrue)
			So(model.StagePersisted.CanTransition(model.StageFailed), ShouldBeFalse)
			So(model.StagePersisted.Terminal(), ShouldBeTrue)
			So(model.StageFailed.Terminal(), ShouldBeTrue)
		})
	})
}
