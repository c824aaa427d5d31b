package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tastebud/internal/adapters/repository"
	service "github.com/okian/tastebud/internal/app"
	"github.com/okian/tastebud/internal/domain/aggregate"
	"github.com/okian/tastebud/internal/domain/catalog/catalogtest"
	"github.com/okian/tastebud/internal/domain/matching"
	"github.com/okian/tastebud/internal/domain/model"
	"github.com/okian/tastebud/internal/domain/seeding"
)

func TestService_New(t *testing.T) {
	Convey("Given missing collaborators", t, func() {
		store := repository.NewMemoryStore(context.Background())
		defer store.Close()
		agg := aggregate.New(nil)

		_, err := service.New(service.Components{})
		So(errors.Is(err, service.ErrMissingStore), ShouldBeTrue)

		_, err = service.New(service.Components{Store: store})
		So(errors.Is(err, service.ErrMissingSource), ShouldBeTrue)

		_, err = service.New(service.Components{Store: store, Provider: newFakeProvider(), Aggregator: agg})
		So(errors.Is(err, service.ErrMissingEngine), ShouldBeTrue)

		svc, err := service.New(service.Components{
			Store:      store,
			Provider:   newFakeProvider(),
			Aggregator: agg,
			Gateway:    matching.New(store),
		})
		So(err, ShouldBeNil)
		So(svc, ShouldNotBeNil)
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		h := newHarness()
		defer h.close()
		ctx := context.Background()

		Convey("Stats before start report it stopped", func() {
			stats := h.svc.GetStats(ctx)
			So(stats["started"], ShouldEqual, false)
			So(stats["catalog"], ShouldResemble, map[string]int{"items": len(catalogtest.Items()), "tracks": 6, "artists": 7})
		})

		Convey("Start and stop can repeat", func() {
			for i := 0; i < 3; i++ {
				So(h.svc.Start(ctx), ShouldBeNil)
				So(h.svc.Start(ctx), ShouldBeNil)
				So(h.svc.GetStats(ctx)["started"], ShouldEqual, true)
				h.svc.Stop()
				So(h.svc.GetStats(ctx)["started"], ShouldEqual, false)
			}
		})

		Convey("Regeneration needs a started service", func() {
			_, err := h.svc.EnqueueRegeneration(ctx, []string{"alice"})
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_GenerateEmbedding(t *testing.T) {
	Convey("Given a service over a small catalog", t, func() {
		h := newHarness()
		defer h.close()
		ctx := context.Background()

		Convey("A resolvable history is embedded and stored", func() {
			gen, err := h.svc.GenerateEmbedding(ctx, "  Alice ")
			So(err, ShouldBeNil)
			So(gen.Persisted, ShouldBeTrue)
			So(gen.ProfileID, ShouldNotBeEmpty)
			So(gen.Embedding.Vector.Norm(), ShouldAlmostEqual, 1.0, 1e-6)
			So(gen.Embedding.Coverage.Exact, ShouldEqual, 4)
			So(gen.Contributions, ShouldNotBeEmpty)

			p, err := h.store.GetByUsername(ctx, "alice")
			So(err, ShouldBeNil)
			So(p.ID, ShouldEqual, gen.ProfileID)
			So(p.Country, ShouldEqual, "GB")
			So(p.TopGenres, ShouldResemble, []string{"alternative", "rock"})
			So(p.Grade, ShouldEqual, "A")

			st, err := h.svc.EmbeddingStatus(ctx, "ALICE")
			So(err, ShouldBeNil)
			So(st.Exists, ShouldBeTrue)
			So(st.Stage, ShouldEqual, string(model.StagePersisted))
			So(st.ProfileID, ShouldEqual, gen.ProfileID)
		})

		Convey("Regenerating keeps the profile id", func() {
			first, err := h.svc.GenerateEmbedding(ctx, "alice")
			So(err, ShouldBeNil)
			second, err := h.svc.GenerateEmbedding(ctx, "alice")
			So(err, ShouldBeNil)
			So(second.ProfileID, ShouldEqual, first.ProfileID)
			So(second.Embedding.Vector, ShouldResemble, first.Embedding.Vector)
		})

		Convey("An unknown user is reported as not found", func() {
			_, err := h.svc.GenerateEmbedding(ctx, "nobody")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			st, err := h.svc.EmbeddingStatus(ctx, "nobody")
			So(err, ShouldBeNil)
			So(st.Exists, ShouldBeFalse)
			So(st.Stage, ShouldEqual, string(model.StageFailed))
			So(st.LastError, ShouldNotBeEmpty)
		})

		Convey("An unresolvable history is degenerate and not stored", func() {
			gen, err := h.svc.GenerateEmbedding(ctx, "dave")
			So(err, ShouldBeNil)
			So(gen.Persisted, ShouldBeFalse)
			So(gen.Embedding.Degenerate(), ShouldBeTrue)

			_, err = h.store.GetByUsername(ctx, "dave")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)

			m, err := h.svc.GetMatches(ctx, "dave", 10, "")
			So(err, ShouldBeNil)
			So(m.Degenerate, ShouldBeTrue)
			So(m.Candidates, ShouldBeEmpty)
		})

		Convey("A degenerate regeneration hides the previously stored vector", func() {
			for _, u := range []string{"alice", "bob"} {
				_, err := h.svc.GenerateEmbedding(ctx, u)
				So(err, ShouldBeNil)
			}
			before, err := h.svc.GetMatches(ctx, "alice", 10, "")
			So(err, ShouldBeNil)
			So(before.Candidates, ShouldNotBeEmpty)

			h.provider.swap("alice", "dave")
			gen, err := h.svc.GenerateEmbedding(ctx, "alice")
			So(err, ShouldBeNil)
			So(gen.Persisted, ShouldBeFalse)

			m, err := h.svc.GetMatches(ctx, "alice", 10, "")
			So(err, ShouldBeNil)
			So(m.Degenerate, ShouldBeTrue)
			So(m.Candidates, ShouldBeEmpty)

			Convey("And a later resolvable run clears the flag", func() {
				h.provider.swap("alice", "bob")
				_, err := h.svc.GenerateEmbedding(ctx, "alice")
				So(err, ShouldBeNil)
				m, err := h.svc.GetMatches(ctx, "alice", 10, "")
				So(err, ShouldBeNil)
				So(m.Degenerate, ShouldBeFalse)
				So(m.Candidates, ShouldNotBeEmpty)
			})
		})

		Convey("A provider outage surfaces as unavailable", func() {
			h.provider.fail("alice", model.ErrDependencyUnavailable)
			_, err := h.svc.GenerateEmbedding(ctx, "alice")
			So(errors.Is(err, model.ErrDependencyUnavailable), ShouldBeTrue)
		})

		Convey("A history with every window missing is fatal", func() {
			_, err := h.svc.GenerateEmbedding(ctx, "erin")
			So(errors.Is(err, model.ErrDependencyUnavailable), ShouldBeTrue)
		})

		Convey("An empty username is rejected", func() {
			_, err := h.svc.GenerateEmbedding(ctx, "   ")
			So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
		})
	})

	Convey("Given a provider slower than the embedding timeout", t, func() {
		h := newHarness(service.WithEmbeddingTimeout(30 * time.Millisecond))
		defer h.close()
		h.provider.delay = 500 * time.Millisecond

		_, err := h.svc.GenerateEmbedding(context.Background(), "alice")
		So(errors.Is(err, model.ErrDependencyTimeout), ShouldBeTrue)
	})
}

func TestService_GetMatches(t *testing.T) {
	Convey("Given three embedded users", t, func() {
		h := newHarness()
		defer h.close()
		ctx := context.Background()
		for _, u := range []string{"alice", "bob", "carol"} {
			_, err := h.svc.GenerateEmbedding(ctx, u)
			So(err, ShouldBeNil)
		}

		Convey("Matches exclude the requester and are ranked", func() {
			m, err := h.svc.GetMatches(ctx, "alice", 10, "")
			So(err, ShouldBeNil)
			So(m.Degenerate, ShouldBeFalse)
			So(m.Candidates, ShouldHaveLength, 2)
			for _, c := range m.Candidates {
				So(c.Username, ShouldNotEqual, "alice")
				So(c.CompatibilityScore, ShouldBeBetweenOrEqual, 0, 100)
			}
			So(m.Candidates[0].CompatibilityScore, ShouldBeGreaterThanOrEqualTo, m.Candidates[1].CompatibilityScore)

			var bob model.MatchCandidate
			for _, c := range m.Candidates {
				if c.Username == "bob" {
					bob = c
				}
			}
			So(bob.SharedArtists, ShouldResemble, []string{"Radiohead"})
			So(bob.SharedGenres, ShouldResemble, []string{"rock"})
			So(bob.DiscoverArtists, ShouldResemble, []string{"The Beatles"})
		})

		Convey("The limit truncates the list", func() {
			m, err := h.svc.GetMatches(ctx, "alice", 1, "")
			So(err, ShouldBeNil)
			So(m.Candidates, ShouldHaveLength, 1)
		})

		Convey("A filter narrows the candidates", func() {
			m, err := h.svc.GetMatches(ctx, "alice", 10, `candidate.country == "NG"`)
			So(err, ShouldBeNil)
			So(m.Candidates, ShouldHaveLength, 1)
			So(m.Candidates[0].Username, ShouldEqual, "carol")
		})

		Convey("Bad arguments are rejected", func() {
			_, err := h.svc.GetMatches(ctx, "alice", 0, "")
			So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			_, err = h.svc.GetMatches(ctx, "alice", service.MaxMatchLimit+1, "")
			So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			_, err = h.svc.GetMatches(ctx, "alice", 10, "candidate.country ==")
			So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(err, matching.ErrInvalidFilter), ShouldBeTrue)
		})

		Convey("A user without an embedding is not found", func() {
			_, err := h.svc.GetMatches(ctx, "zed", 10, "")
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Match stats summarise the list", func() {
			st, err := h.svc.MatchStats(ctx, "alice", 10)
			So(err, ShouldBeNil)
			So(st.Count, ShouldEqual, 2)
			So(st.RealMatches, ShouldEqual, 2)
			So(st.SyntheticMatches, ShouldEqual, 0)
			So(st.TopSharedArtists, ShouldResemble, []string{"Radiohead"})
		})
	})
}

func TestService_SeedColdStart(t *testing.T) {
	Convey("Given an empty vector index", t, func() {
		h := newHarness()
		defer h.close()
		ctx := context.Background()

		Convey("Seeding adds ghosts and reports them", func() {
			rep, err := h.svc.SeedColdStart(ctx, service.SeedRequest{Count: 20})
			So(err, ShouldBeNil)
			So(rep.Requested, ShouldEqual, 20)
			So(rep.Created+rep.Skipped, ShouldEqual, 20)
			So(rep.Planned[model.SegmentMainstream], ShouldEqual, 8)

			counts, err := h.svc.GhostCounts(ctx)
			So(err, ShouldBeNil)
			So(counts.Synthetic, ShouldEqual, rep.Created)
			So(counts.Real, ShouldEqual, 0)

			Convey("Seeding again adds more", func() {
				again, err := h.svc.SeedColdStart(ctx, service.SeedRequest{Count: 20})
				So(err, ShouldBeNil)
				counts, _ := h.svc.GhostCounts(ctx)
				So(counts.Synthetic, ShouldEqual, rep.Created+again.Created)
			})

			Convey("Force replaces the existing ghosts", func() {
				again, err := h.svc.SeedColdStart(ctx, service.SeedRequest{Count: 20, Force: true})
				So(err, ShouldBeNil)
				So(again.Deleted, ShouldEqual, rep.Created)
				counts, _ := h.svc.GhostCounts(ctx)
				So(counts.Synthetic, ShouldEqual, again.Created)
			})

			Convey("Cleaning duplicates leaves a consistent index untouched", func() {
				_, err := h.svc.GenerateEmbedding(ctx, "alice")
				So(err, ShouldBeNil)
				before, _ := h.svc.GhostCounts(ctx)
				n, err := h.svc.DeleteDuplicates(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
				after, _ := h.svc.GhostCounts(ctx)
				So(after, ShouldResemble, before)
			})

			Convey("Deleting ghosts leaves real users", func() {
				_, err := h.svc.GenerateEmbedding(ctx, "alice")
				So(err, ShouldBeNil)
				n, err := h.svc.DeleteGhosts(ctx)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, rep.Created)
				counts, _ := h.svc.GhostCounts(ctx)
				So(counts.Synthetic, ShouldEqual, 0)
				So(counts.Real, ShouldEqual, 1)
			})
		})

		Convey("A zero count uses the configured default", func() {
			h2 := newHarness(service.WithDefaultSeedCount(5))
			defer h2.close()
			rep, err := h2.svc.SeedColdStart(ctx, service.SeedRequest{})
			So(err, ShouldBeNil)
			So(rep.Requested, ShouldEqual, 5)
		})

		Convey("Invalid requests are rejected", func() {
			_, err := h.svc.SeedColdStart(ctx, service.SeedRequest{Count: -1})
			So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			_, err = h.svc.SeedColdStart(ctx, service.SeedRequest{Count: 10, Mix: seeding.Mix{model.SegmentNiche: -1}})
			So(errors.Is(err, model.ErrInvalidArgument), ShouldBeTrue)
			So(errors.Is(err, seeding.ErrInvalidMix), ShouldBeTrue)
		})
	})
}
