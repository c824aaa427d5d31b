package cache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tastebud/internal/domain/cache"
	"github.com/okian/tastebud/internal/domain/model"
)

func item(name string) (model.ItemKey, model.ResolvedItem) {
	k := model.ArtistKey(name)
	return k, model.ResolvedItem{Key: k, MatchedKey: k, Vector: model.Vector{1, 0}, Tier: model.TierExact}
}

func TestLRU(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new cache", t, func() {
		Convey("When created with defaults", func() {
			c, err := cache.New()

			Convey("Then it holds the default capacity", func() {
				So(err, ShouldBeNil)
				So(c.Stats().Capacity, ShouldEqual, cache.DefaultCapacity)
				So(c.Len(), ShouldEqual, 0)
			})
		})

		Convey("When created with a non-positive capacity", func() {
			_, err := cache.New(cache.WithCapacity(0))
			So(errors.Is(err, cache.ErrInvalidCapacity), ShouldBeTrue)
		})

		Convey("When storing and reading an item", func() {
			c, _ := cache.New(cache.WithCapacity(4))
			k, v := item("a")
			c.Put(ctx, k, v)
			got, ok := c.Get(ctx, k)

			Convey("Then the same resolution comes back with its tier", func() {
				So(ok, ShouldBeTrue)
				So(got.Tier, ShouldEqual, model.TierExact)
				So(c.Stats().Hits, ShouldEqual, 1)
			})
		})

		Convey("When storing a miss", func() {
			c, _ := cache.New(cache.WithCapacity(4))
			k := model.ArtistKey("nobody")
			c.Put(ctx, k, model.ResolvedItem{Key: k, Tier: model.TierMiss})
			_, ok := c.Get(ctx, k)

			Convey("Then it is not cached", func() {
				So(ok, ShouldBeFalse)
				So(c.Stats().Misses, ShouldEqual, 1)
			})
		})

		Convey("When capacity is exceeded", func() {
			c, _ := cache.New(cache.WithCapacity(3))
			for _, n := range []string{"a", "b", "c"} {
				k, v := item(n)
				c.Put(ctx, k, v)
			}
			// touch "a" so "b" becomes least recently used
			ka, _ := item("a")
			_, _ = c.Get(ctx, ka)
			kd, vd := item("d")
			c.Put(ctx, kd, vd)

			Convey("Then the least recently accessed key is evicted, not the oldest inserted", func() {
				kb, _ := item("b")
				_, okB := c.Get(ctx, kb)
				_, okA := c.Get(ctx, ka)
				So(okB, ShouldBeFalse)
				So(okA, ShouldBeTrue)
				So(c.Len(), ShouldEqual, 3)
				So(c.Stats().Evictions, ShouldEqual, 1)
			})
		})

		Convey("When keys are listed", func() {
			c, _ := cache.New(cache.WithCapacity(3))
			for _, n := range []string{"a", "b"} {
				k, v := item(n)
				c.Put(ctx, k, v)
			}
			So(c.Keys(), ShouldResemble, []model.ItemKey{model.ArtistKey("a"), model.ArtistKey("b")})
			c.Purge()
			So(c.Len(), ShouldEqual, 0)
		})
	})
}

func TestLRUConcurrency(t *testing.T) {
	Convey("Given concurrent readers and writers", t, func() {
		ctx := context.Background()
		c, _ := cache.New(cache.WithCapacity(64))

		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 500; i++ {
					k, v := item(fmt.Sprintf("artist-%d", (g*31+i)%100))
					c.Put(ctx, k, v)
					_, _ = c.Get(ctx, k)
				}
			}(g)
		}
		wg.Wait()

		Convey("Then the cache never exceeds its capacity", func() {
			So(c.Len(), ShouldBeLessThanOrEqualTo, 64)
			st := c.Stats()
			So(st.Hits+st.Misses, ShouldEqual, 8*500)
		})
	})
}

func BenchmarkLRUGet(b *testing.B) {
	ctx := context.Background()
	c, _ := cache.New()
	k, v := item("hot")
	c.Put(ctx, k, v)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = c.Get(ctx, k)
	}
}
