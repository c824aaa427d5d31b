package inflight_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/tastebud/internal/domain/inflight"
)

func TestTracker(t *testing.T) {
	Convey("Given a new tracker", t, func() {
		ctx := context.Background()
		tr := inflight.NewTracker()

		Convey("Then it starts empty", func() {
			So(tr.Size(), ShouldEqual, 0)
			So(tr.Keys(), ShouldBeEmpty)
		})

		Convey("When a key is acquired twice", func() {
			first, err := tr.Acquire(ctx, "alice")
			So(err, ShouldBeNil)
			second, err := tr.Acquire(ctx, "alice")
			So(err, ShouldBeNil)

			Convey("Then only the first acquisition wins", func() {
				So(first, ShouldBeTrue)
				So(second, ShouldBeFalse)
				So(tr.Size(), ShouldEqual, 1)
			})

			Convey("And after release it can be acquired again", func() {
				tr.Release(ctx, "alice")
				So(tr.Size(), ShouldEqual, 0)
				again, err := tr.Acquire(ctx, "alice")
				So(err, ShouldBeNil)
				So(again, ShouldBeTrue)
			})
		})

		Convey("Releasing an unknown key is a no-op", func() {
			tr.Release(ctx, "ghost")
			So(tr.Size(), ShouldEqual, 0)
		})

		Convey("Keys are listed in order", func() {
			for _, k := range []string{"carol", "alice", "bob"} {
				_, _ = tr.Acquire(ctx, k)
			}
			So(tr.Keys(), ShouldResemble, []string{"alice", "bob", "carol"})
		})
	})

	Convey("Given a bounded tracker", t, func() {
		ctx := context.Background()
		tr := inflight.NewTracker(inflight.WithMaxSize(2))
		_, _ = tr.Acquire(ctx, "a")
		_, _ = tr.Acquire(ctx, "b")

		Convey("Then a third key is refused", func() {
			ok, err := tr.Acquire(ctx, "c")
			So(ok, ShouldBeFalse)
			So(errors.Is(err, inflight.ErrFull), ShouldBeTrue)
		})

		Convey("But a key already held still reports in flight", func() {
			ok, err := tr.Acquire(ctx, "a")
			So(ok, ShouldBeFalse)
			So(err, ShouldBeNil)
		})
	})

	Convey("Concurrent acquisitions of one key admit exactly one", t, func() {
		ctx := context.Background()
		tr := inflight.NewTracker(inflight.WithMaxSize(0))
		var wins atomic.Int64
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if ok, _ := tr.Acquire(ctx, "same"); ok {
					wins.Add(1)
				}
				_, _ = tr.Acquire(ctx, fmt.Sprintf("user-%d", i))
			}()
		}
		wg.Wait()
		So(wins.Load(), ShouldEqual, 1)
		So(tr.Size(), ShouldEqual, 51)
	})
}
