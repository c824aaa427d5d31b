package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/tastebud/internal/adapters/mq/queue"
	"github.com/okian/tastebud/internal/adapters/mq/worker"
	logging "github.com/okian/tastebud/pkg/logger"
)

func init() {
	_ = logging.Init()
}

type mockQueue struct {
	jobs chan queue.Job
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 100)}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Job { return mq.jobs }

func (mq *mockQueue) Close() error {
	close(mq.jobs)
	return nil
}

type mockProcessor struct {
	mu     sync.Mutex
	done   []string
	errors map[string]error
	delay  time.Duration
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{errors: make(map[string]error)}
}

func (mp *mockProcessor) Process(ctx context.Context, job queue.Job) error {
	if mp.delay > 0 {
		select {
		case <-time.After(mp.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if err, ok := mp.errors[job.Username]; ok {
		return err
	}
	mp.done = append(mp.done, job.Username)
	return nil
}

func (mp *mockProcessor) processed() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]string(nil), mp.done...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := newMockQueue()
		p := newMockProcessor()
		w := worker.NewInMemoryWorker(q, p, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive", func() {
			q.jobs <- queue.Job{ID: "1", Username: "alice"}
			q.jobs <- queue.Job{ID: "2", Username: "bob"}

			convey.Convey("Then each is processed in order", func() {
				convey.So(waitFor(func() bool { return len(p.processed()) == 2 }), convey.ShouldBeTrue)
				convey.So(p.processed(), convey.ShouldResemble, []string{"alice", "bob"})
			})
		})

		convey.Convey("When a job fails", func() {
			p.mu.Lock()
			p.errors["broken"] = errors.New("provider down")
			p.mu.Unlock()
			q.jobs <- queue.Job{ID: "1", Username: "broken"}
			q.jobs <- queue.Job{ID: "2", Username: "carol"}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return len(p.processed()) == 1 }), convey.ShouldBeTrue)
				convey.So(p.processed(), convey.ShouldResemble, []string{"carol"})
			})
		})

		convey.Convey("When shutting down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given a worker with a short job timeout", t, func() {
		q := newMockQueue()
		p := newMockProcessor()
		p.delay = time.Second
		w := worker.NewInMemoryWorker(q, p, worker.WithJobTimeout(20*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		q.jobs <- queue.Job{Username: "slow"}
		q.jobs <- queue.Job{Username: "also-slow"}

		convey.Convey("Then slow jobs are abandoned", func() {
			start := time.Now()
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(time.Since(start), convey.ShouldBeLessThan, 500*time.Millisecond)
			convey.So(p.processed(), convey.ShouldBeEmpty)
		})
	})

	convey.Convey("When the queue closes the worker stops", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, newMockProcessor())
		finished := make(chan struct{})
		go func() {
			w.Run(context.Background())
			close(finished)
		}()
		_ = q.Close()

		select {
		case <-finished:
		case <-time.After(time.Second):
			t.Fatal("worker did not stop after queue closed")
		}
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		p := newMockProcessor()
		pool := worker.NewPool(4, q, p)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		convey.So(pool.Size(), convey.ShouldEqual, 4)
		pool.Start(ctx)

		convey.Convey("When many jobs are enqueued", func() {
			for i := 0; i < 20; i++ {
				convey.So(q.Enqueue(ctx, queue.Job{Username: fmt.Sprintf("user-%d", i)}), convey.ShouldBeNil)
			}

			convey.Convey("Then all are processed", func() {
				convey.So(waitFor(func() bool { return len(p.processed()) == 20 }), convey.ShouldBeTrue)
				convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("A pool size below one falls back to the CPU count", t, func() {
		pool := worker.NewPool(0, newMockQueue(), newMockProcessor())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		convey.So(pool.Active(), convey.ShouldEqual, 0)
	})
}
