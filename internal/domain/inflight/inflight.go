// Package inflight tracks which usernames have a regeneration running so
// that at most one runs per username at a time.
package inflight

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/okian/tastebud/pkg/metrics"
)

// ErrFull is returned when the tracker already holds its maximum.
var ErrFull = errors.New("too many regenerations in flight")

// Tracker records in-flight keys.
type Tracker interface {
	// Acquire atomically marks key in flight. Returns false if it already
	// was; the caller must then not start a second run.
	Acquire(ctx context.Context, key string) (bool, error)

	// Release clears key once its run has finished or was abandoned.
	Release(ctx context.Context, key string)

	// Size returns the number of keys in flight.
	Size() int64

	// Keys lists the keys in flight in ascending order.
	Keys() []string
}

type memoryTracker struct {
	mu      sync.Mutex
	keys    map[string]struct{}
	maxSize int // 0 or negative = unbounded
	size    atomic.Int64
}

// NewTracker creates an in-memory Tracker.
func NewTracker(opts ...Option) Tracker {
	t := &memoryTracker{maxSize: 10000}
	for _, opt := range opts {
		opt(t)
	}
	t.keys = make(map[string]struct{})
	return t
}

func (t *memoryTracker) Acquire(ctx context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[key]; ok {
		return false, nil
	}
	if t.maxSize > 0 && len(t.keys) >= t.maxSize {
		return false, ErrFull
	}
	t.keys[key] = struct{}{}
	metrics.UpdateInFlightRegenerations(int(t.size.Add(1)))
	return true, nil
}

func (t *memoryTracker) Release(ctx context.Context, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.keys[key]; ok {
		delete(t.keys, key)
		metrics.UpdateInFlightRegenerations(int(t.size.Add(-1)))
	}
}

func (t *memoryTracker) Size() int64 {
	return t.size.Load()
}

func (t *memoryTracker) Keys() []string {
	t.mu.Lock()
	out := make([]string, 0, len(t.keys))
	for k := range t.keys {
		out = append(out, k)
	}
	t.mu.Unlock()
	sort.Strings(out)
	return out
}
