package inflight

// Option applies a configuration option to the Tracker.
type Option func(*memoryTracker)

// WithMaxSize caps how many keys may be in flight.
// maxSize <= 0 leaves the tracker unbounded.
func WithMaxSize(maxSize int) Option {
	return func(t *memoryTracker) {
		t.maxSize = maxSize
	}
}
