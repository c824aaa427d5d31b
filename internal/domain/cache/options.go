package cache

// Option applies a configuration option to the LRU.
type Option func(*LRU)

// WithCapacity sets the maximum number of entries.
func WithCapacity(capacity int) Option {
	return func(c *LRU) {
		c.capacity = capacity
	}
}
