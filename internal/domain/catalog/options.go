package catalog

// Option applies a configuration option to a Catalog.
type Option func(*Catalog)

// WithDimension sets the required vector length. Defaults to model.Dimension.
func WithDimension(dim int) Option {
	return func(c *Catalog) {
		if dim > 0 {
			c.dim = dim
		}
	}
}
