package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/okian/tastebud/internal/domain/model"
)

// Catalog source drivers.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
)

// record is the on-disk form of one item.
type record struct {
	Artist     string    `json:"artist"`
	Track      string    `json:"track,omitempty"`
	Popularity int64     `json:"popularity,omitempty"`
	Vector     []float64 `json:"vector"`
}

// document is the JSON catalog file layout.
type document struct {
	Dimension int      `json:"dimension"`
	Items     []record `json:"items"`
}

func (r record) item() model.ItemEmbedding {
	return model.ItemEmbedding{
		Key:        model.ItemKey{Artist: r.Artist, Track: r.Track},
		Vector:     model.Vector(r.Vector),
		Popularity: r.Popularity,
	}
}

// Load builds a catalog from the given driver and location.
func Load(ctx context.Context, driver, path string, opts ...Option) (*Catalog, error) {
	switch driver {
	case "", DriverJSON:
		return LoadJSON(path, opts...)
	case DriverSQLite:
		return LoadSQLite(ctx, path, opts...)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// LoadJSON reads a catalog file.
func LoadJSON(path string, opts ...Option) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer func() { _ = f.Close() }()
	return ReadJSON(f, opts...)
}

// ReadJSON decodes a catalog document from r. A dimension declared in the
// document overrides the default but not an explicit WithDimension option.
func ReadJSON(r io.Reader, opts ...Option) (*Catalog, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrLoad, err)
	}
	items := make([]model.ItemEmbedding, len(doc.Items))
	for i, rec := range doc.Items {
		items[i] = rec.item()
	}
	if doc.Dimension > 0 {
		opts = append([]Option{WithDimension(doc.Dimension)}, opts...)
	}
	return New(items, opts...)
}

// WriteJSON encodes items in the catalog file layout.
func WriteJSON(w io.Writer, dim int, items []model.ItemEmbedding) error {
	doc := document{Dimension: dim, Items: make([]record, len(items))}
	for i, it := range items {
		doc.Items[i] = record{Artist: it.Key.Artist, Track: it.Key.Track, Popularity: it.Popularity, Vector: it.Vector}
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return nil
}
