// Package catalogtest provides deterministic catalog fixtures for tests.
package catalogtest

import (
	"math"

	"github.com/okian/tastebud/internal/domain/catalog"
	"github.com/okian/tastebud/internal/domain/model"
)

// Vector returns a deterministic, non-zero vector for seed.
func Vector(seed int) model.Vector {
	v := make(model.Vector, model.Dimension)
	for i := range v {
		v[i] = math.Sin(float64(seed+1) * float64(i+1) * 0.37)
	}
	return v
}

// Axis returns the unit vector along dimension i.
func Axis(i int) model.Vector {
	v := make(model.Vector, model.Dimension)
	v[i%model.Dimension] = 1
	return v
}

// Track builds a track item.
func Track(artist, track string, seed int, popularity int64) model.ItemEmbedding {
	return model.ItemEmbedding{Key: model.NewItemKey(artist, track), Vector: Vector(seed), Popularity: popularity}
}

// Artist builds an artist-only item.
func Artist(name string, seed int, popularity int64) model.ItemEmbedding {
	return model.ItemEmbedding{Key: model.ArtistKey(name), Vector: Vector(seed), Popularity: popularity}
}

// Items is a small catalog spanning a few artists and tracks.
func Items() []model.ItemEmbedding {
	return []model.ItemEmbedding{
		Artist("Radiohead", 1, 900),
		Track("Radiohead", "Karma Police", 2, 800),
		Track("Radiohead", "Paranoid Android", 3, 700),
		Artist("Aphex Twin", 4, 500),
		Track("Aphex Twin", "Windowlicker", 5, 400),
		Artist("Burna Boy", 6, 600),
		Track("Burna Boy", "Last Last", 7, 650),
		Artist("Pink Floyd", 8, 950),
		Track("Pink Floyd", "Time", 9, 900),
		Artist("Black Midi", 10, 120),
		Artist("Black Country New Road", 11, 140),
		Artist("The Beatles", 12, 1000),
		Track("The Beatles", "Let It Be", 13, 990),
	}
}

// New builds a catalog from Items and panics on error.
func New() *catalog.Catalog {
	c, err := catalog.New(Items())
	if err != nil {
		panic(err)
	}
	return c
}
