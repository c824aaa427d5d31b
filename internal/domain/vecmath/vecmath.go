// Package vecmath holds the vector and string similarity helpers shared by
// the catalog, the aggregator and the in-memory index.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Dot returns the dot product of a and b over their common length.
func Dot(a, b []float64) float64 {
	n := min(len(a), len(b))
	return floats.Dot(a[:n], b[:n])
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero
// or the lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := floats.Dot(a, b) / (na * nb)
	// rounding can push |c| slightly past 1
	return math.Max(-1, math.Min(1, c))
}

// Normalize returns v scaled to unit length. ok is false for a zero vector,
// in which case a zero vector of the same length is returned.
func Normalize(v []float64) (out []float64, ok bool) {
	out = make([]float64, len(v))
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return out, false
	}
	copy(out, v)
	floats.Scale(1/n, out)
	return out, true
}

// AddScaled adds w*v into acc in place over their common length.
func AddScaled(acc, v []float64, w float64) {
	n := min(len(acc), len(v))
	floats.AddScaled(acc[:n], w, v[:n])
}

// Scale multiplies v by s in place.
func Scale(v []float64, s float64) {
	floats.Scale(s, v)
}
