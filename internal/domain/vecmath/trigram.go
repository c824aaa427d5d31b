package vecmath

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// gramSize is the n-gram length used for name similarity.
const gramSize = 3

// pad surrounds s so that short strings and word starts still produce grams.
func pad(s string) string {
	return "  " + s + " "
}

// Trigrams returns the set of rune trigrams of s, padded the same way Dice
// pads its input. The catalog indexes these to find fuzzy candidates.
func Trigrams(s string) map[string]struct{} {
	r := []rune(pad(s))
	out := make(map[string]struct{}, len(r))
	for i := 0; i+gramSize <= len(r); i++ {
		out[string(r[i:i+gramSize])] = struct{}{}
	}
	return out
}

// Dice returns the Sørensen–Dice coefficient over the padded trigrams of a
// and b. Empty input scores 0.
func Dice(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	m := metrics.NewSorensenDice()
	m.CaseSensitive = true
	m.NgramSize = gramSize
	return strutil.Similarity(pad(a), pad(b), m)
}
