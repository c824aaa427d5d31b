package aggregate

import (
	"math"
	"time"
)

// ItemWeight is log1p(playCount) scaled by the window weight and decay.
// Negative play counts count as zero.
func ItemWeight(playCount int, windowWeight, decay float64) float64 {
	if playCount < 0 {
		playCount = 0
	}
	return math.Log1p(float64(playCount)) * windowWeight * decay
}

// Decay halves the weight every halfLifeDays. Future timestamps do not decay.
func Decay(age time.Duration, halfLifeDays float64) float64 {
	if age <= 0 || halfLifeDays <= 0 {
		return 1
	}
	days := age.Hours() / 24
	return math.Pow(0.5, days/halfLifeDays)
}
