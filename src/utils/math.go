package utils

import (
	"math"
	"sort"
)

func Average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0.0
	}

	total := 0.0
	for _, v := range xs {
		total += v
	}
	return total / float64(len(xs))
}

// StandardDeviation returns the population standard deviation (divide by
// N, not N-1) of xs around its mean.
func StandardDeviation(xs []float64) float64 {
	if len(xs) == 0 {
		return 0.0
	}

	mean := Average(xs)
	var varianceSum float64

	for _, v := range xs {
		varianceSum += math.Pow(v-mean, 2)
	}

	variance := varianceSum / float64(len(xs))
	return math.Sqrt(variance)
}

// Median returns the lower median: the element at index (n-1)/2 of the
// sorted values. Even-length inputs take the lower of the two middle
// elements, never the interpolated midpoint.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0.0
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	return sorted[(len(sorted)-1)/2]
}

func Max(xs []float64) float64 {
	if len(xs) == 0 {
		return 0.0
	}

	max := xs[0]
	for _, v := range xs[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
