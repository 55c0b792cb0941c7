// Package stats provides the descriptive statistics shared by the track and
// profile packages. The quantile uses linear interpolation between closest
// ranks so that median/IQR values line up with the conventions of the
// numerical tooling this analysis is compared against. An empty sample has no
// defined statistic, so these helpers return NaN rather than zero; callers
// rely on that to distinguish "no data" from a genuine zero.
package stats

import (
	"math"
	"sort"
)

// Defined returns a new slice holding the values with NaN entries removed.
func Defined(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Median returns the middle value of values, averaging the two central values
// when the count is even. Returns NaN for an empty slice. Values must not
// contain NaN; use Defined to strip undefined entries first.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}

	// Copy so the caller's ordering is untouched.
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// Quantile returns the q-th quantile (0 <= q <= 1) of values using linear
// interpolation between closest ranks. Returns NaN for an empty slice.
// Values must not contain NaN; use Defined to strip undefined entries first.
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	if q < 0 {
		q = 0
	}
	if q > 1 {
		q = 1
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// IQR returns the interquartile range (Q3 - Q1) of values. Returns NaN for an
// empty slice.
func IQR(values []float64) float64 {
	return Quantile(values, 0.75) - Quantile(values, 0.25)
}
