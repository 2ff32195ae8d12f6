package track

import (
	"math"
	"slices"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// finiteValues drops NaN and infinite entries
func finiteValues(values []float64) []float64 {
	return lo.Filter(values, func(v float64, _ int) bool { return isFinite(v) })
}

// median returns the middle of the finite values, averaging the two central
// values for even counts. Zero when nothing is finite.
func median(values []float64) float64 {
	vals := finiteValues(values)
	if len(vals) == 0 {
		return 0
	}
	slices.Sort(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

func mean(values []float64) float64 {
	vals := finiteValues(values)
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}

func clamp(v, lower, upper float64) float64 {
	return math.Max(lower, math.Min(upper, v))
}
