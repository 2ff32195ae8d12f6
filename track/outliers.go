package track

import (
	"math"
	"slices"
)

// OutlierLimits bounds plausible widths
type OutlierLimits struct {
	MinWidth float64 // total width
	MaxWidth float64 // total width
	MaxDelta float64 // per-sample change of a half-width
}

// SideStats summarizes one half-width array
type SideStats struct {
	Avg float64 `json:"avg"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// OutlierReport lists suspicious samples. Detection never changes the widths.
type OutlierReport struct {
	Indices  []int     `json:"indices"`
	Negative int       `json:"negative"`
	Total    int       `json:"total"`
	Delta    int       `json:"delta"`
	Left     SideStats `json:"left"`
	Right    SideStats `json:"right"`
}

// Count returns the number of flagged samples
func (r OutlierReport) Count() int { return len(r.Indices) }

// DetectWidthOutliers flags samples with a negative half-width, a total width
// outside [MinWidth, MaxWidth] or a jump larger than MaxDelta from the
// previous sample on either side.
func DetectWidthOutliers(w WidthProfile, limits OutlierLimits) OutlierReport {
	n := w.Len()
	report := OutlierReport{
		Left:  sideStats(w.Left),
		Right: sideStats(w.Right),
	}
	if n == 0 {
		return report
	}
	c := NewCyclic(n)
	for i := 0; i < n; i++ {
		l, r := w.Left[i], w.Right[i]
		flagged := false
		if l < 0 || r < 0 {
			report.Negative++
			flagged = true
		}
		if total := l + r; total < limits.MinWidth || total > limits.MaxWidth {
			report.Total++
			flagged = true
		}
		if n > 1 {
			prev := c.Prev(i)
			if math.Abs(l-w.Left[prev]) > limits.MaxDelta || math.Abs(r-w.Right[prev]) > limits.MaxDelta {
				report.Delta++
				flagged = true
			}
		}
		if flagged {
			report.Indices = append(report.Indices, i)
		}
	}
	return report
}

func sideStats(values []float64) SideStats {
	vals := finiteValues(values)
	if len(vals) == 0 {
		return SideStats{}
	}
	return SideStats{
		Avg: mean(vals),
		Min: slices.Min(vals),
		Max: slices.Max(vals),
	}
}
