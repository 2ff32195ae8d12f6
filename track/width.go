package track

import (
	"math"

	"github.com/samber/lo"
)

const (
	outsideInsideRatio = 0.4
	minOutsideWidth    = 0.75
	fallbackMinWidth   = 6.0
	targetWidthFactor  = 0.95
)

// EdgeSamples interpolates an edge grid at the fractional grid index of every
// centerline sample.
func EdgeSamples(edge ProgressGrid, frames []CenterlineSample) []Point {
	out := make([]Point, len(frames))
	for i, f := range frames {
		out[i] = edge.At(f.GridIndex)
	}
	return out
}

// RawHalfWidths projects the edge samples onto the centerline normals. Left
// widths are the signed distance along the left normal, right widths along
// the opposite direction.
func RawHalfWidths(frames []CenterlineSample, left, right []Point) (WidthProfile, error) {
	n := len(frames)
	if len(left) != n {
		return WidthProfile{}, &DataError{Op: "raw half-widths", Role: RoleLeft, Got: len(left), Want: n, Err: ErrGridMismatch}
	}
	if len(right) != n {
		return WidthProfile{}, &DataError{Op: "raw half-widths", Role: RoleRight, Got: len(right), Want: n, Err: ErrGridMismatch}
	}
	w := WidthProfile{Left: make([]float64, n), Right: make([]float64, n)}
	for i, f := range frames {
		w.Left[i] = left[i].Sub(f.Position).Dot(f.Normal)
		w.Right[i] = -right[i].Sub(f.Position).Dot(f.Normal)
	}
	return w, nil
}

// TargetWidth is the median of the finite, positive total widths
func TargetWidth(w WidthProfile) float64 {
	totals := make([]float64, 0, w.Len())
	for i := range w.Left {
		t := w.Left[i] + w.Right[i]
		if isFinite(t) && t > 0 {
			totals = append(totals, t)
		}
	}
	return median(totals)
}

// InsideSides returns the inside side of every sample from the sign of its
// turning angle. Straight samples keep the previous side.
func InsideSides(frames []CenterlineSample) []Role {
	n := len(frames)
	sides := make([]Role, n)
	current := RoleLeft
	for i := n - 1; i >= 0; i-- {
		if a := frames[i].Angle; a != 0 && isFinite(a) {
			current = lo.Ternary(a > 0, RoleLeft, RoleRight)
			break
		}
	}
	for i, f := range frames {
		if f.Angle != 0 && isFinite(f.Angle) {
			current = lo.Ternary(f.Angle > 0, RoleLeft, RoleRight)
		}
		sides[i] = current
	}
	return sides
}

// ConstantWidthEnvelope keeps the measured width on the inside of every turn
// and derives the outside from the desired total, so the track keeps a
// constant width through corners. minWidth <= 0 selects the target width, or
// 6 m when no target could be measured.
func ConstantWidthEnvelope(frames []CenterlineSample, raw WidthProfile, target, minWidth float64) WidthProfile {
	if minWidth <= 0 {
		minWidth = target
		if target <= 0 {
			minWidth = fallbackMinWidth
		}
	}
	desired := math.Max(minWidth, target*targetWidthFactor)

	out := WidthProfile{Left: make([]float64, raw.Len()), Right: make([]float64, raw.Len())}
	for i, side := range InsideSides(frames) {
		if side == RoleLeft {
			out.Left[i] = raw.Left[i]
			out.Right[i] = outsideWidth(raw.Left[i], desired)
		} else {
			out.Right[i] = raw.Right[i]
			out.Left[i] = outsideWidth(raw.Right[i], desired)
		}
	}
	return out
}

func outsideWidth(inside, desired float64) float64 {
	w := math.Max(inside*outsideInsideRatio, desired-inside)
	return math.Max(w, minOutsideWidth)
}

// ClampHalfWidths limits every half-width to [minHalf, maxHalf] and reports
// how many values changed.
func ClampHalfWidths(w WidthProfile, minHalf, maxHalf float64) (WidthProfile, int) {
	out := w.Clone()
	changed := 0
	for _, side := range [][]float64{out.Left, out.Right} {
		for i, v := range side {
			c := clamp(v, minHalf, maxHalf)
			if c != v || math.IsNaN(v) {
				changed++
			}
			if math.IsNaN(v) {
				c = minHalf
			}
			side[i] = c
		}
	}
	return out, changed
}
