package track

import (
	"math"

	"github.com/samber/lo"
)

const (
	minClampScale = 0.1
	maxClampScale = 1.0
)

// GuardrailParams configures the final clamp against the recorded laps
type GuardrailParams struct {
	ClampScale float64
	// Tolerance is the overshoot, in meters, a clamp must exceed to count as
	// an overshoot in the report.
	Tolerance float64
}

// GuardrailReport lists the samples whose width was pulled back inside the
// recorded envelope. Overshoots count the clamps that moved a width by more
// than the tolerance.
type GuardrailReport struct {
	ClampScale      float64 `json:"clampScale"`
	LeftCount       int     `json:"leftCount"`
	RightCount      int     `json:"rightCount"`
	LeftIndices     []int   `json:"leftIndices"`
	RightIndices    []int   `json:"rightIndices"`
	LeftOvershoots  int     `json:"leftOvershoots"`
	RightOvershoots int     `json:"rightOvershoots"`
}

// NormalizeClampScale folds a clamp scale into [0.1, 1]. Non-finite values
// fall back to 1.
func NormalizeClampScale(s float64) float64 {
	if !isFinite(s) {
		return maxClampScale
	}
	return clamp(s, minClampScale, maxClampScale)
}

// GuardrailLimit is the furthest any recorded lap reaches from the sample
// along the given side's normal direction. Each lap contributes its point at
// the sample's fractional grid index and the two bracketing grid points.
func GuardrailLimit(f CenterlineSample, laps []ProgressGrid, side Role) float64 {
	sign := lo.Ternary(side == RoleRight, -1.0, 1.0)
	limit := math.Inf(-1)
	for _, lap := range laps {
		if len(lap) == 0 {
			continue
		}
		c := NewCyclic(len(lap))
		base := int(math.Floor(f.GridIndex))
		for _, p := range []Point{lap.At(f.GridIndex), lap[c.Index(base)].Pos(), lap[c.Index(base+1)].Pos()} {
			limit = math.Max(limit, sign*p.Sub(f.Position).Dot(f.Normal))
		}
	}
	return limit
}

// EnforceWidthConstraints clamps every half-width to the scaled guardrail
// limit of its side and records the clamped index. A side without recorded
// laps is left unchanged.
func EnforceWidthConstraints(frames []CenterlineSample, w WidthProfile, leftLaps, rightLaps []ProgressGrid, p GuardrailParams) (WidthProfile, GuardrailReport) {
	scale := NormalizeClampScale(p.ClampScale)
	out := w.Clone()
	report := GuardrailReport{ClampScale: scale}

	enforce := func(values []float64, laps []ProgressGrid, side Role) (clamped []int, overshoots int) {
		if len(laps) == 0 {
			return nil, 0
		}
		for i, f := range frames {
			limit := math.Max(0, GuardrailLimit(f, laps, side)*scale)
			if values[i] <= limit {
				continue
			}
			if values[i]-limit > p.Tolerance {
				overshoots++
			}
			clamped = append(clamped, i)
			values[i] = limit
		}
		return clamped, overshoots
	}
	report.LeftIndices, report.LeftOvershoots = enforce(out.Left, leftLaps, RoleLeft)
	report.RightIndices, report.RightOvershoots = enforce(out.Right, rightLaps, RoleRight)
	report.LeftCount, report.RightCount = len(report.LeftIndices), len(report.RightIndices)
	return out, report
}
