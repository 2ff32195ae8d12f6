package track

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/samber/lo"
)

const (
	// DefaultTargetSpacing is the grid spacing in meters when no sample count is given
	DefaultTargetSpacing = 0.5
	// MinGridSize is the smallest grid generated from a target spacing
	MinGridSize = 200

	headingAlignThreshold = 1e-4
)

// NormalizeToProgress maps cumulative distances onto [0, 1]. A zero span
// yields all zeros.
func NormalizeToProgress(distances []float64) []float64 {
	out := make([]float64, len(distances))
	if len(distances) == 0 {
		return out
	}
	start := distances[0]
	span := distances[len(distances)-1] - start
	if span == 0 || !isFinite(span) {
		return out
	}
	for i, d := range distances {
		out[i] = (d - start) / span
	}
	return out
}

// prepareSamples drops non-finite readings, orders by distance and closes a
// lap whose ends nearly meet.
func prepareSamples(tr Trace) ([]Sample, error) {
	samples := lo.Filter(tr.Samples, func(s Sample, _ int) bool {
		return s.Usable()
	})
	if len(samples) < 2 {
		return nil, &DataError{
			Op:     "resample trace",
			Role:   tr.Role,
			Source: tr.Source,
			Got:    len(samples),
			Want:   2,
			Err:    ErrInsufficientSamples,
		}
	}
	slices.SortStableFunc(samples, func(a, b Sample) int {
		return cmp.Compare(a.Distance, b.Distance)
	})
	return closeLoop(samples), nil
}

// closeLoop appends the first sample at the closing distance when the last
// sample lies within two median steps of the first.
func closeLoop(samples []Sample) []Sample {
	n := len(samples)
	if n < 3 {
		return samples
	}
	steps := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		steps = append(steps, samples[i].Distance-samples[i-1].Distance)
	}
	step := median(steps)
	first, last := samples[0], samples[n-1]
	gap := math.Hypot(first.X-last.X, first.Y-last.Y)
	if gap == 0 || step <= 0 || gap > 2*step {
		return samples
	}
	return append(samples, Sample{Distance: last.Distance + gap, X: first.X, Y: first.Y})
}

// lapLength returns the distance span of a prepared trace, or 0 if unusable
func lapLength(tr Trace) float64 {
	samples, err := prepareSamples(tr)
	if err != nil {
		return 0
	}
	return samples[len(samples)-1].Distance - samples[0].Distance
}

// GridSizeFor derives the grid size from the mean lap length and a target
// spacing, never below MinGridSize.
func GridSizeFor(traces []Trace, spacing float64) int {
	if spacing <= 0 {
		spacing = DefaultTargetSpacing
	}
	lengths := lo.FilterMap(traces, func(tr Trace, _ int) (float64, bool) {
		l := lapLength(tr)
		return l, l > 0
	})
	if len(lengths) == 0 {
		return MinGridSize
	}
	n := int(math.Floor(mean(lengths) / spacing))
	return max(n, MinGridSize)
}

// ResampleTrace interpolates a trace onto n points at progress i/n.
func ResampleTrace(tr Trace, n int) (ProgressGrid, error) {
	if n < 3 {
		return nil, &DataError{Op: "resample trace", Role: tr.Role, Source: tr.Source, Got: n, Want: 3, Err: ErrInsufficientSamples}
	}
	samples, err := prepareSamples(tr)
	if err != nil {
		return nil, err
	}
	distances := lo.Map(samples, func(s Sample, _ int) float64 { return s.Distance })
	progress := NormalizeToProgress(distances)

	grid := make(ProgressGrid, n)
	for i := range grid {
		t := float64(i) / float64(n)
		p := interpolateAt(progress, samples, t)
		grid[i] = GridPoint{Progress: t, X: p.X, Y: p.Y}
	}
	return grid, nil
}

// interpolateAt finds the bracketing samples by binary search and blends them
// linearly. Targets outside the recorded range take the boundary sample.
func interpolateAt(progress []float64, samples []Sample, t float64) Point {
	last := len(progress) - 1
	if t <= progress[0] {
		return Point{X: samples[0].X, Y: samples[0].Y}
	}
	if t >= progress[last] {
		return Point{X: samples[last].X, Y: samples[last].Y}
	}
	hi := sort.SearchFloat64s(progress, t)
	if hi == 0 {
		hi = 1
	}
	a, b := samples[hi-1], samples[hi]
	f := 0.0
	if span := progress[hi] - progress[hi-1]; span > 0 {
		f = (t - progress[hi-1]) / span
	}
	return Point{X: a.X + f*(b.X-a.X), Y: a.Y + f*(b.Y-a.Y)}
}

// Headings returns the circular finite-difference heading at every grid point
func Headings(grid ProgressGrid) []float64 {
	c := NewCyclic(len(grid))
	out := make([]float64, len(grid))
	for i := range grid {
		prev := grid[c.Prev(i)]
		next := grid[c.Next(i)]
		out[i] = math.Atan2(next.Y-prev.Y, next.X-prev.X)
	}
	return out
}

// AlignHeading rotates lap about its own centroid so its headings match the
// reference. The offset is the median of the wrapped per-sample heading
// differences; offsets up to 1e-4 rad leave the lap untouched.
func AlignHeading(reference, lap ProgressGrid) (ProgressGrid, float64, error) {
	if len(reference) != len(lap) {
		return nil, 0, &DataError{Op: "align heading", Got: len(lap), Want: len(reference), Err: ErrGridMismatch}
	}
	ref := Headings(reference)
	cur := Headings(lap)
	deltas := make([]float64, len(lap))
	for i := range deltas {
		deltas[i] = WrapAngle(cur[i] - ref[i])
	}
	offset := median(deltas)

	aligned := slices.Clone(lap)
	if math.Abs(offset) <= headingAlignThreshold {
		return aligned, offset, nil
	}
	m := RotationAbout(Centroid(lap.Points()), -offset)
	for i, g := range lap {
		p := TransformPoint(g.Pos(), m)
		aligned[i] = GridPoint{Progress: g.Progress, X: p.X, Y: p.Y}
	}
	return aligned, offset, nil
}

// AverageGrids averages equally sized grids point by point
func AverageGrids(grids []ProgressGrid) (ProgressGrid, error) {
	if len(grids) == 0 {
		return nil, &DataError{Op: "average grids", Want: 1, Err: ErrInsufficientSamples}
	}
	n := len(grids[0])
	out := make(ProgressGrid, n)
	for gi, g := range grids {
		if len(g) != n {
			return nil, &DataError{Op: fmt.Sprintf("average grids (lap %d)", gi), Got: len(g), Want: n, Err: ErrGridMismatch}
		}
	}
	k := float64(len(grids))
	for i := range out {
		var sx, sy float64
		for _, g := range grids {
			sx += g[i].X
			sy += g[i].Y
		}
		out[i] = GridPoint{Progress: grids[0][i].Progress, X: sx / k, Y: sy / k}
	}
	return out, nil
}

// RoleGrids holds the per-role grids of one run.
type RoleGrids struct {
	Size     int
	Averaged map[Role]ProgressGrid
	// Laps keeps every resampled lap before alignment; the guardrail measures against these.
	Laps    map[Role][]ProgressGrid
	Offsets map[Role][]float64
	Sources map[Role][]string
}

// Has reports whether any lap was recorded for role
func (rg *RoleGrids) Has(role Role) bool {
	_, ok := rg.Averaged[role]
	return ok
}

// BuildRoleGrids resamples every trace to n points, aligns the extra laps of
// each role against that role's first lap and averages them.
func BuildRoleGrids(traces []Trace, n int) (*RoleGrids, error) {
	rg := &RoleGrids{
		Size:     n,
		Averaged: make(map[Role]ProgressGrid),
		Laps:     make(map[Role][]ProgressGrid),
		Offsets:  make(map[Role][]float64),
		Sources:  make(map[Role][]string),
	}
	for _, tr := range traces {
		if !tr.Role.Valid() {
			return nil, &DataError{Op: "group laps", Source: tr.Source, Err: fmt.Errorf("unknown role %q", tr.Role)}
		}
	}
	groups := lo.GroupBy(traces, func(tr Trace) Role { return tr.Role })
	for _, role := range Roles {
		laps := groups[role]
		if len(laps) == 0 {
			continue
		}
		raw := make([]ProgressGrid, 0, len(laps))
		for _, tr := range laps {
			grid, err := ResampleTrace(tr, n)
			if err != nil {
				return nil, err
			}
			raw = append(raw, grid)
			rg.Sources[role] = append(rg.Sources[role], tr.Source)
		}

		aligned := []ProgressGrid{raw[0]}
		offsets := []float64{0}
		for _, lap := range raw[1:] {
			a, off, err := AlignHeading(raw[0], lap)
			if err != nil {
				return nil, err
			}
			aligned = append(aligned, a)
			offsets = append(offsets, off)
		}
		avg, err := AverageGrids(aligned)
		if err != nil {
			return nil, err
		}
		rg.Averaged[role] = avg
		rg.Laps[role] = raw
		rg.Offsets[role] = offsets
	}
	return rg, nil
}
