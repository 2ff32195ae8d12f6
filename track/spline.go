package track

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// SplineParams configures the spline builder. Distances are in meters.
type SplineParams struct {
	SampleCount        int
	PointTarget        int
	Tension            float64
	Spacing            float64
	StraightSpacing    float64
	HysteresisDistance float64
	ApexMergeDistance  float64
	ScoreTolerance     float64 // fraction of the largest curvature score
	// SmoothScore smooths the curvature score over the merge distance and
	// requires apexes to stand out by the score tolerance.
	SmoothScore bool
}

// SplineResult holds the dense closed curves and the selection diagnostics
type SplineResult struct {
	Left      []Point
	Right     []Point
	Center    []Point
	GridIndex []float64 // fractional grid index of every dense sample
	Anchors   map[Role][]int
	Inside    InsideEdge
	Apexes    []int
	Score     []float64
}

// AnchorCounts returns the number of anchors used per role
func (r *SplineResult) AnchorCounts() map[Role]int {
	counts := make(map[Role]int, len(r.Anchors))
	for role, idx := range r.Anchors {
		counts[role] = len(idx)
	}
	return counts
}

// SplineParameter resolves dense sample i of sampleCount to a segment of a
// closed chain of k anchors and the local parameter inside it.
func SplineParameter(i, sampleCount, k int) (int, float64) {
	u := float64(i) / float64(sampleCount) * float64(k)
	seg := math.Floor(u)
	return NewCyclic(k).Index(int(seg)), u - seg
}

// EvaluateClosedSpline fits a closed chain of cubic Bézier segments through
// the anchors and samples it at sampleCount uniform parameter steps across the
// whole chain. Tangents are (next - prev) * tension; the inner control points
// sit a third of a tangent away from each anchor.
func EvaluateClosedSpline(anchors []Point, sampleCount int, tension float64) ([]Point, error) {
	k := len(anchors)
	if k < 3 {
		return nil, &DataError{Op: "fit spline", Got: k, Want: 3, Err: ErrInsufficientSamples}
	}
	if sampleCount < 1 {
		return nil, &DataError{Op: "fit spline", Got: sampleCount, Want: 1, Err: ErrInsufficientSamples}
	}
	c := NewCyclic(k)
	tangents := make([]Point, k)
	for j := range anchors {
		tangents[j] = anchors[c.Next(j)].Sub(anchors[c.Prev(j)]).Scale(tension)
	}

	out := make([]Point, sampleCount)
	for i := range out {
		seg, t := SplineParameter(i, sampleCount, k)
		next := c.Next(seg)
		p0 := anchors[seg]
		p3 := anchors[next]
		p1 := p0.Add(tangents[seg].Scale(1.0 / 3))
		p2 := p3.Sub(tangents[next].Scale(1.0 / 3))
		out[i] = bezier(p0, p1, p2, p3, t)
	}
	return out, nil
}

func bezier(p0, p1, p2, p3 Point, t float64) Point {
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	c := 3 * mt * t * t
	d := t * t * t
	return Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

// MapToGrid maps every dense sample back to a fractional index on the grid
// the anchors were drawn from. The anchor segment gives a first estimate that
// is refined to the closest point of the grid polyline nearby.
func MapToGrid(anchors []int, grid ProgressGrid, samples []Point) []float64 {
	n := len(grid)
	k := len(anchors)
	out := make([]float64, len(samples))
	if n == 0 || k == 0 {
		return out
	}
	c := NewCyclic(n)

	maxGap := 0
	for j, a := range anchors {
		gap := c.Forward(a, anchors[(j+1)%k])
		if gap == 0 {
			gap = n
		}
		maxGap = max(maxGap, gap)
	}
	window := max(2, maxGap/2+1)

	for i, p := range samples {
		seg, t := SplineParameter(i, len(samples), k)
		a := anchors[seg]
		span := c.Forward(a, anchors[(seg+1)%k])
		if span == 0 {
			span = n
		}
		estimate := float64(a) + t*float64(span)
		out[i] = c.Wrap(nearestOnGrid(grid, c, p, int(math.Floor(estimate)), window))
	}
	return out
}

// nearestOnGrid projects p onto the grid segments start-window..start+window
// and returns the fractional index of the closest foot point.
func nearestOnGrid(grid ProgressGrid, c Cyclic, p Point, start, window int) float64 {
	best := math.Inf(1)
	bestIdx := float64(start)
	for s := start - window; s <= start+window; s++ {
		a := grid[c.Index(s)].Pos()
		b := grid[c.Index(s+1)].Pos()
		d := b.Sub(a)
		f := 0.0
		if l2 := d.Dot(d); l2 > 0 {
			f = clamp(p.Sub(a).Dot(d)/l2, 0, 1)
		}
		foot := a.Add(d.Scale(f))
		if dist := Distance(p, foot); dist < best {
			best = dist
			bestIdx = float64(s) + f
		}
	}
	return bestIdx
}

// MidpointGrid averages the left and right grids point by point
func MidpointGrid(left, right ProgressGrid) (ProgressGrid, error) {
	return AverageGrids([]ProgressGrid{left, right})
}

// SynthesizeSide builds a missing edge by offsetting the present one along its
// normal by width. Offsetting the left edge yields the right edge and vice
// versa.
func SynthesizeSide(present ProgressGrid, presentSide Role, width float64) (ProgressGrid, error) {
	frames, err := ComputeFrames(present.Points())
	if err != nil {
		return nil, err
	}
	sign := -1.0
	if presentSide == RoleRight {
		sign = 1
	}
	out := make(ProgressGrid, len(present))
	for i, f := range frames {
		p := f.Position.Add(f.Normal.Scale(sign * width))
		out[i] = GridPoint{Progress: present[i].Progress, X: p.X, Y: p.Y}
	}
	return out, nil
}

// BuildSplines classifies the inside edge, detects apexes, selects one set of
// anchor indices and fits the three closed curves through it, so the curves
// stay aligned sample for sample.
func BuildSplines(left, right, center ProgressGrid, p SplineParams) (*SplineResult, error) {
	n := len(center)
	if n < 3 {
		return nil, &DataError{Op: "build splines", Role: RoleCenter, Got: n, Want: 3, Err: ErrInsufficientSamples}
	}
	if len(left) != n {
		return nil, &DataError{Op: "build splines", Role: RoleLeft, Got: len(left), Want: n, Err: ErrGridMismatch}
	}
	if len(right) != n {
		return nil, &DataError{Op: "build splines", Role: RoleRight, Got: len(right), Want: n, Err: ErrGridMismatch}
	}
	sampleCount := p.SampleCount
	if sampleCount <= 0 {
		sampleCount = n
	}
	spacing := p.Spacing
	if spacing <= 0 {
		spacing = LoopLength(center.Points()) / float64(n)
	}
	toSamples := func(d float64) int {
		if spacing <= 0 {
			return 1
		}
		return max(1, int(math.Round(d/spacing)))
	}

	leftAngles := SignedAngles(left.Points())
	rightAngles := SignedAngles(right.Points())
	inside := ClassifyInsideEdge(SignedAngles(center.Points()), leftAngles, rightAngles, toSamples(p.HysteresisDistance))

	merge := toSamples(p.ApexMergeDistance)
	halfWindow := 0
	if p.SmoothScore {
		halfWindow = merge
	}
	score := CurvatureScore(inside.Sides, leftAngles, rightAngles, halfWindow)
	ap := AnchorParams{
		Target:       p.PointTarget,
		StraightStep: toSamples(p.StraightSpacing),
		MergeSamples: merge,
		Tolerance:    p.ScoreTolerance * floats.Max(score),
	}
	if p.SmoothScore {
		ap.Prominence = ap.Tolerance
	}
	apexes := DetectApexes(score, ap)
	idx := SelectAnchors(n, apexes, score, ap)

	res := &SplineResult{
		Anchors: make(map[Role][]int, 3),
		Inside:  inside,
		Apexes:  apexes,
		Score:   score,
	}
	grids := map[Role]ProgressGrid{RoleLeft: left, RoleRight: right, RoleCenter: center}
	for _, role := range Roles {
		grid := grids[role]
		anchors := make([]Point, len(idx))
		for j, gi := range idx {
			anchors[j] = grid[gi].Pos()
		}
		curve, err := EvaluateClosedSpline(anchors, sampleCount, p.Tension)
		if err != nil {
			if de, ok := err.(*DataError); ok {
				de.Role = role
			}
			return nil, err
		}
		res.Anchors[role] = idx
		switch role {
		case RoleLeft:
			res.Left = curve
		case RoleRight:
			res.Right = curve
		default:
			res.Center = curve
		}
	}
	res.GridIndex = MapToGrid(res.Anchors[RoleCenter], center, res.Center)
	return res, nil
}
