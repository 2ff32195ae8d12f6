package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

const testEpsilon = 1e-9

// circleTrace returns a counter-clockwise lap of the given radius around the
// origin with samples readings, starting at angle phase.
func circleTrace(role Role, radius float64, samples int, phase float64) Trace {
	tr := Trace{TrackID: "ring", TrackName: "Test Ring", Role: role, Source: string(role) + ".json"}
	step := 2 * math.Pi / float64(samples)
	for i := 0; i < samples; i++ {
		a := phase + float64(i)*step
		tr.Samples = append(tr.Samples, Sample{
			Distance: radius * float64(i) * step,
			X:        radius * math.Cos(a),
			Y:        radius * math.Sin(a),
		})
	}
	return tr
}

// ringLaps returns left, right and center laps of a 50 m ring that is 8 m wide
func ringLaps() []Trace {
	return []Trace{
		circleTrace(RoleLeft, 46, 360, 0),
		circleTrace(RoleRight, 54, 360, 0),
		circleTrace(RoleCenter, 50, 360, 0),
	}
}

// clockwiseRingLaps returns the same ring driven clockwise, so the left edge
// is the outer one.
func clockwiseRingLaps() []Trace {
	laps := []Trace{
		circleTrace(RoleLeft, 54, 360, 0),
		circleTrace(RoleRight, 46, 360, 0),
		circleTrace(RoleCenter, 50, 360, 0),
	}
	for _, lap := range laps {
		for i := range lap.Samples {
			lap.Samples[i].Y = -lap.Samples[i].Y
		}
	}
	return laps
}

// circleGrid returns n grid points on a counter-clockwise circle
func circleGrid(radius float64, n int) ProgressGrid {
	g := make(ProgressGrid, n)
	for i := range g {
		a := 2 * math.Pi * float64(i) / float64(n)
		g[i] = GridPoint{Progress: float64(i) / float64(n), X: radius * math.Cos(a), Y: radius * math.Sin(a)}
	}
	return g
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func requireAllNear(t *testing.T, want float64, values []float64, delta float64) {
	t.Helper()
	for i, v := range values {
		require.InDeltaf(t, want, v, delta, "index %d", i)
	}
}

// sampleTrackMap returns a finished 8 m wide ring map without running the pipeline
func sampleTrackMap(t *testing.T) *TrackMap {
	t.Helper()
	n := 120
	frames := ringFrames(t, n)
	center := make([]Point, n)
	for i, f := range frames {
		center[i] = f.Position
	}
	widths := WidthProfile{Left: constant(n, 4), Right: constant(n, 4)}
	left := OffsetPoints(frames, widths.Left, 1)
	right := OffsetPoints(frames, widths.Right, -1)
	return &TrackMap{
		RunID:       "run-1",
		TrackID:     "ring",
		TrackName:   "Test Ring",
		SampleCount: n,
		Centerline:  center,
		LeftWidths:  widths.Left,
		RightWidths: widths.Right,
		LeftEdge:    left,
		RightEdge:   right,
		Apexes:      []Point{{X: 50, Y: 0}},
		Metadata: Metadata{
			Smoother:       SmootherSavitzkyGolay,
			GridSize:       n,
			Length:         LoopLength(center),
			ApexCount:      1,
			TargetWidth:    8,
			RawWidths:      widths.Clone(),
			EnvelopeWidths: widths.Clone(),
			Guardrail:      GuardrailReport{ClampScale: 1, LeftIndices: []int{3}, LeftCount: 1},
		},
		GeneratedAt: 1700000000,
	}
}
