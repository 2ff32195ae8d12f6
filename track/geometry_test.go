package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCyclic(t *testing.T) {
	c := NewCyclic(10)
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"index negative", c.Index(-1), 9},
		{"index overflow", c.Index(23), 3},
		{"next wraps", c.Next(9), 0},
		{"prev wraps", c.Prev(0), 9},
		{"forward", c.Forward(8, 2), 4},
		{"distance short way", c.Distance(1, 9), 2},
		{"distance same", c.Distance(4, 4), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}

	assert.InDelta(t, 9.5, c.Wrap(-0.5), testEpsilon)
	assert.InDelta(t, 0.25, c.Wrap(10.25), testEpsilon)
	assert.Equal(t, []int{8, 9, 0, 1, 2}, c.Window(0, 2))
	assert.Equal(t, 0, NewCyclic(0).Index(5))
}

func TestSignedAngles(t *testing.T) {
	square := []Point{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	for _, a := range SignedAngles(square) {
		assert.InDelta(t, math.Pi/2, a, testEpsilon, "counter-clockwise turns are positive")
	}

	reversed := []Point{{0, 1}, {1, 1}, {1, 0}, {0, 0}}
	for _, a := range SignedAngles(reversed) {
		assert.InDelta(t, -math.Pi/2, a, testEpsilon)
	}

	line := []Point{{0, 0}, {1, 0}, {2, 0}}
	assert.InDelta(t, 0, SignedAngles(line)[1], testEpsilon)
	assert.Equal(t, []float64{0, 0}, SignedAngles([]Point{{0, 0}, {1, 1}}))
}

func TestComputeFrames_Circle(t *testing.T) {
	pts := circleGrid(10, 64).Points()
	frames, err := ComputeFrames(pts)
	require.NoError(t, err)
	require.Len(t, frames, 64)

	for i, f := range frames {
		assert.InDelta(t, 1, f.Tangent.Len(), testEpsilon)
		assert.InDelta(t, 1, f.Normal.Len(), testEpsilon)
		assert.InDelta(t, 0, f.Tangent.Dot(f.Normal), testEpsilon)
		// the left normal of a counter-clockwise circle points at its center
		inward := f.Position.Scale(-1 / f.Position.Len())
		assert.InDelta(t, 1, f.Normal.Dot(inward), 1e-6)
		assert.InDelta(t, 2*math.Pi/64, f.Angle, 1e-9)
		assert.Equal(t, float64(i), f.GridIndex)
	}
}

func TestComputeFrames_TooFewPoints(t *testing.T) {
	_, err := ComputeFrames([]Point{{0, 0}, {1, 0}})
	assert.ErrorIs(t, err, ErrInsufficientSamples)
}

func TestUnitTangent_DuplicateNeighbours(t *testing.T) {
	p := Point{X: 1, Y: 1}
	assert.Equal(t, Point{X: 1}, unitTangent(p, p, p))
	got := unitTangent(p, p, Point{X: 1, Y: 3})
	assert.InDelta(t, 1, got.Y, testEpsilon)
}

func TestLoopLengthAndOffset(t *testing.T) {
	square := []Point{{0, 0}, {2, 0}, {2, 2}, {0, 2}}
	assert.InDelta(t, 8, LoopLength(square), testEpsilon)
	assert.Equal(t, 0.0, LoopLength([]Point{{1, 1}}))

	frames, err := ComputeFrames(circleGrid(10, 32).Points())
	require.NoError(t, err)
	left := OffsetPoints(frames, constant(32, 2), 1)
	right := OffsetPoints(frames, constant(32, 3), -1)
	for i := range frames {
		assert.InDelta(t, 8, left[i].Len(), 1e-6)
		assert.InDelta(t, 13, right[i].Len(), 1e-6)
	}
}

func TestTransformHelpers(t *testing.T) {
	assert.InDelta(t, -math.Pi+0.1, WrapAngle(math.Pi+0.1), testEpsilon)
	assert.InDelta(t, 0.5, WrapAngle(0.5), testEpsilon)

	c := Centroid([]Point{{0, 0}, {4, 0}, {4, 2}, {0, 2}})
	assert.InDelta(t, 2, c.X, testEpsilon)
	assert.InDelta(t, 1, c.Y, testEpsilon)

	p := TransformPoint(Point{X: 1, Y: 0}, RotationAbout(Point{X: 0, Y: 0}, math.Pi/2))
	assert.InDelta(t, 0, p.X, testEpsilon)
	assert.InDelta(t, 1, p.Y, testEpsilon)

	minX, minY, maxX, maxY := Bounds([]Point{{1, 5}}, []Point{{-2, 3}, {4, 0}})
	assert.Equal(t, []float64{-2, 0, 4, 5}, []float64{minX, minY, maxX, maxY})
}
