package track

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeClampScale(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{math.NaN(), 1},
		{math.Inf(1), 1},
		{0, 0.1},
		{-3, 0.1},
		{0.5, 0.5},
		{2, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeClampScale(tt.in), "scale %v", tt.in)
	}
}

func TestGuardrailLimit(t *testing.T) {
	frames := ringFrames(t, 100)
	left := []ProgressGrid{circleGrid(46, 100)}
	right := []ProgressGrid{circleGrid(54, 100)}

	for _, f := range frames[:5] {
		assert.InDelta(t, 50-46*math.Cos(2*math.Pi/100), GuardrailLimit(f, left, RoleLeft), 1e-9)
		assert.InDelta(t, 4, GuardrailLimit(f, right, RoleRight), 1e-9)
	}
	assert.True(t, math.IsInf(GuardrailLimit(frames[0], nil, RoleLeft), -1))
}

func TestEnforceWidthConstraints(t *testing.T) {
	n := 100
	frames := ringFrames(t, n)
	leftLaps := []ProgressGrid{circleGrid(46, n)}
	rightLaps := []ProgressGrid{circleGrid(54, n)}

	w := WidthProfile{Left: constant(n, 3), Right: constant(n, 3)}
	w.Left[10] = 6
	w.Right[20] = 7
	limit := GuardrailLimit(frames[30], leftLaps, RoleLeft)
	w.Left[30] = limit + 0.005

	out, report := EnforceWidthConstraints(frames, w, leftLaps, rightLaps, GuardrailParams{ClampScale: 1, Tolerance: 0.01})

	assert.Equal(t, 1.0, report.ClampScale)
	assert.Equal(t, []int{10, 30}, report.LeftIndices, "small overshoots are recorded too")
	assert.Equal(t, []int{20}, report.RightIndices)
	assert.Equal(t, 2, report.LeftCount)
	assert.Equal(t, 1, report.RightCount)
	assert.Equal(t, 1, report.LeftOvershoots)
	assert.Equal(t, 1, report.RightOvershoots)
	assert.InDelta(t, GuardrailLimit(frames[10], leftLaps, RoleLeft), out.Left[10], testEpsilon)
	assert.InDelta(t, 4, out.Right[20], 1e-9)
	assert.InDelta(t, limit, out.Left[30], testEpsilon)
	assert.Equal(t, 3.0, out.Left[0])
	assert.Equal(t, 6.0, w.Left[10], "the input profile is not modified")
}

func TestEnforceWidthConstraints_BoundForEveryScale(t *testing.T) {
	n := 60
	frames := ringFrames(t, n)
	leftLaps := []ProgressGrid{circleGrid(46, n), circleGrid(45, n)}
	rightLaps := []ProgressGrid{circleGrid(54, n)}
	w := WidthProfile{Left: constant(n, 8), Right: constant(n, 8)}

	for _, scale := range []float64{0.1, 0.25, 0.5, 0.75, 1} {
		out, report := EnforceWidthConstraints(frames, w, leftLaps, rightLaps, GuardrailParams{ClampScale: scale, Tolerance: 0.01})
		require.Equal(t, scale, report.ClampScale)
		for i, f := range frames {
			assert.LessOrEqual(t, out.Left[i], GuardrailLimit(f, leftLaps, RoleLeft)*scale+testEpsilon)
			assert.LessOrEqual(t, out.Right[i], GuardrailLimit(f, rightLaps, RoleRight)*scale+testEpsilon)
			assert.GreaterOrEqual(t, out.Left[i], 0.0)
			assert.GreaterOrEqual(t, out.Right[i], 0.0)
		}
		assert.Equal(t, n, report.LeftCount)
		assert.Len(t, report.LeftIndices, n)
	}
}

func TestEnforceWidthConstraints_SideWithoutLaps(t *testing.T) {
	frames := ringFrames(t, 20)
	w := WidthProfile{Left: constant(20, 30), Right: constant(20, 30)}
	out, report := EnforceWidthConstraints(frames, w, nil, []ProgressGrid{circleGrid(54, 20)}, GuardrailParams{ClampScale: 1})
	assert.Equal(t, w.Left, out.Left)
	assert.Zero(t, report.LeftCount)
	assert.Equal(t, 20, report.RightCount)
}

func TestEnforceWidthConstraints_NegativeLimitFloorsAtZero(t *testing.T) {
	frames := ringFrames(t, 200)
	// the recorded left lap lies on the right of the centerline
	laps := []ProgressGrid{circleGrid(52, 200)}
	w := WidthProfile{Left: constant(200, 1), Right: constant(200, 1)}
	out, _ := EnforceWidthConstraints(frames, w, laps, nil, GuardrailParams{ClampScale: 1, Tolerance: 0.01})
	requireAllNear(t, 0, out.Left, testEpsilon)
}
