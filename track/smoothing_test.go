package track

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmoothArray(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		window int
		want   []float64
	}{
		{"three wide", []float64{0, 0, 3, 0, 0}, 3, []float64{0, 1, 1, 1, 0}},
		{"even window widened", []float64{0, 0, 3, 0, 0}, 2, []float64{0, 1, 1, 1, 0}},
		{"wraps around", []float64{3, 0, 0, 0, 0}, 3, []float64{1, 1, 0, 0, 1}},
		{"window 1 copies", []float64{1, 2, 3}, 1, []float64{1, 2, 3}},
		{"empty", []float64{}, 5, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SmoothArray(tt.values, tt.window)
			require.Len(t, got, len(tt.want))
			for i := range got {
				assert.InDelta(t, tt.want[i], got[i], testEpsilon)
			}
		})
	}
}

func TestSavitzkyGolay_PreservesConstant(t *testing.T) {
	got, err := SavitzkyGolay(constant(50, 3), 9, 3, 0.5, nil)
	require.NoError(t, err)
	requireAllNear(t, 3, got, 1e-9)
}

func TestSavitzkyGolay_PreservesQuadraticAwayFromSeam(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		x := float64(i) * 0.5
		values[i] = 0.2*x*x - x + 4
	}
	got, err := SavitzkyGolay(values, 9, 3, 0.5, nil)
	require.NoError(t, err)
	for i := 10; i < 90; i++ {
		assert.InDelta(t, values[i], got[i], 1e-6, "index %d", i)
	}
}

func TestSavitzkyGolay_ZeroSpacingIsSingular(t *testing.T) {
	_, err := SavitzkyGolay(constant(20, 1), 5, 2, 0, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularMatrix))
	var de *DataError
	assert.ErrorAs(t, err, &de)
}

func TestSavitzkyGolay_WindowHandling(t *testing.T) {
	cache := NewKernelCache()

	_, err := SavitzkyGolay(constant(20, 1), 4, 2, 1, cache)
	require.NoError(t, err)
	_, err = SavitzkyGolay(constant(20, 2), 5, 2, 1, cache)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len(), "an even window is widened to the next odd size")

	// a window longer than the sequence shrinks to fit
	got, err := SavitzkyGolay([]float64{1, 1, 1, 1}, 9, 1, 1, cache)
	require.NoError(t, err)
	requireAllNear(t, 1, got, 1e-9)
	assert.Equal(t, 2, cache.Len())

	short := []float64{5, 7}
	got, err = SavitzkyGolay(short, 9, 2, 1, cache)
	require.NoError(t, err)
	assert.Equal(t, short, got)

	cache.Reset()
	assert.Zero(t, cache.Len())
}

func TestPerSampleLimit(t *testing.T) {
	assert.InDelta(t, 0.075, PerSampleLimit(1.5, 0.5), testEpsilon)
	assert.InDelta(t, 1.5, PerSampleLimit(1.5, 10), testEpsilon)
}

func TestClampWidthDeltas_Alternating(t *testing.T) {
	values := make([]float64, 20)
	for i := range values {
		if i%2 == 1 {
			values[i] = 100
		}
	}
	res := ClampWidthDeltas(values, 1, 10)

	c := NewCyclic(len(values))
	for i, v := range res.Values {
		assert.LessOrEqual(t, v, values[i], "values are only lowered")
		assert.LessOrEqual(t, v-res.Values[c.Next(i)], 1+1e-9)
		assert.LessOrEqual(t, res.Values[c.Next(i)]-v, 1+1e-9)
	}
	assert.Len(t, res.Altered, 10)
	assert.Equal(t, []float64{0.5, 0.5}, res.SectorRatios)
	assert.LessOrEqual(t, res.Passes, 2*len(values))
	assert.Equal(t, 100.0, values[1], "the input is not modified")
}

func TestClampWidthDeltas_SmoothInputUntouched(t *testing.T) {
	values := []float64{4, 4.05, 4.1, 4.05}
	res := ClampWidthDeltas(values, 0.1, 2)
	assert.Equal(t, values, res.Values)
	assert.Empty(t, res.Altered)
	assert.Zero(t, res.Passes)
	assert.Equal(t, []float64{0, 0}, res.SectorRatios)
}

func TestClampWidthDeltas_SpikeLowered(t *testing.T) {
	values := constant(30, 4)
	values[15] = 9
	res := ClampWidthDeltas(values, 0.5, 30)
	assert.InDelta(t, 4.5, res.Values[15], testEpsilon)
	assert.Equal(t, []int{15}, res.Altered)
	assert.InDelta(t, 1.0/30, res.SectorRatios[0], testEpsilon)
}

func TestClampWidthDeltas_InvalidLimit(t *testing.T) {
	values := []float64{0, 10, 0}
	res := ClampWidthDeltas(values, -1, 3)
	assert.Equal(t, values, res.Values)
	assert.Empty(t, res.Altered)
}
