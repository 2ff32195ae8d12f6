package track

// SmoothArray applies a centered moving average over a closed sequence.
// Even windows are widened by one; windows below 2 return a copy.
func SmoothArray(values []float64, window int) []float64 {
	n := len(values)
	out := make([]float64, n)
	copy(out, values)
	if window < 2 || n == 0 {
		return out
	}
	half := window / 2
	c := NewCyclic(n)
	count := float64(2*half + 1)

	// running sum over the wrapped window
	sum := 0.0
	for k := -half; k <= half; k++ {
		sum += values[c.Index(k)]
	}
	for i := 0; i < n; i++ {
		out[i] = sum / count
		sum += values[c.Index(i+half+1)] - values[c.Index(i-half)]
	}
	return out
}
