package track

import "math"

const slopeTolerance = 1e-9

// SlopeClamp is the outcome of limiting one half-width array
type SlopeClamp struct {
	Values       []float64 `json:"-"`
	Altered      []int     `json:"altered"`
	SectorRatios []float64 `json:"sectorRatios"`
	Passes       int       `json:"passes"`
}

// SlopeReport collects the slope clamp diagnostics of both sides
type SlopeReport struct {
	PerSampleLimit float64    `json:"perSampleLimit"`
	SectorLength   float64    `json:"sectorLength"`
	Left           SlopeClamp `json:"left"`
	Right          SlopeClamp `json:"right"`
}

// PerSampleLimit converts a change per 10 m into a change per grid step
func PerSampleLimit(maxDeltaPer10m, spacing float64) float64 {
	return maxDeltaPer10m / 10 * spacing
}

// ClampWidthDeltas limits the change between neighbouring samples of a closed
// sequence to limit. Values are only ever lowered: each pass sweeps forward
// and backward, capping a sample at its neighbour plus the limit, and passes
// repeat until nothing violates the limit or 2n passes have run. Altered
// samples are counted per sector of sectorSamples samples.
func ClampWidthDeltas(values []float64, limit float64, sectorSamples int) SlopeClamp {
	n := len(values)
	out := make([]float64, n)
	copy(out, values)
	res := SlopeClamp{Values: out}
	if n < 2 || limit < 0 || !isFinite(limit) {
		return res
	}
	c := NewCyclic(n)

	for res.Passes < 2*n && violates(out, limit, c) {
		for i := 0; i < n; i++ {
			if capped := out[c.Prev(i)] + limit; out[i] > capped {
				out[i] = capped
			}
		}
		for i := n - 1; i >= 0; i-- {
			if capped := out[c.Next(i)] + limit; out[i] > capped {
				out[i] = capped
			}
		}
		res.Passes++
	}

	for i := range out {
		if out[i] != values[i] {
			res.Altered = append(res.Altered, i)
		}
	}
	res.SectorRatios = sectorRatios(res.Altered, n, sectorSamples)
	return res
}

func violates(values []float64, limit float64, c Cyclic) bool {
	for i, v := range values {
		if math.Abs(v-values[c.Next(i)]) > limit+slopeTolerance {
			return true
		}
	}
	return false
}

// sectorRatios returns, per sector, the fraction of samples that were altered
func sectorRatios(altered []int, n, sectorSamples int) []float64 {
	if n == 0 {
		return nil
	}
	if sectorSamples < 1 {
		sectorSamples = n
	}
	sectors := (n + sectorSamples - 1) / sectorSamples
	counts := make([]int, sectors)
	for _, i := range altered {
		counts[i/sectorSamples]++
	}
	ratios := make([]float64, sectors)
	for s := range ratios {
		size := min(sectorSamples, n-s*sectorSamples)
		ratios[s] = float64(counts[s]) / float64(size)
	}
	return ratios
}
