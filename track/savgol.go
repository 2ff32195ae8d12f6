package track

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

type kernelKey struct {
	window  int
	order   int
	spacing float64
}

// KernelCache memoizes Savitzky-Golay kernels by window, order and spacing.
// It is safe for concurrent use.
type KernelCache struct {
	mu      sync.Mutex
	kernels map[kernelKey][]float64
}

// NewKernelCache returns an empty cache
func NewKernelCache() *KernelCache {
	return &KernelCache{kernels: make(map[kernelKey][]float64)}
}

// Len returns the number of cached kernels
func (kc *KernelCache) Len() int {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	return len(kc.kernels)
}

// Reset drops every cached kernel
func (kc *KernelCache) Reset() {
	kc.mu.Lock()
	defer kc.mu.Unlock()
	kc.kernels = make(map[kernelKey][]float64)
}

// Kernel returns the smoothing weights for a centered window of the given
// size, polynomial order and sample spacing, building them on first use.
func (kc *KernelCache) Kernel(window, order int, spacing float64) ([]float64, error) {
	key := kernelKey{window: window, order: order, spacing: spacing}
	kc.mu.Lock()
	defer kc.mu.Unlock()
	if k, ok := kc.kernels[key]; ok {
		return k, nil
	}
	k, err := savgolKernel(window, order, spacing)
	if err != nil {
		return nil, err
	}
	kc.kernels[key] = k
	return k, nil
}

// savgolKernel is the first row of (AᵀA)⁻¹Aᵀ, where A is the Vandermonde
// matrix of the spacing-scaled window offsets.
func savgolKernel(window, order int, spacing float64) ([]float64, error) {
	half := window / 2
	cols := order + 1
	a := mat.NewDense(window, cols, nil)
	for r := 0; r < window; r++ {
		x := float64(r-half) * spacing
		for c := 0; c < cols; c++ {
			a.Set(r, c, math.Pow(x, float64(c)))
		}
	}

	var ata mat.Dense
	ata.Mul(a.T(), a)
	var inv mat.Dense
	if err := inv.Inverse(&ata); err != nil {
		return nil, &DataError{
			Op:  fmt.Sprintf("savitzky-golay kernel (window %d, order %d, spacing %g)", window, order, spacing),
			Err: fmt.Errorf("%w: %v", ErrSingularMatrix, err),
		}
	}
	var pinv mat.Dense
	pinv.Mul(&inv, a.T())
	return mat.Row(nil, 0, &pinv), nil
}

// SavitzkyGolay smooths a closed sequence with a least-squares polynomial
// fit over a centered window. Even windows are widened by one, windows larger
// than the sequence shrink to the largest odd size that fits, and windows
// below 3 return a copy.
func SavitzkyGolay(values []float64, window, order int, spacing float64, cache *KernelCache) ([]float64, error) {
	n := len(values)
	out := make([]float64, n)
	copy(out, values)
	if window%2 == 0 {
		window++
	}
	if window > n {
		window = n
		if window%2 == 0 {
			window--
		}
	}
	if window < 3 {
		return out, nil
	}
	if cache == nil {
		cache = NewKernelCache()
	}
	kernel, err := cache.Kernel(window, order, spacing)
	if err != nil {
		return nil, err
	}

	half := window / 2
	c := NewCyclic(n)
	for i := range out {
		sum := 0.0
		for j, w := range kernel {
			sum += w * values[c.Index(i+j-half)]
		}
		out[i] = sum
	}
	return out, nil
}
