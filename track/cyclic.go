package track

import "math"

// Cyclic maps indices onto a closed sequence of length n, so index -1 is the
// last element and index n is the first.
type Cyclic struct {
	n int
}

// NewCyclic returns the index helper for a closed sequence of length n
func NewCyclic(n int) Cyclic {
	return Cyclic{n: n}
}

// Len returns the sequence length
func (c Cyclic) Len() int { return c.n }

// Index wraps any integer into [0, n)
func (c Cyclic) Index(i int) int {
	if c.n <= 0 {
		return 0
	}
	i %= c.n
	if i < 0 {
		i += c.n
	}
	return i
}

func (c Cyclic) Next(i int) int { return c.Index(i + 1) }
func (c Cyclic) Prev(i int) int { return c.Index(i - 1) }

// Forward returns the number of steps from a to b moving forward, in [0, n).
func (c Cyclic) Forward(a, b int) int {
	return c.Index(b - a)
}

// Distance returns the shorter way around between a and b
func (c Cyclic) Distance(a, b int) int {
	d := c.Forward(a, b)
	if back := c.n - d; back < d {
		return back
	}
	return d
}

// Wrap folds a fractional index into [0, n)
func (c Cyclic) Wrap(f float64) float64 {
	if c.n <= 0 {
		return 0
	}
	n := float64(c.n)
	f = math.Mod(f, n)
	if f < 0 {
		f += n
	}
	if f >= n {
		f = 0
	}
	return f
}

// Window returns the indices i-h..i+h, wrapped.
func (c Cyclic) Window(i, h int) []int {
	out := make([]int, 0, 2*h+1)
	for k := -h; k <= h; k++ {
		out = append(out, c.Index(i+k))
	}
	return out
}
