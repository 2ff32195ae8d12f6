package track

import (
	"cmp"
	"math"
	"slices"
)

// apexFloor is the smallest curvature score that can form an apex
const apexFloor = 1e-4

// AnchorParams drives apex detection and anchor budget selection. Distances
// are already converted to samples.
type AnchorParams struct {
	Target       int
	StraightStep int
	MergeSamples int
	// Tolerance is the absolute score difference below which two scores tie.
	Tolerance float64
	// Prominence is the rise an apex needs above the flattest sample within
	// half a straight step. Zero accepts every local peak.
	Prominence float64
}

// CurvatureScore takes the absolute turning angle of whichever edge is on the
// inside at each sample. A positive halfWindow smooths it over +/- halfWindow
// samples.
func CurvatureScore(sides []Role, left, right []float64, halfWindow int) []float64 {
	raw := make([]float64, len(sides))
	for i, side := range sides {
		if side == RoleRight {
			raw[i] = math.Abs(right[i])
		} else {
			raw[i] = math.Abs(left[i])
		}
	}
	if halfWindow <= 0 {
		return raw
	}
	return SmoothArray(raw, 2*halfWindow+1)
}

// DetectApexes returns the sorted indices of curvature peaks. A peak is at
// least as sharp as both neighbours and above apexFloor; with a positive
// Prominence it must also rise that much above the flattest sample within half
// a straight step. Peaks are kept sharpest first; a peak within MergeSamples of
// a kept one is dropped.
func DetectApexes(score []float64, p AnchorParams) []int {
	n := len(score)
	if n < 3 {
		return nil
	}
	c := NewCyclic(n)
	reach := max(1, p.StraightStep/2)

	var peaks []int
	for i, s := range score {
		if s <= apexFloor || s < score[c.Prev(i)] || s < score[c.Next(i)] {
			continue
		}
		if p.Prominence > 0 {
			floor := s
			for _, j := range c.Window(i, reach) {
				floor = math.Min(floor, score[j])
			}
			if s-floor <= p.Prominence {
				continue
			}
		}
		peaks = append(peaks, i)
	}

	slices.SortStableFunc(peaks, func(a, b int) int {
		return cmp.Compare(score[b], score[a])
	})
	var kept []int
	for _, pk := range peaks {
		merged := false
		for _, k := range kept {
			if c.Distance(pk, k) <= p.MergeSamples {
				merged = true
				break
			}
		}
		if !merged {
			kept = append(kept, pk)
		}
	}
	slices.Sort(kept)
	return kept
}

// anchorSet tracks selected indices on a closed grid
type anchorSet struct {
	c   Cyclic
	sel []bool
	n   int
}

func newAnchorSet(n int) *anchorSet {
	return &anchorSet{c: NewCyclic(n), sel: make([]bool, n)}
}

func (s *anchorSet) add(i int) {
	if !s.sel[i] {
		s.sel[i] = true
		s.n++
	}
}

func (s *anchorSet) remove(i int) {
	if s.sel[i] {
		s.sel[i] = false
		s.n--
	}
}

func (s *anchorSet) sorted() []int {
	out := make([]int, 0, s.n)
	for i, ok := range s.sel {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// clear reports whether i is more than sep samples from every selected index
func (s *anchorSet) clear(i, sep int) bool {
	if sep <= 0 {
		return true
	}
	for k := -sep; k <= sep; k++ {
		if s.sel[s.c.Index(i+k)] {
			return false
		}
	}
	return true
}

// SelectAnchors picks at most p.Target control points out of n grid samples.
// Apexes come first, then evenly spaced straight samples, then the highest
// remaining scores; while over budget the lowest scores are dropped. Scores
// within the tolerance tie: a tie group is spread across the current gaps when
// only part of it fits, and drops inside a group remove the most crowded
// anchor. Fewer than four anchors falls back to every sample.
func SelectAnchors(n int, apexes []int, score []float64, p AnchorParams) []int {
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	if n <= p.Target {
		return all
	}

	set := newAnchorSet(n)
	for _, a := range apexes {
		if a >= 0 && a < n {
			set.add(a)
		}
	}
	sep := min(p.MergeSamples, n/(2*max(p.Target, 1)))

	if p.StraightStep > 0 {
		for i := 0; i < n && set.n < p.Target; i += p.StraightStep {
			set.add(i)
		}
	}

	if set.n < p.Target {
		fillAnchors(set, score, p, sep)
	}
	for set.n > p.Target {
		dropAnchor(set, score, p.Tolerance)
	}

	out := set.sorted()
	if len(out) < 4 {
		return all
	}
	return out
}

// fillAnchors adds the highest scoring samples, first keeping sep samples
// between anchors and then without that restriction.
func fillAnchors(set *anchorSet, score []float64, p AnchorParams, sep int) {
	for _, spaced := range []bool{true, false} {
		var candidates []int
		for i, ok := range set.sel {
			if !ok {
				candidates = append(candidates, i)
			}
		}
		for _, group := range tieGroups(candidates, score, p.Tolerance) {
			need := p.Target - set.n
			if need <= 0 {
				return
			}
			if spaced {
				group = filterClear(set, group, sep)
			}
			if len(group) > need {
				group = spreadPick(set, group, need)
			}
			for _, i := range group {
				if set.n >= p.Target {
					return
				}
				if spaced && !set.clear(i, sep) {
					continue
				}
				set.add(i)
			}
		}
		if set.n >= p.Target {
			return
		}
	}
}

func filterClear(set *anchorSet, group []int, sep int) []int {
	out := group[:0:0]
	for _, i := range group {
		if set.clear(i, sep) {
			out = append(out, i)
		}
	}
	return out
}

// tieGroups orders candidates by descending score and cuts them into groups
// whose scores stay within tol of the group's first member.
func tieGroups(candidates []int, score []float64, tol float64) [][]int {
	ordered := slices.Clone(candidates)
	slices.SortStableFunc(ordered, func(a, b int) int {
		if c := cmp.Compare(score[b], score[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	var groups [][]int
	for _, i := range ordered {
		if len(groups) > 0 {
			g := groups[len(groups)-1]
			if score[g[0]]-score[i] <= tol {
				groups[len(groups)-1] = append(g, i)
				continue
			}
		}
		groups = append(groups, []int{i})
	}
	return groups
}

// spreadPick chooses need members of group, sharing them between the gaps of
// the current selection in proportion to gap length and placing them near
// evenly spaced targets inside each gap.
func spreadPick(set *anchorSet, group []int, need int) []int {
	c := set.c
	n := c.Len()
	selected := set.sorted()
	if len(selected) == 0 {
		ordered := slices.Clone(group)
		slices.Sort(ordered)
		out := make([]int, 0, need)
		for k := 0; k < need; k++ {
			out = append(out, ordered[k*len(ordered)/need])
		}
		return out
	}

	type gap struct {
		start  int
		length int
		alloc  int
		share  float64
	}
	gaps := make([]gap, len(selected))
	for j, s := range selected {
		length := c.Forward(s, selected[(j+1)%len(selected)])
		if length == 0 {
			length = n
		}
		share := float64(need) * float64(length) / float64(n)
		gaps[j] = gap{start: s, length: length, alloc: int(share), share: share}
	}
	// largest remainder
	assigned := 0
	for _, g := range gaps {
		assigned += g.alloc
	}
	order := make([]int, len(gaps))
	for j := range order {
		order[j] = j
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ra := gaps[a].share - float64(gaps[a].alloc)
		rb := gaps[b].share - float64(gaps[b].alloc)
		return cmp.Compare(rb, ra)
	})
	for k := 0; assigned < need && k < len(order); k++ {
		gaps[order[k]].alloc++
		assigned++
	}

	avail := make(map[int]bool, len(group))
	for _, i := range group {
		avail[i] = true
	}
	out := make([]int, 0, need)
	for _, g := range gaps {
		for m := 1; m <= g.alloc; m++ {
			target := float64(g.length) * float64(m) / float64(g.alloc+1)
			best, bestDist := -1, math.Inf(1)
			for i := range avail {
				off := c.Forward(g.start, i)
				if off == 0 || off >= g.length {
					continue
				}
				d := math.Abs(float64(off) - target)
				if d < bestDist || (d == bestDist && i < best) {
					best, bestDist = i, d
				}
			}
			if best < 0 {
				break
			}
			out = append(out, best)
			delete(avail, best)
		}
	}
	// gaps without enough candidates leave budget for the rest of the group
	if len(out) < need {
		rest := make([]int, 0, len(avail))
		for i := range avail {
			rest = append(rest, i)
		}
		slices.Sort(rest)
		for _, i := range rest {
			if len(out) >= need {
				break
			}
			out = append(out, i)
		}
	}
	return out
}

// dropAnchor removes one anchor from the lowest scoring tie group, preferring
// the one with the shortest surrounding gaps.
func dropAnchor(set *anchorSet, score []float64, tol float64) {
	selected := set.sorted()
	lowest := math.Inf(1)
	for _, i := range selected {
		lowest = math.Min(lowest, score[i])
	}
	c := set.c
	victim, crowd := -1, math.MaxInt
	for j, i := range selected {
		if score[i]-lowest > tol {
			continue
		}
		prev := selected[(j-1+len(selected))%len(selected)]
		next := selected[(j+1)%len(selected)]
		span := c.Forward(prev, i) + c.Forward(i, next)
		if span < crowd {
			victim, crowd = i, span
		}
	}
	set.remove(victim)
}
