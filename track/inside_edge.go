package track

import "math"

const (
	// turnEpsilon is the smallest turning angle (radians) treated as a turn
	turnEpsilon = 1e-4
	// angles closer than tieEpsilon compare equal
	tieEpsilon = 1e-9
)

// InsideEdge is the per-sample inside-edge classification of a lap.
type InsideEdge struct {
	Sides []Role
	Flips int
}

// ClassifyInsideEdge decides, for every grid sample, which edge is on the
// inside of the current turn. The turn direction comes from the centerline
// angle and is carried through straights. A change of side only commits after
// the new side has won minRun consecutive samples; each commit is a flip.
func ClassifyInsideEdge(center, left, right []float64, minRun int) InsideEdge {
	n := len(center)
	res := InsideEdge{Sides: make([]Role, n)}
	if n == 0 {
		return res
	}
	if minRun < 1 {
		minRun = 1
	}

	// seed the carried turn sign from the end of the lap so index 0 continues it
	sign := 0.0
	for i := n - 1; i >= 0; i-- {
		if math.Abs(center[i]) > turnEpsilon {
			sign = math.Copysign(1, center[i])
			break
		}
	}

	pick := func(i int, active Role) Role {
		if math.Abs(center[i]) > turnEpsilon {
			sign = math.Copysign(1, center[i])
		}
		l, r := left[i], right[i]
		leftMatch := sign != 0 && math.Abs(l) > turnEpsilon && l*sign > 0
		rightMatch := sign != 0 && math.Abs(r) > turnEpsilon && r*sign > 0
		switch {
		case leftMatch && !rightMatch:
			return RoleLeft
		case rightMatch && !leftMatch:
			return RoleRight
		}
		switch d := math.Abs(l) - math.Abs(r); {
		case d > tieEpsilon:
			return RoleLeft
		case d < -tieEpsilon:
			return RoleRight
		}
		return active
	}

	saved := sign
	active := pick(0, RoleLeft)
	sign = saved

	var pending Role
	run := 0
	for i := 0; i < n; i++ {
		cand := pick(i, active)
		if cand == active {
			pending, run = "", 0
		} else {
			if cand == pending {
				run++
			} else {
				pending, run = cand, 1
			}
			if run >= minRun {
				active = cand
				res.Flips++
				pending, run = "", 0
			}
		}
		res.Sides[i] = active
	}
	return res
}

// Count returns how many samples were classified with the given side
func (e InsideEdge) Count(side Role) int {
	count := 0
	for _, s := range e.Sides {
		if s == side {
			count++
		}
	}
	return count
}
