package track

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// SignedAngles returns the turning angle at every point of a closed polyline:
// the angle from the incoming to the outgoing edge, positive for left turns.
func SignedAngles(points []Point) []float64 {
	n := len(points)
	out := make([]float64, n)
	if n < 3 {
		return out
	}
	c := NewCyclic(n)
	for i := range points {
		in := points[i].Sub(points[c.Prev(i)])
		next := points[c.Next(i)].Sub(points[i])
		out[i] = math.Atan2(in.Cross(next), in.Dot(next))
	}
	return out
}

// ComputeFrames returns tangent, left normal and signed turning angle at every
// point of a closed polyline.
func ComputeFrames(points []Point) ([]CenterlineSample, error) {
	n := len(points)
	if n < 3 {
		return nil, &DataError{Op: "compute frames", Got: n, Want: 3, Err: ErrInsufficientSamples}
	}
	c := NewCyclic(n)
	angles := SignedAngles(points)
	frames := make([]CenterlineSample, n)
	for i, p := range points {
		t := unitTangent(points[c.Prev(i)], p, points[c.Next(i)])
		frames[i] = CenterlineSample{
			Position:  p,
			Tangent:   t,
			Normal:    Point{X: -t.Y, Y: t.X},
			Angle:     angles[i],
			GridIndex: float64(i),
		}
	}
	return frames, nil
}

// unitTangent uses the central difference, falling back to the one-sided
// edges when neighbours coincide.
func unitTangent(prev, cur, next Point) Point {
	for _, d := range []Point{next.Sub(prev), next.Sub(cur), cur.Sub(prev)} {
		if l := d.Len(); l > 0 {
			return d.Scale(1 / l)
		}
	}
	return Point{X: 1}
}

func toLineString(points []Point, closed bool) orb.LineString {
	ls := make(orb.LineString, 0, len(points)+1)
	for _, p := range points {
		ls = append(ls, orb.Point{p.X, p.Y})
	}
	if closed && len(points) > 1 {
		ls = append(ls, ls[0])
	}
	return ls
}

func fromLineString(ls orb.LineString) []Point {
	pts := make([]Point, len(ls))
	for i, p := range ls {
		pts[i] = Point{X: p[0], Y: p[1]}
	}
	return pts
}

// LoopLength returns the length of a closed polyline including the closing edge
func LoopLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}
	return planar.Length(toLineString(points, true))
}

// OffsetPoints moves every point along its frame normal by the given signed
// distances (positive to the left).
func OffsetPoints(frames []CenterlineSample, offsets []float64, sign float64) []Point {
	out := make([]Point, len(frames))
	for i, f := range frames {
		out[i] = f.Position.Add(f.Normal.Scale(sign * offsets[i]))
	}
	return out
}
