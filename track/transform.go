package track

import "math"

// AffineMatrix is a 2D transform: x' = ax + by + tx, y' = cx + dy + ty
type AffineMatrix struct {
	A, B, Tx float64
	C, D, Ty float64
}

// TransformPoint applies an affine transform to a point
func TransformPoint(p Point, m AffineMatrix) Point {
	return Point{
		X: m.A*p.X + m.B*p.Y + m.Tx,
		Y: m.C*p.X + m.D*p.Y + m.Ty,
	}
}

// MultiplyMatrices composes two affine transforms: result = m1 * m2
// Applying result is equivalent to applying m2 first, then m1
func MultiplyMatrices(m1, m2 AffineMatrix) AffineMatrix {
	return AffineMatrix{
		A:  m1.A*m2.A + m1.B*m2.C,
		B:  m1.A*m2.B + m1.B*m2.D,
		Tx: m1.A*m2.Tx + m1.B*m2.Ty + m1.Tx,
		C:  m1.C*m2.A + m1.D*m2.C,
		D:  m1.C*m2.B + m1.D*m2.D,
		Ty: m1.C*m2.Tx + m1.D*m2.Ty + m1.Ty,
	}
}

// Translation creates a translation-only transform
func Translation(tx, ty float64) AffineMatrix {
	return AffineMatrix{A: 1, Tx: tx, D: 1, Ty: ty}
}

// Rotation creates a rotation transform (angle in radians, around origin)
func Rotation(angle float64) AffineMatrix {
	cos := math.Cos(angle)
	sin := math.Sin(angle)
	return AffineMatrix{A: cos, B: -sin, C: sin, D: cos}
}

// RotationAbout rotates by angle radians around center
func RotationAbout(center Point, angle float64) AffineMatrix {
	return MultiplyMatrices(
		Translation(center.X, center.Y),
		MultiplyMatrices(Rotation(angle), Translation(-center.X, -center.Y)),
	)
}

// Scale creates a scaling transform
func Scale(sx, sy float64) AffineMatrix {
	return AffineMatrix{A: sx, D: sy}
}

// Distance returns the planar distance between two points
func Distance(p1, p2 Point) float64 {
	return p2.Sub(p1).Len()
}

// Centroid returns the mean position of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}
	var sum Point
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Scale(1 / float64(len(points)))
}

// WrapAngle folds an angle in radians into (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Bounds returns the bounding box of one or more point sets
func Bounds(sets ...[]Point) (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, pts := range sets {
		for _, p := range pts {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return 0, 0, 0, 0
	}
	return minX, minY, maxX, maxY
}

// ViewTransform maps world coordinates into an image of the given size with a
// margin, flipping Y so north is up.
func ViewTransform(minX, minY, maxX, maxY, width, height, margin float64) AffineMatrix {
	spanX := maxX - minX
	spanY := maxY - minY
	if spanX <= 0 {
		spanX = 1
	}
	if spanY <= 0 {
		spanY = 1
	}
	s := math.Min((width-2*margin)/spanX, (height-2*margin)/spanY)
	// center the content inside the drawable area
	offX := margin + ((width-2*margin)-spanX*s)/2
	offY := margin + ((height-2*margin)-spanY*s)/2
	return MultiplyMatrices(
		Translation(offX, height-offY),
		MultiplyMatrices(Scale(s, -s), Translation(-minX, -minY)),
	)
}
