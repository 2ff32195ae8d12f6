package track

import "math"

// Role identifies which line of the track a calibration lap was driven along
type Role string

const (
	RoleLeft   Role = "left"
	RoleRight  Role = "right"
	RoleCenter Role = "center"
)

// Roles lists every role in processing order.
var Roles = []Role{RoleLeft, RoleRight, RoleCenter}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleLeft || r == RoleRight || r == RoleCenter
}

// Point represents a 2D coordinate in meters
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(q Point) Point     { return Point{X: p.X + q.X, Y: p.Y + q.Y} }
func (p Point) Sub(q Point) Point     { return Point{X: p.X - q.X, Y: p.Y - q.Y} }
func (p Point) Scale(s float64) Point { return Point{X: p.X * s, Y: p.Y * s} }
func (p Point) Dot(q Point) float64   { return p.X*q.X + p.Y*q.Y }
func (p Point) Cross(q Point) float64 { return p.X*q.Y - p.Y*q.X }
func (p Point) Len() float64          { return math.Hypot(p.X, p.Y) }
func (p Point) Lerp(q Point, t float64) Point {
	return Point{X: p.X + t*(q.X-p.X), Y: p.Y + t*(q.Y-p.Y)}
}

// Finite reports whether both coordinates are finite numbers
func (p Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// Sample is one raw calibration reading: cumulative distance plus planar position.
type Sample struct {
	Distance float64 `json:"distance"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Pos returns the planar position of the sample
func (s Sample) Pos() Point { return Point{X: s.X, Y: s.Y} }

// Usable reports whether distance and position are all finite
func (s Sample) Usable() bool { return isFinite(s.Distance) && s.Pos().Finite() }

// Trace is one recorded lap along a single role.
type Trace struct {
	TrackID   string   `json:"trackId"`
	TrackName string   `json:"trackName"`
	Role      Role     `json:"role"`
	Source    string   `json:"source"` // lap filename
	Samples   []Sample `json:"samples"`
}

// GridPoint is one position on a uniform progress grid
type GridPoint struct {
	Progress float64 `json:"progress"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Pos returns the planar position of the grid point
func (g GridPoint) Pos() Point { return Point{X: g.X, Y: g.Y} }

// ProgressGrid holds N points at progress i/N. Grids produced in one run share N.
type ProgressGrid []GridPoint

// Points returns the grid positions
func (g ProgressGrid) Points() []Point {
	pts := make([]Point, len(g))
	for i, p := range g {
		pts[i] = p.Pos()
	}
	return pts
}

// At interpolates the grid at a fractional, wrapping index.
func (g ProgressGrid) At(index float64) Point {
	n := len(g)
	if n == 0 {
		return Point{}
	}
	c := NewCyclic(n)
	lo := math.Floor(index)
	f := index - lo
	a := g[c.Index(int(lo))].Pos()
	b := g[c.Index(int(lo)+1)].Pos()
	return a.Lerp(b, f)
}

// CenterlineSample is one dense sample of the fitted closed centerline.
type CenterlineSample struct {
	Position  Point   `json:"position"`
	Tangent   Point   `json:"tangent"`
	Normal    Point   `json:"normal"`    // left-pointing
	Angle     float64 `json:"angle"`     // signed turning angle, positive for left turns
	GridIndex float64 `json:"gridIndex"` // fractional progress-grid index the sample maps back to
}

// WidthProfile holds per-sample half-widths aligned with the centerline
type WidthProfile struct {
	Left  []float64 `json:"left"`
	Right []float64 `json:"right"`
}

// Clone returns a deep copy so later stages never alias earlier arrays
func (w WidthProfile) Clone() WidthProfile {
	return WidthProfile{
		Left:  append([]float64(nil), w.Left...),
		Right: append([]float64(nil), w.Right...),
	}
}

// Len returns the number of samples in the profile
func (w WidthProfile) Len() int { return len(w.Left) }

// Side returns the array for the given side
func (w WidthProfile) Side(role Role) []float64 {
	if role == RoleRight {
		return w.Right
	}
	return w.Left
}

// TrackMap is the generated track description. It is built once per run and
// not modified after export.
type TrackMap struct {
	RunID       string    `json:"runId"`
	TrackID     string    `json:"trackId"`
	TrackName   string    `json:"trackName"`
	SampleCount int       `json:"sampleCount"`
	Centerline  []Point   `json:"centerline"`
	LeftWidths  []float64 `json:"leftWidths"`
	RightWidths []float64 `json:"rightWidths"`
	LeftEdge    []Point   `json:"leftEdge"`
	RightEdge   []Point   `json:"rightEdge"`
	Apexes      []Point   `json:"apexes,omitempty"`
	Metadata    Metadata  `json:"metadata"`
	GeneratedAt int64     `json:"generatedAt"`
}

// Metadata carries the diagnostics of a generation run
type Metadata struct {
	SmoothingWindow int                `json:"smoothingWindow"`
	Smoother        string             `json:"smoother"`
	SourceLaps      []string           `json:"sourceLaps"`
	Spacing         float64            `json:"spacing"`
	GridSize        int                `json:"gridSize"`
	Length          float64            `json:"length"`
	AnchorCounts    map[Role]int       `json:"anchorCounts"`
	FlipCount       int                `json:"flipCount"`
	ApexCount       int                `json:"apexCount"`
	SynthesizedSide Role               `json:"synthesizedSide,omitempty"`
	TargetWidth     float64            `json:"targetWidth"`
	HeadingOffsets  map[Role][]float64 `json:"headingOffsets,omitempty"`
	Outliers        OutlierReport      `json:"outliers"`
	HardClamped     int                `json:"hardClamped"`
	Slope           SlopeReport        `json:"slope"`
	Guardrail       GuardrailReport    `json:"guardrail"`
	RawWidths       WidthProfile       `json:"rawWidths"`
	EnvelopeWidths  WidthProfile       `json:"envelopeWidths"`
}

// Summary is the compact description published next to a track map
type Summary struct {
	RunID           string  `json:"runId"`
	TrackID         string  `json:"trackId"`
	TrackName       string  `json:"trackName"`
	SampleCount     int     `json:"sampleCount"`
	Length          float64 `json:"length"`
	MeanLeftWidth   float64 `json:"meanLeftWidth"`
	MeanRightWidth  float64 `json:"meanRightWidth"`
	ApexCount       int     `json:"apexCount"`
	GuardrailClamps int     `json:"guardrailClamps"`
	GeneratedAt     int64   `json:"generatedAt"`
}

// Summarize builds the published summary of a track map
func (m *TrackMap) Summarize() Summary {
	return Summary{
		RunID:           m.RunID,
		TrackID:         m.TrackID,
		TrackName:       m.TrackName,
		SampleCount:     m.SampleCount,
		Length:          m.Metadata.Length,
		MeanLeftWidth:   mean(m.LeftWidths),
		MeanRightWidth:  mean(m.RightWidths),
		ApexCount:       m.Metadata.ApexCount,
		GuardrailClamps: m.Metadata.Guardrail.LeftCount + m.Metadata.Guardrail.RightCount,
		GeneratedAt:     m.GeneratedAt,
	}
}
