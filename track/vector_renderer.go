package track

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
// This is needed for the canvas library which expects premultiplied RGBA
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// Palette holds the colors of a track preview
type Palette struct {
	Background color.NRGBA
	Surface    color.NRGBA
	Edge       color.NRGBA
	Centerline color.NRGBA
	Apex       color.NRGBA
	Clamped    color.NRGBA
}

// DefaultPalette returns the standard preview colors
func DefaultPalette() Palette {
	return Palette{
		Background: color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Surface:    color.NRGBA{R: 90, G: 90, B: 96, A: 200},
		Edge:       color.NRGBA{R: 20, G: 20, B: 20, A: 255},
		Centerline: color.NRGBA{R: 250, G: 250, B: 250, A: 255},
		Apex:       color.NRGBA{R: 230, G: 57, B: 70, A: 255},
		Clamped:    color.NRGBA{R: 255, G: 183, B: 3, A: 255},
	}
}

// VectorRenderer renders a track map as vector graphics
type VectorRenderer struct {
	Map        *TrackMap
	Palette    Palette
	Width      float64           // canvas width in millimeters; height follows the track's aspect
	Margin     float64           // margin in millimeters
	Resolution canvas.Resolution // Resolution for PNG output
	// ShowClamps marks samples the guardrail pulled back
	ShowClamps bool
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(tm *TrackMap) *VectorRenderer {
	return &VectorRenderer{
		Map:        tm,
		Palette:    DefaultPalette(),
		Width:      300,
		Margin:     10,
		Resolution: canvas.DPI(150),
		ShowClamps: true,
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// view maps world meters onto canvas millimeters. Canvas Y already points up.
type view struct {
	minX, minY float64
	scale      float64
	margin     float64
	width      float64
	height     float64
}

func (v view) point(p Point) (float64, float64) {
	return v.margin + (p.X-v.minX)*v.scale, v.margin + (p.Y-v.minY)*v.scale
}

func (r *VectorRenderer) view() (view, error) {
	if r.Map == nil || len(r.Map.Centerline) == 0 {
		return view{}, fmt.Errorf("track map has no centerline")
	}
	minX, minY, maxX, maxY := Bounds(r.Map.Centerline, r.Map.LeftEdge, r.Map.RightEdge)
	spanX := math.Max(maxX-minX, 1)
	spanY := math.Max(maxY-minY, 1)
	inner := r.Width - 2*r.Margin
	if inner <= 0 {
		return view{}, fmt.Errorf("canvas width %.1f mm leaves no room inside a %.1f mm margin", r.Width, r.Margin)
	}
	s := inner / spanX
	return view{
		minX:   minX,
		minY:   minY,
		scale:  s,
		margin: r.Margin,
		width:  r.Width,
		height: spanY*s + 2*r.Margin,
	}, nil
}

// RenderToSVG writes the track as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	v, err := r.view()
	if err != nil {
		return err
	}
	svgRenderer := svg.New(w, v.width, v.height, nil)
	r.renderToCanvas(svgRenderer, v)
	return svgRenderer.Close()
}

// RenderToPNG writes the track as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	v, err := r.view()
	if err != nil {
		return err
	}
	rast := rasterizer.New(v.width, v.height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, v)
	// Rasterizer implements draw.Image interface, which embeds image.Image
	return png.Encode(w, rast)
}

// renderToCanvas draws the track (shared logic for SVG and PNG)
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, v view) {
	tm := r.Map
	pal := r.Palette

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(pal.Background)}
	renderer.RenderPath(canvas.Rectangle(v.width, v.height), bgStyle, canvas.Identity)

	// surface as a strip of quads between the edges
	if n := len(tm.LeftEdge); n > 1 && len(tm.RightEdge) == n {
		surface := &canvas.Path{}
		for i := 0; i < n; i++ {
			j := (i + 1) % n
			x, y := v.point(tm.LeftEdge[i])
			surface.MoveTo(x, y)
			x, y = v.point(tm.LeftEdge[j])
			surface.LineTo(x, y)
			x, y = v.point(tm.RightEdge[j])
			surface.LineTo(x, y)
			x, y = v.point(tm.RightEdge[i])
			surface.LineTo(x, y)
			surface.Close()
		}
		surfaceStyle := canvas.DefaultStyle
		surfaceStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(pal.Surface)}
		surfaceStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
		renderer.RenderPath(surface, surfaceStyle, canvas.Identity)
	}

	edgeStyle := canvas.DefaultStyle
	edgeStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	edgeStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(pal.Edge)}
	edgeStyle.StrokeWidth = 0.6
	for _, edge := range [][]Point{tm.LeftEdge, tm.RightEdge} {
		if p := r.closedPath(edge, v); p != nil {
			renderer.RenderPath(p, edgeStyle, canvas.Identity)
		}
	}

	centerStyle := canvas.DefaultStyle
	centerStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	centerStyle.Stroke = canvas.Paint{Color: nrgbaToRGBA(pal.Centerline)}
	centerStyle.StrokeWidth = 0.3
	centerStyle.Dashes = []float64{2.0, 2.0}
	if p := r.closedPath(tm.Centerline, v); p != nil {
		renderer.RenderPath(p, centerStyle, canvas.Identity)
	}

	if r.ShowClamps {
		clampStyle := canvas.DefaultStyle
		clampStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(pal.Clamped)}
		clampStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
		g := tm.Metadata.Guardrail
		marks := []struct {
			edge    []Point
			indices []int
		}{
			{tm.LeftEdge, g.LeftIndices},
			{tm.RightEdge, g.RightIndices},
		}
		for _, m := range marks {
			for _, i := range m.indices {
				if i < 0 || i >= len(m.edge) {
					continue
				}
				cx, cy := v.point(m.edge[i])
				renderer.RenderPath(canvas.Circle(0.6).Translate(cx, cy), clampStyle, canvas.Identity)
			}
		}
	}

	apexStyle := canvas.DefaultStyle
	apexStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(pal.Apex)}
	apexStyle.Stroke = canvas.Paint{Color: canvas.Black}
	apexStyle.StrokeWidth = 0.2
	for _, a := range tm.Apexes {
		cx, cy := v.point(a)
		renderer.RenderPath(canvas.Circle(1.2).Translate(cx, cy), apexStyle, canvas.Identity)
	}
}

func (r *VectorRenderer) closedPath(points []Point, v view) *canvas.Path {
	if len(points) < 2 {
		return nil
	}
	p := &canvas.Path{}
	for i, pt := range points {
		x, y := v.point(pt)
		if i == 0 {
			p.MoveTo(x, y)
		} else {
			p.LineTo(x, y)
		}
	}
	p.Close()
	return p
}
