package track

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// RasterOptions configures the quick PNG preview
type RasterOptions struct {
	Width  int
	Height int
	Margin int
	Label  bool
}

// DefaultRasterOptions returns an 800x600 preview with a label
func DefaultRasterOptions() RasterOptions {
	return RasterOptions{Width: 800, Height: 600, Margin: 30, Label: true}
}

var (
	rasterBackground = color.RGBA{250, 250, 250, 255}
	rasterEdge       = color.RGBA{30, 30, 30, 255}
	rasterCenter     = color.RGBA{120, 120, 120, 255}
	rasterApex       = color.RGBA{230, 57, 70, 255}
	rasterClamp      = color.RGBA{255, 183, 3, 255}
	rasterText       = color.RGBA{0, 0, 0, 255}
)

// RenderRaster draws the edges, centerline and apexes of a track map into an
// RGBA image. It needs no fonts beyond the built-in bitmap face.
func RenderRaster(tm *TrackMap, opts RasterOptions) (*image.RGBA, error) {
	if tm == nil || len(tm.Centerline) < 2 {
		return nil, fmt.Errorf("track map has no centerline")
	}
	if opts.Width <= 2*opts.Margin || opts.Height <= 2*opts.Margin {
		return nil, fmt.Errorf("image %dx%d too small for margin %d", opts.Width, opts.Height, opts.Margin)
	}

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			img.SetRGBA(x, y, rasterBackground)
		}
	}

	minX, minY, maxX, maxY := Bounds(tm.Centerline, tm.LeftEdge, tm.RightEdge)
	m := ViewTransform(minX, minY, maxX, maxY, float64(opts.Width), float64(opts.Height), float64(opts.Margin))
	toPixel := func(p Point) (int, int) {
		q := TransformPoint(p, m)
		return int(math.Round(q.X)), int(math.Round(q.Y))
	}

	drawPolyline(img, tm.Centerline, toPixel, rasterCenter, true)
	drawPolyline(img, tm.LeftEdge, toPixel, rasterEdge, true)
	drawPolyline(img, tm.RightEdge, toPixel, rasterEdge, true)

	g := tm.Metadata.Guardrail
	for _, i := range g.LeftIndices {
		if i >= 0 && i < len(tm.LeftEdge) {
			x, y := toPixel(tm.LeftEdge[i])
			drawSquare(img, x, y, 4, rasterClamp)
		}
	}
	for _, i := range g.RightIndices {
		if i >= 0 && i < len(tm.RightEdge) {
			x, y := toPixel(tm.RightEdge[i])
			drawSquare(img, x, y, 4, rasterClamp)
		}
	}
	for _, a := range tm.Apexes {
		x, y := toPixel(a)
		drawCircle(img, x, y, 3, rasterApex)
	}

	if opts.Label {
		s := tm.Summarize()
		name := s.TrackName
		if name == "" {
			name = s.TrackID
		}
		drawText(img, 10, 15, name, rasterText)
		drawText(img, 10, 33, fmt.Sprintf("%.0f m  %d samples  %d apexes", s.Length, s.SampleCount, s.ApexCount), rasterText)
		drawText(img, 10, 51, fmt.Sprintf("width L %.1f m  R %.1f m", s.MeanLeftWidth, s.MeanRightWidth), rasterText)
	}
	return img, nil
}

// WriteRasterPNG renders the preview and encodes it as PNG
func WriteRasterPNG(w io.Writer, tm *TrackMap, opts RasterOptions) error {
	img, err := RenderRaster(tm, opts)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// SaveRasterPNG renders the preview to a file
func SaveRasterPNG(path string, tm *TrackMap, opts RasterOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return WriteRasterPNG(f, tm, opts)
}

// drawPolyline joins consecutive points with Bresenham lines
func drawPolyline(img *image.RGBA, points []Point, toPixel func(Point) (int, int), c color.RGBA, closed bool) {
	n := len(points)
	if n < 2 {
		return
	}
	segments := n - 1
	if closed {
		segments = n
	}
	for i := 0; i < segments; i++ {
		x0, y0 := toPixel(points[i])
		x1, y1 := toPixel(points[(i+1)%n])
		drawLine(img, x0, y0, x1, y1, c)
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := absInt(x1 - x0)
	dy := -absInt(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	bounds := img.Bounds()
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(bounds) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

// drawSquare draws a filled square
func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			x, y := cx+dx, cy+dy
			if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
				img.Set(x, y, c)
			}
		}
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
