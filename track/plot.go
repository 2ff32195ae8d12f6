package track

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// cumulativeDistance returns the distance along an open polyline at each point
func cumulativeDistance(points []Point) []float64 {
	out := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		out[i] = out[i-1] + Distance(points[i-1], points[i])
	}
	return out
}

// PlotWidthProfile charts the raw, enveloped and final half-widths of both
// sides against distance along the centerline.
func PlotWidthProfile(tm *TrackMap) (*plot.Plot, error) {
	if tm == nil || len(tm.Centerline) == 0 {
		return nil, fmt.Errorf("track map has no centerline")
	}
	dist := cumulativeDistance(tm.Centerline)

	p := plot.New()
	title := tm.TrackName
	if title == "" {
		title = tm.TrackID
	}
	p.Title.Text = fmt.Sprintf("%s half-widths", title)
	p.X.Label.Text = "distance (m)"
	p.Y.Label.Text = "half-width (m)"

	left := color.RGBA{R: 31, G: 119, B: 180, A: 255}
	right := color.RGBA{R: 214, G: 39, B: 40, A: 255}
	series := []struct {
		label  string
		values []float64
		color  color.RGBA
		dashes []vg.Length
		width  vg.Length
	}{
		{"left raw", tm.Metadata.RawWidths.Left, left, []vg.Length{vg.Points(1), vg.Points(2)}, vg.Points(0.5)},
		{"right raw", tm.Metadata.RawWidths.Right, right, []vg.Length{vg.Points(1), vg.Points(2)}, vg.Points(0.5)},
		{"left envelope", tm.Metadata.EnvelopeWidths.Left, left, []vg.Length{vg.Points(4), vg.Points(2)}, vg.Points(0.8)},
		{"right envelope", tm.Metadata.EnvelopeWidths.Right, right, []vg.Length{vg.Points(4), vg.Points(2)}, vg.Points(0.8)},
		{"left", tm.LeftWidths, left, nil, vg.Points(1.5)},
		{"right", tm.RightWidths, right, nil, vg.Points(1.5)},
	}
	for _, s := range series {
		if len(s.values) != len(dist) {
			continue
		}
		pts := make(plotter.XYs, 0, len(dist))
		for i, v := range s.values {
			if isFinite(v) {
				pts = append(pts, plotter.XY{X: dist[i], Y: v})
			}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("plotting %s: %w", s.label, err)
		}
		line.Color = s.color
		line.Width = s.width
		line.Dashes = s.dashes
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteWidthPlot renders the width chart in the given format ("png", "svg")
func WriteWidthPlot(w io.Writer, tm *TrackMap, format string) error {
	p, err := PlotWidthProfile(tm)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, format)
	if err != nil {
		return fmt.Errorf("creating %s plot writer: %w", format, err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing plot: %w", err)
	}
	return nil
}

// SaveWidthPlot writes the width chart to path; the extension picks the format
func SaveWidthPlot(path string, tm *TrackMap) error {
	p, err := PlotWidthProfile(tm)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}
	return nil
}
