package track

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// lapFile is the on-disk form of one calibration lap
type lapFile struct {
	TrackID   string      `json:"trackId"`
	TrackName string      `json:"trackName"`
	Role      Role        `json:"role"`
	Samples   []lapSample `json:"samples"`
}

type lapSample struct {
	Distance float64  `json:"distance"`
	X        float64  `json:"x"`
	Y        *float64 `json:"y,omitempty"`
	Z        *float64 `json:"z,omitempty"`
}

// ParseLapFile reads and parses a lap JSON file
func ParseLapFile(path, planarAxis string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	tr, err := ParseLapJSON(data, planarAxis)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	tr.Source = filepath.Base(path)
	if tr.Role == "" {
		tr.Role = RoleFromFilename(path)
	}
	if !tr.Role.Valid() {
		return nil, fmt.Errorf("%s: cannot determine lap role", filepath.Base(path))
	}
	return tr, nil
}

// ParseLapJSON parses lap JSON data. The second planar coordinate is read
// from the y or z axis; "auto" picks the axis with the larger range.
func ParseLapJSON(data []byte, planarAxis string) (*Trace, error) {
	var lf lapFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if lf.Role != "" && !lf.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", lf.Role)
	}

	axis := planarAxis
	if axis == "" || axis == PlanarAxisAuto {
		axis = pickPlanarAxis(lf.Samples)
	}

	tr := &Trace{
		TrackID:   lf.TrackID,
		TrackName: lf.TrackName,
		Role:      lf.Role,
		Samples:   make([]Sample, 0, len(lf.Samples)),
	}
	for _, s := range lf.Samples {
		v := s.Y
		if axis == PlanarAxisZ {
			v = s.Z
		}
		y := math.NaN()
		if v != nil {
			y = *v
		}
		tr.Samples = append(tr.Samples, Sample{Distance: s.Distance, X: s.X, Y: y})
	}
	return tr, nil
}

// pickPlanarAxis returns the axis with the larger spread; elevation varies
// far less than plan position on any real track.
func pickPlanarAxis(samples []lapSample) string {
	span := func(get func(lapSample) *float64) float64 {
		low, high := math.Inf(1), math.Inf(-1)
		for _, s := range samples {
			if v := get(s); v != nil && isFinite(*v) {
				low = math.Min(low, *v)
				high = math.Max(high, *v)
			}
		}
		if high < low {
			return -1
		}
		return high - low
	}
	ySpan := span(func(s lapSample) *float64 { return s.Y })
	zSpan := span(func(s lapSample) *float64 { return s.Z })
	if zSpan > ySpan {
		return PlanarAxisZ
	}
	return PlanarAxisY
}

// RoleFromFilename guesses the role from names like "monza-left-1.json".
// It returns an empty role when nothing matches.
func RoleFromFilename(path string) Role {
	name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	switch {
	case strings.Contains(name, "left"):
		return RoleLeft
	case strings.Contains(name, "right"):
		return RoleRight
	case strings.Contains(name, "center"), strings.Contains(name, "centre"), strings.Contains(name, "racing"):
		return RoleCenter
	}
	return ""
}

// DiscoverLaps returns the sorted lap files in dir
func DiscoverLaps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading lap directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.Sort(paths)
	return paths, nil
}

// LoadLaps parses the given lap files, or every lap file in dir when paths
// is empty.
func LoadLaps(dir string, paths []string, planarAxis string) ([]Trace, error) {
	if len(paths) == 0 {
		found, err := DiscoverLaps(dir)
		if err != nil {
			return nil, err
		}
		paths = found
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no lap files found in %s", dir)
	}
	traces := make([]Trace, 0, len(paths))
	for _, p := range paths {
		tr, err := ParseLapFile(p, planarAxis)
		if err != nil {
			return nil, err
		}
		traces = append(traces, *tr)
	}
	return traces, nil
}

// LapSummary provides a summary of one lap file
type LapSummary struct {
	Source      string
	TrackID     string
	TrackName   string
	Role        Role
	SampleCount int
	Dropped     int // non-finite samples
	Length      float64
	Closed      bool // last sample returns near the first
	MinX, MinY  float64
	MaxX, MaxY  float64
}

// Summarize extracts key information from a lap
func Summarize(tr Trace) LapSummary {
	summary := LapSummary{
		Source:      tr.Source,
		TrackID:     tr.TrackID,
		TrackName:   tr.TrackName,
		Role:        tr.Role,
		SampleCount: len(tr.Samples),
	}
	finite := 0
	pts := make([]Point, 0, len(tr.Samples))
	for _, s := range tr.Samples {
		if s.Usable() {
			finite++
			pts = append(pts, s.Pos())
		}
	}
	summary.Dropped = len(tr.Samples) - finite
	samples, err := prepareSamples(tr)
	if err != nil {
		return summary
	}
	summary.Length = samples[len(samples)-1].Distance - samples[0].Distance
	summary.Closed = len(samples) > finite
	summary.MinX, summary.MinY, summary.MaxX, summary.MaxY = Bounds(pts)
	return summary
}
