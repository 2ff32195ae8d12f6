package track

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SaveTrackMap writes a track map to disk as indented JSON
func SaveTrackMap(path string, tm *TrackMap) error {
	if tm == nil {
		return fmt.Errorf("track map is nil")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := json.MarshalIndent(tm, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling track map: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing track map: %w", err)
	}
	return nil
}

// LoadTrackMap reads a track map written by SaveTrackMap
func LoadTrackMap(path string) (*TrackMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading track map: %w", err)
	}
	var tm TrackMap
	if err := json.Unmarshal(data, &tm); err != nil {
		return nil, fmt.Errorf("parsing track map: %w", err)
	}
	if len(tm.LeftWidths) != len(tm.Centerline) || len(tm.RightWidths) != len(tm.Centerline) {
		return nil, fmt.Errorf("parsing track map: %d centerline samples but %d/%d widths",
			len(tm.Centerline), len(tm.LeftWidths), len(tm.RightWidths))
	}
	return &tm, nil
}

// MapFileName returns the file name used for a track's generated map
func MapFileName(trackID, ext string) string {
	if trackID == "" {
		trackID = "track"
	}
	return trackID + "." + ext
}
