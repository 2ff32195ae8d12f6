package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kwv/trackmesh/track"
)

// ringTrace returns a counter-clockwise circular lap around the origin
func ringTrace(role track.Role, radius float64) track.Trace {
	tr := track.Trace{TrackID: "ring", TrackName: "Ring", Role: role, Source: fmt.Sprintf("ring-%s.json", role)}
	const samples = 360
	step := 2 * math.Pi / samples
	for i := 0; i < samples; i++ {
		a := float64(i) * step
		tr.Samples = append(tr.Samples, track.Sample{
			Distance: radius * float64(i) * step,
			X:        radius * math.Cos(a),
			Y:        radius * math.Sin(a),
		})
	}
	return tr
}

var ringRadii = map[track.Role]float64{
	track.RoleLeft:   46,
	track.RoleRight:  54,
	track.RoleCenter: 50,
}

// writeRingLaps writes one lap file per role into dir
func writeRingLaps(t *testing.T, dir string, roles ...track.Role) {
	t.Helper()
	if len(roles) == 0 {
		roles = track.Roles
	}
	for _, role := range roles {
		tr := ringTrace(role, ringRadii[role])
		data, err := json.Marshal(tr)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, tr.Source), data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

// generateRing runs the pipeline on the ring laps
func generateRing(t *testing.T) *track.TrackMap {
	t.Helper()
	gen, err := track.NewGenerator(track.DefaultGenerationConfig())
	if err != nil {
		t.Fatal(err)
	}
	var laps []track.Trace
	for _, role := range track.Roles {
		laps = append(laps, ringTrace(role, ringRadii[role]))
	}
	tm, err := gen.Generate(laps)
	if err != nil {
		t.Fatal(err)
	}
	return tm
}
