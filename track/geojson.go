package track

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Feature kinds written to the "kind" property
const (
	FeatureCenterline = "centerline"
	FeatureEdge       = "edge"
	FeatureSurface    = "surface"
	FeatureApex       = "apex"
)

// TrackMapToFeatureCollection converts a track map into GeoJSON in the local
// planar frame (meters). Centerline and edges become closed LineStrings,
// optionally simplified with Douglas-Peucker; the drivable surface becomes a
// Polygon with the left edge as outer ring and the right edge as hole when
// one encloses the other, or a single ring running out along the left edge
// and back along the right edge otherwise.
func TrackMapToFeatureCollection(tm *TrackMap, tolerance float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if tm == nil {
		return fc
	}

	lines := []struct {
		role   Role
		kind   string
		points []Point
	}{
		{RoleCenter, FeatureCenterline, tm.Centerline},
		{RoleLeft, FeatureEdge, tm.LeftEdge},
		{RoleRight, FeatureEdge, tm.RightEdge},
	}
	for _, l := range lines {
		if len(l.points) < 2 {
			continue
		}
		ls := simplifyLineString(toLineString(l.points, true), tolerance)
		f := geojson.NewFeature(ls)
		f.ID = fmt.Sprintf("%s-%s", tm.TrackID, l.role)
		f.Properties["trackId"] = tm.TrackID
		f.Properties["kind"] = l.kind
		f.Properties["role"] = string(l.role)
		f.Properties["length"] = planar.Length(ls)
		f.Properties["points"] = len(ls)
		fc.Append(f)
	}

	if poly, ok := surfacePolygon(tm); ok {
		f := geojson.NewFeature(poly)
		f.ID = fmt.Sprintf("%s-surface", tm.TrackID)
		f.Properties["trackId"] = tm.TrackID
		f.Properties["trackName"] = tm.TrackName
		f.Properties["kind"] = FeatureSurface
		f.Properties["area"] = planar.Area(poly)
		f.Properties["runId"] = tm.RunID
		fc.Append(f)
	}

	for i, a := range tm.Apexes {
		f := geojson.NewFeature(orb.Point{a.X, a.Y})
		f.Properties["trackId"] = tm.TrackID
		f.Properties["kind"] = FeatureApex
		f.Properties["index"] = i
		fc.Append(f)
	}
	return fc
}

// TrackMapToGeoJSON marshals the feature collection of a track map
func TrackMapToGeoJSON(tm *TrackMap, tolerance float64) ([]byte, error) {
	data, err := TrackMapToFeatureCollection(tm, tolerance).MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshaling GeoJSON: %w", err)
	}
	return data, nil
}

// surfacePolygon builds the drivable area between the edges
func surfacePolygon(tm *TrackMap) (orb.Polygon, bool) {
	if len(tm.LeftEdge) < 3 || len(tm.RightEdge) < 3 {
		return nil, false
	}
	outer := orb.Ring(toLineString(tm.LeftEdge, true))
	inner := orb.Ring(toLineString(tm.RightEdge, true))
	// a clockwise lap has the left edge inside
	if math.Abs(planar.Area(inner)) > math.Abs(planar.Area(outer)) {
		outer, inner = inner, outer
	}
	if planar.RingContains(outer, inner[0]) {
		if outer.Orientation() != orb.CCW {
			outer.Reverse()
		}
		if inner.Orientation() != orb.CW {
			inner.Reverse()
		}
		return orb.Polygon{outer, inner}, true
	}

	ring := make(orb.Ring, 0, len(tm.LeftEdge)+len(tm.RightEdge)+1)
	for _, p := range tm.LeftEdge {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	for i := len(tm.RightEdge) - 1; i >= 0; i-- {
		p := tm.RightEdge[i]
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, true
}

// simplifyLineString applies Douglas-Peucker; a tolerance <= 0 keeps every point
func simplifyLineString(ls orb.LineString, tolerance float64) orb.LineString {
	if tolerance <= 0 || len(ls) < 3 {
		return ls
	}
	simplified := simplify.DouglasPeucker(tolerance).Simplify(ls.Clone())
	result, ok := simplified.(orb.LineString)
	if !ok || len(result) < 2 {
		return ls
	}
	return result
}

// EdgesFromFeatureCollection recovers the centerline and edges written by
// TrackMapToFeatureCollection.
func EdgesFromFeatureCollection(fc *geojson.FeatureCollection) map[Role][]Point {
	out := make(map[Role][]Point)
	for _, f := range fc.Features {
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		role := Role(f.Properties.MustString("role", ""))
		if !role.Valid() {
			continue
		}
		pts := fromLineString(ls)
		// drop the closing point
		if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
			pts = pts[:len(pts)-1]
		}
		out[role] = pts
	}
	return out
}
