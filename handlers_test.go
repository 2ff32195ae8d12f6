package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paulmach/orb/geojson"

	"github.com/kwv/trackmesh/track"
)

func newTestServer(t *testing.T) (*httptest.Server, *track.TrackMap) {
	t.Helper()
	store := track.NewMapStore()
	tm := generateRing(t)
	store.Put(tm)
	srv := httptest.NewServer(newHTTPServer(store, nil))
	t.Cleanup(srv.Close)
	return srv, tm
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, buf.Bytes()
}

func TestSplitTrackPath(t *testing.T) {
	tests := []struct {
		rest         string
		wantID       string
		wantArtifact string
	}{
		{"ring.json", "ring", "json"},
		{"ring.geojson", "ring", "geojson"},
		{"monza.v2.svg", "monza.v2", "svg"},
		{"ring/widths.png", "ring", "widths"},
		{"ring/raster.png", "ring", "raster"},
		{"ring/other.png", "", ""},
		{"ring", "", ""},
		{".json", "", ""},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.rest, func(t *testing.T) {
			id, artifact := splitTrackPath(tt.rest)
			if id != tt.wantID || artifact != tt.wantArtifact {
				t.Errorf("splitTrackPath(%q) = (%q, %q), want (%q, %q)", tt.rest, id, artifact, tt.wantID, tt.wantArtifact)
			}
		})
	}
}

func TestHealthEndpoint(t *testing.T) {
	store := track.NewMapStore()
	srv := httptest.NewServer(newHTTPServer(store, nil))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var status struct {
		Status  string `json:"status"`
		HasMaps bool   `json:"hasMaps"`
		Tracks  int    `json:"tracks"`
	}
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != "ok" || status.HasMaps || status.Tracks != 0 {
		t.Errorf("unexpected health %+v", status)
	}

	store.Put(generateRing(t))
	_, body = get(t, srv.URL+"/health")
	if err := json.Unmarshal(body, &status); err != nil {
		t.Fatal(err)
	}
	if !status.HasMaps || status.Tracks != 1 {
		t.Errorf("health after Put = %+v", status)
	}
}

func TestTracksEndpoint(t *testing.T) {
	srv, tm := newTestServer(t)
	resp, body := get(t, srv.URL+"/tracks")
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var summaries []track.Summary
	if err := json.Unmarshal(body, &summaries); err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 1 || summaries[0].TrackID != "ring" || summaries[0].RunID != tm.RunID {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestTrackArtifacts(t *testing.T) {
	srv, tm := newTestServer(t)

	tests := []struct {
		path        string
		contentType string
		check       func(t *testing.T, body []byte)
	}{
		{"/tracks/ring.json", "application/json", func(t *testing.T, body []byte) {
			var got track.TrackMap
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatal(err)
			}
			if got.RunID != tm.RunID || len(got.Centerline) != tm.SampleCount {
				t.Errorf("map = run %s with %d samples", got.RunID, len(got.Centerline))
			}
		}},
		{"/tracks/ring.geojson", "application/geo+json", func(t *testing.T, body []byte) {
			fc, err := geojson.UnmarshalFeatureCollection(body)
			if err != nil {
				t.Fatal(err)
			}
			if len(track.EdgesFromFeatureCollection(fc)) != 3 {
				t.Errorf("expected centerline and both edges in %d features", len(fc.Features))
			}
		}},
		{"/tracks/ring.svg", "image/svg+xml", func(t *testing.T, body []byte) {
			if !strings.Contains(string(body), "<svg") {
				t.Error("body is not an SVG")
			}
		}},
		{"/tracks/ring.png", "image/png", decodesAsPNG},
		{"/tracks/ring/raster.png", "image/png", decodesAsPNG},
		{"/tracks/ring/widths.png", "image/png", decodesAsPNG},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, srv.URL+tt.path)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d: %s", resp.StatusCode, body)
			}
			if ct := resp.Header.Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.contentType)
			}
			if cc := resp.Header.Get("Cache-Control"); cc != "no-cache" {
				t.Errorf("Cache-Control = %q", cc)
			}
			tt.check(t, body)
		})
	}
}

func decodesAsPNG(t *testing.T, body []byte) {
	t.Helper()
	if _, err := png.Decode(bytes.NewReader(body)); err != nil {
		t.Errorf("body is not a PNG: %v", err)
	}
}

func TestTrackArtifacts_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{
		"/tracks/monza.json",
		"/tracks/ring.pdf",
		"/tracks/ring",
		"/tracks/ring/laps.png",
		"/tracks/",
	} {
		resp, _ := get(t, srv.URL+path)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s: status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestTrackArtifacts_RenderFailure(t *testing.T) {
	store := track.NewMapStore()
	store.Put(&track.TrackMap{TrackID: "empty"})
	srv := httptest.NewServer(newHTTPServer(store, nil))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/tracks/empty.svg")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Rendering failed") {
		t.Errorf("body = %q", body)
	}
}
