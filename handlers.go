package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kwv/trackmesh/track"
)

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(store *track.MapStore, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health request", zap.String("remote", r.RemoteAddr))
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			HasMaps   bool      `json:"hasMaps"`
			Tracks    int       `json:"tracks"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			HasMaps:   store.Len() > 0,
			Tracks:    store.Len(),
		}
		writeJSON(w, logger, status)
	})

	// Track index
	mux.HandleFunc("/tracks", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, store.Summaries())
	})

	// Per-track artifacts: /tracks/{id}.json, .geojson, .svg, .png and
	// /tracks/{id}/widths.png
	mux.HandleFunc("/tracks/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/tracks/")
		id, artifact := splitTrackPath(rest)
		if id == "" {
			http.NotFound(w, r)
			return
		}
		tm, ok := store.Get(id)
		if !ok {
			http.Error(w, "Track not found", http.StatusNotFound)
			return
		}

		w.Header().Set("Cache-Control", "no-cache")
		var err error
		switch artifact {
		case "json":
			writeJSON(w, logger, tm)
			return
		case "geojson":
			var data []byte
			data, err = track.TrackMapToGeoJSON(tm, 0)
			if err == nil {
				w.Header().Set("Content-Type", "application/geo+json")
				_, err = w.Write(data)
			}
		case "svg":
			w.Header().Set("Content-Type", "image/svg+xml")
			err = track.NewVectorRenderer(tm).RenderToSVG(w)
		case "png":
			w.Header().Set("Content-Type", "image/png")
			err = track.NewVectorRenderer(tm).RenderToPNG(w)
		case "raster":
			w.Header().Set("Content-Type", "image/png")
			err = track.WriteRasterPNG(w, tm, track.DefaultRasterOptions())
		case "widths":
			w.Header().Set("Content-Type", "image/png")
			err = track.WriteWidthPlot(w, tm, "png")
		default:
			http.NotFound(w, r)
			return
		}
		if err != nil {
			logger.Error("rendering track artifact",
				zap.String("trackId", id),
				zap.String("artifact", artifact),
				zap.Error(err))
			http.Error(w, "Rendering failed", http.StatusInternalServerError)
		}
	})

	return mux
}

// splitTrackPath splits "abc.svg" into ("abc", "svg") and "abc/widths.png"
// into ("abc", "widths"). A bare raster preview is "abc/raster.png".
func splitTrackPath(rest string) (id, artifact string) {
	if i := strings.Index(rest, "/"); i >= 0 {
		id, sub := rest[:i], rest[i+1:]
		switch sub {
		case "widths.png":
			return id, "widths"
		case "raster.png":
			return id, "raster"
		}
		return "", ""
	}
	i := strings.LastIndex(rest, ".")
	if i <= 0 {
		return "", ""
	}
	return rest[:i], rest[i+1:]
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encoding JSON response", zap.Error(err))
	}
}
