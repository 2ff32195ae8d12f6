package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tdewolff/canvas"
	"go.uber.org/zap"

	"github.com/kwv/trackmesh/log"
	"github.com/kwv/trackmesh/track"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *track.Config
	Generator  *track.Generator
	Store      *track.MapStore
	MQTTClient *track.MQTTClient
	Publisher  *track.Publisher

	// CLI flags
	ConfigFile   string
	LapDir       string
	Laps         []string
	OutputDir    string
	InputFile    string
	RenderFormat string
	OutputFile   string
	HTTPAddr     string
	Watch        bool
	Publish      bool

	logger *zap.Logger
	out    io.Writer
	regen  sync.Mutex
}

// AppOptions carries the command line options of one invocation
type AppOptions struct {
	ConfigFile   string
	LapDir       string
	Laps         []string
	OutputDir    string
	InputFile    string
	RenderFormat string
	OutputFile   string
	HTTPAddr     string
	Watch        bool
	Publish      bool
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Store:  track.NewMapStore(),
		logger: log.Named("app"),
		out:    os.Stdout,
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.LapDir = opts.LapDir
	a.Laps = opts.Laps
	a.OutputDir = opts.OutputDir
	a.InputFile = opts.InputFile
	a.RenderFormat = opts.RenderFormat
	a.OutputFile = opts.OutputFile
	a.HTTPAddr = opts.HTTPAddr
	a.Watch = opts.Watch
	a.Publish = opts.Publish
}

// LoadConfig reads the config file and overlays the CLI flags. A missing
// config file falls back to the defaults.
func (a *App) LoadConfig() error {
	cfg := track.DefaultConfig()
	if a.ConfigFile != "" {
		if _, err := os.Stat(a.ConfigFile); errors.Is(err, os.ErrNotExist) {
			a.logger.Warn("config file not found, using defaults", zap.String("path", a.ConfigFile))
		} else {
			loaded, err := track.LoadConfig(a.ConfigFile)
			if err != nil {
				return err
			}
			cfg = *loaded
			a.logger.Info("loaded config", zap.String("path", a.ConfigFile))
		}
	}

	if a.LapDir != "" {
		cfg.Track.LapDir = a.LapDir
	}
	if len(a.Laps) > 0 {
		cfg.Track.Laps = a.Laps
	}
	if a.OutputDir != "" {
		cfg.Output.Dir = a.OutputDir
	}
	if a.HTTPAddr != "" {
		cfg.HTTP.Addr = a.HTTPAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.Config = &cfg

	gen, err := track.NewGenerator(cfg.Generation, track.WithLogger(log.Named("generator")))
	if err != nil {
		return err
	}
	a.Generator = gen
	return nil
}

// loadTraces parses the configured laps
func (a *App) loadTraces() ([]track.Trace, error) {
	tc := a.Config.Track
	var paths []string
	for _, p := range tc.Laps {
		if !filepath.IsAbs(p) && tc.LapDir != "" {
			p = filepath.Join(tc.LapDir, p)
		}
		paths = append(paths, p)
	}
	traces, err := track.LoadLaps(tc.LapDir, paths, tc.PlanarAxis)
	if err != nil {
		return nil, err
	}
	a.logger.Info("loaded laps", zap.Int("count", len(traces)), zap.String("dir", tc.LapDir))
	return traces, nil
}

// generate runs the pipeline once and stores the result
func (a *App) generate() (*track.TrackMap, error) {
	a.regen.Lock()
	defer a.regen.Unlock()

	traces, err := a.loadTraces()
	if err != nil {
		return nil, err
	}
	tm, err := a.Generator.Generate(traces)
	if err != nil {
		return nil, err
	}
	if a.Config.Track.ID != "" {
		tm.TrackID = a.Config.Track.ID
	}
	if a.Config.Track.Name != "" {
		tm.TrackName = a.Config.Track.Name
	}
	a.Store.Put(tm)
	return tm, nil
}

// RunGenerate builds the track map and writes the configured artifacts
func (a *App) RunGenerate() error {
	tm, err := a.generate()
	if err != nil {
		return fmt.Errorf("generating track map: %w", err)
	}
	written, err := a.writeOutputs(tm)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintf(a.out, "Wrote %s\n", path)
	}
	g := tm.Metadata.Guardrail
	fmt.Fprintf(a.out, "Track %q: %d samples, %.1f m, %d apexes, %d guardrail clamps\n",
		tm.TrackID, tm.SampleCount, tm.Metadata.Length, tm.Metadata.ApexCount, g.LeftCount+g.RightCount)

	if a.Publish {
		if err := a.connectMQTT(); err != nil {
			return err
		}
		defer a.disconnectMQTT()
		if a.Publisher == nil {
			return fmt.Errorf("publish requested but no MQTT broker is configured")
		}
		if err := a.Publisher.PublishTrackMap(tm); err != nil {
			return err
		}
	}
	return nil
}

// writeOutputs writes the JSON map plus every enabled artifact and returns
// the paths written
func (a *App) writeOutputs(tm *track.TrackMap) ([]string, error) {
	oc := a.Config.Output
	var written []string

	jsonPath := filepath.Join(oc.Dir, track.MapFileName(tm.TrackID, "json"))
	if err := track.SaveTrackMap(jsonPath, tm); err != nil {
		return written, err
	}
	written = append(written, jsonPath)

	if oc.GeoJSON {
		data, err := track.TrackMapToGeoJSON(tm, oc.SimplifyTolerance)
		if err != nil {
			return written, err
		}
		path := filepath.Join(oc.Dir, track.MapFileName(tm.TrackID, "geojson"))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("writing GeoJSON: %w", err)
		}
		written = append(written, path)
	}
	if oc.SVG {
		path := filepath.Join(oc.Dir, track.MapFileName(tm.TrackID, "svg"))
		if err := a.renderFile(tm, "svg", path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if oc.PNG {
		path := filepath.Join(oc.Dir, track.MapFileName(tm.TrackID, "png"))
		if err := a.renderFile(tm, "png", path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if oc.Plot {
		path := filepath.Join(oc.Dir, track.MapFileName(tm.TrackID+"-widths", "png"))
		if err := a.renderFile(tm, "plot", path); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// renderFile renders tm to path in one of the svg, png, raster or plot formats
func (a *App) renderFile(tm *track.TrackMap, format, path string) error {
	switch format {
	case "svg", "png", "raster", "plot":
	default:
		return fmt.Errorf("unknown render format %q (want svg, png, raster or plot)", format)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if format == "plot" {
		return track.SaveWidthPlot(path, tm)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	switch format {
	case "svg":
		return a.vectorRenderer(tm).RenderToSVG(f)
	case "png":
		return a.vectorRenderer(tm).RenderToPNG(f)
	default:
		return track.WriteRasterPNG(f, tm, track.DefaultRasterOptions())
	}
}

func (a *App) vectorRenderer(tm *track.TrackMap) *track.VectorRenderer {
	r := track.NewVectorRenderer(tm)
	if a.Config != nil && a.Config.Output.Resolution > 0 {
		r.Resolution = canvas.DPI(a.Config.Output.Resolution)
	}
	return r
}

// RunInspect parses every lap and prints a summary per lap and per role
func (a *App) RunInspect() error {
	traces, err := a.loadTraces()
	if err != nil {
		return err
	}
	counts := make(map[track.Role]int)
	for _, tr := range traces {
		s := track.Summarize(tr)
		counts[s.Role]++
		fmt.Fprintf(a.out, "%s\n", s.Source)
		fmt.Fprintf(a.out, "  Track: %s (%s)\n", s.TrackID, s.TrackName)
		fmt.Fprintf(a.out, "  Role: %s\n", s.Role)
		fmt.Fprintf(a.out, "  Samples: %d (%d dropped)\n", s.SampleCount, s.Dropped)
		fmt.Fprintf(a.out, "  Length: %.1f m, closed: %v\n", s.Length, s.Closed)
		fmt.Fprintf(a.out, "  Bounds: (%.1f, %.1f) - (%.1f, %.1f)\n", s.MinX, s.MinY, s.MaxX, s.MaxY)
	}
	fmt.Fprintf(a.out, "\nLaps per role:")
	for _, role := range track.Roles {
		fmt.Fprintf(a.out, " %s=%d", role, counts[role])
	}
	fmt.Fprintln(a.out)
	if counts[track.RoleLeft] == 0 || counts[track.RoleRight] == 0 {
		fmt.Fprintln(a.out, "Warning: both left and right laps are needed unless allowSingleSide is set")
	}
	return nil
}

// RunRender renders a saved track map
func (a *App) RunRender() error {
	input := a.InputFile
	if input == "" {
		return fmt.Errorf("render needs --input")
	}
	tm, err := track.LoadTrackMap(input)
	if err != nil {
		return err
	}
	format := a.RenderFormat
	if format == "" {
		format = "svg"
	}
	output := a.OutputFile
	if output == "" {
		ext := format
		if format == "raster" || format == "plot" {
			ext = "png"
		}
		base := strings.TrimSuffix(input, filepath.Ext(input))
		if format == "plot" {
			base += "-widths"
		}
		output = base + "." + ext
	}
	if err := a.renderFile(tm, format, output); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Wrote %s\n", output)
	return nil
}

// RunPublish publishes a saved track map over MQTT
func (a *App) RunPublish() error {
	if a.InputFile == "" {
		return fmt.Errorf("publish needs --input")
	}
	tm, err := track.LoadTrackMap(a.InputFile)
	if err != nil {
		return err
	}
	if err := a.connectMQTT(); err != nil {
		return err
	}
	defer a.disconnectMQTT()
	if a.Publisher == nil {
		return fmt.Errorf("no MQTT broker configured")
	}
	if err := a.Publisher.PublishTrackMap(tm); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Published %s to %s\n", tm.TrackID, a.Publisher.MapTopic(tm.TrackID))
	return nil
}

func (a *App) connectMQTT() error {
	if a.MQTTClient != nil {
		return nil
	}
	client, err := track.ConnectMQTT(a.Config.MQTT, log.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	if client == nil {
		return nil
	}
	a.MQTTClient = client
	a.Publisher = track.NewPublisher(client.Client(), client.Prefix(), log.Named("publisher"))
	a.Publisher.Configure(a.Config.MQTT)
	return nil
}

func (a *App) disconnectMQTT() {
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
}

// regenerate rebuilds the map after lap changes and publishes it when MQTT is
// connected. Failures keep the previous map.
func (a *App) regenerate(reason string) {
	tm, err := a.generate()
	if err != nil {
		a.logger.Error("regeneration failed", zap.String("reason", reason), zap.Error(err))
		return
	}
	a.logger.Info("track map regenerated",
		zap.String("reason", reason),
		zap.String("trackId", tm.TrackID),
		zap.Int("revision", a.Store.Revision(tm.TrackID)))
	if _, err := a.writeOutputs(tm); err != nil {
		a.logger.Warn("writing outputs failed", zap.Error(err))
	}
	if a.Publisher != nil {
		if err := a.Publisher.PublishTrackMap(tm); err != nil {
			a.logger.Warn("publishing track map failed", zap.Error(err))
		}
	}
}

// RunServe serves the generated maps over HTTP until SIGINT or SIGTERM
func (a *App) RunServe() error {
	a.Store = track.NewMapStoreWithCache(a.Config.Output.Dir, log.Named("store"))
	if a.Store.Len() > 0 {
		a.logger.Info("loaded cached track maps", zap.Strings("tracks", a.Store.IDs()))
	}

	if err := a.connectMQTT(); err != nil {
		a.logger.Warn("MQTT unavailable, continuing without it", zap.Error(err))
	}
	if a.MQTTClient != nil {
		a.MQTTClient.OnRegenerate(func(trackID string) {
			if trackID != "" && a.Config.Track.ID != "" && trackID != a.Config.Track.ID {
				a.logger.Debug("ignoring regenerate for another track", zap.String("trackId", trackID))
				return
			}
			go a.regenerate("mqtt")
		})
	}

	if _, err := a.generate(); err != nil {
		if a.Store.Len() == 0 {
			a.logger.Warn("initial generation failed, serving without a map", zap.Error(err))
		} else {
			a.logger.Warn("initial generation failed, serving cached maps", zap.Error(err))
		}
	} else if a.Publisher != nil {
		for _, id := range a.Store.IDs() {
			if tm, ok := a.Store.Get(id); ok {
				if err := a.Publisher.PublishTrackMap(tm); err != nil {
					a.logger.Warn("publishing track map failed", zap.Error(err))
				}
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.Watch {
		w := track.NewWatcher(a.Config.Track.LapDir, func(changed []string) {
			a.regenerate("laps changed: " + strings.Join(changed, ", "))
		}, log.Named("watcher"))
		go func() {
			if err := w.Run(ctx); err != nil {
				a.logger.Error("lap watcher stopped", zap.Error(err))
			}
		}()
	}

	server := &http.Server{
		Addr:              a.Config.HTTP.Addr,
		Handler:           newHTTPServer(a.Store, log.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP shutdown", zap.Error(err))
	}
	a.disconnectMQTT()
	return nil
}
