package track

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
track:
  id: monza
  name: Monza
generation:
  pointTarget: 60
  smoother: average
  smoothApexScore: true
output:
  geojson: true
mqtt:
  broker: tcp://localhost:1883
  qos: 0
  retain: false
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "monza", cfg.Track.ID)
	assert.Equal(t, "Monza", cfg.Track.Name)
	assert.Equal(t, "laps", cfg.Track.LapDir)
	assert.Equal(t, PlanarAxisAuto, cfg.Track.PlanarAxis)
	assert.Equal(t, 60, cfg.Generation.PointTarget)
	assert.Equal(t, SmootherAverage, cfg.Generation.Smoother)
	assert.Equal(t, 0.5, cfg.Generation.Tension)
	assert.Equal(t, 80.0, cfg.Generation.StraightSpacing)
	assert.True(t, cfg.Output.GeoJSON)
	assert.Equal(t, "out", cfg.Output.Dir)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "trackmesh", cfg.MQTT.PublishPrefix)
	require.NotNil(t, cfg.MQTT.QoS)
	assert.Equal(t, byte(0), *cfg.MQTT.QoS)
	require.NotNil(t, cfg.MQTT.Retain)
	assert.False(t, *cfg.MQTT.Retain)
	assert.True(t, cfg.Generation.SmoothApexScore)
	assert.False(t, DefaultGenerationConfig().SmoothApexScore)
	assert.Equal(t, ":4040", cfg.HTTP.Addr)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"invalid yaml", "generation: [", "parsing config YAML"},
		{"unknown smoother", "generation:\n  smoother: median\n", "generation.smoother"},
		{"point target", "generation:\n  pointTarget: 2\n", "generation.pointTarget"},
		{"planar axis", "track:\n  planarAxis: x\n", "track.planarAxis"},
		{"mqtt qos", "mqtt:\n  qos: 3\n", "mqtt.qos"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, filepath.Base(t.Name())+".yaml", tt.content)
			_, err := LoadConfig(path)
			require.Error(t, err, "case %d", i)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, "config file not found: "+path, err.Error())
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Track.ID = "spa"
	cfg.Track.Laps = []string{"spa-left.json", "spa-right.json"}
	cfg.Generation.SampleCount = 900
	cfg.Generation.AllowSingleSide = true
	cfg.Output.SimplifyTolerance = 0.25
	cfg.MQTT.Password = "secret"

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfig(path, &cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, *loaded); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyMQTTEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_USERNAME", "user")
	t.Setenv("MQTT_CLIENT_ID", "")

	cfg := MQTTConfig{ClientID: "trackmesh", Password: "keep"}
	ApplyMQTTEnv(&cfg)
	assert.Equal(t, "tcp://broker:1883", cfg.Broker)
	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, "trackmesh", cfg.ClientID, "empty variables are ignored")
	assert.Equal(t, "keep", cfg.Password)
}

func TestGenerationConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GenerationConfig)
		wantErr string
	}{
		{"defaults", func(*GenerationConfig) {}, ""},
		{"short fixed grid", func(g *GenerationConfig) { g.SampleCount = 2 }, "sampleCount"},
		{"no spacing", func(g *GenerationConfig) { g.TargetSpacing = 0 }, "targetSpacing"},
		{"fixed grid ignores spacing", func(g *GenerationConfig) { g.SampleCount = 500; g.TargetSpacing = 0 }, ""},
		{"poly order too high", func(g *GenerationConfig) { g.PolyOrder = 9 }, "polyOrder"},
		{"average ignores poly order", func(g *GenerationConfig) { g.Smoother = SmootherAverage; g.PolyOrder = 9 }, ""},
		{"widths inverted", func(g *GenerationConfig) { g.MinWidth = 30 }, "minWidth"},
		{"half widths inverted", func(g *GenerationConfig) { g.MinHalfWidth = 16 }, "minHalfWidth"},
		{"single side needs width", func(g *GenerationConfig) { g.AllowSingleSide = true; g.DefaultTrackWidth = 0 }, "defaultTrackWidth"},
		{"slope limit", func(g *GenerationConfig) { g.MaxDeltaPer10m = 0 }, "maxDeltaPer10m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := DefaultGenerationConfig()
			tt.mutate(&g)
			err := g.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
