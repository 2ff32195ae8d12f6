package track

import (
	"fmt"
	"slices"
)

const (
	SmootherSavitzkyGolay = "savgol"
	SmootherAverage       = "average"

	PlanarAxisY    = "y"
	PlanarAxisZ    = "z"
	PlanarAxisAuto = "auto"
)

// Config represents the full configuration file
type Config struct {
	Track      TrackConfig      `yaml:"track" json:"track"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Output     OutputConfig     `yaml:"output" json:"output"`
	MQTT       MQTTConfig       `yaml:"mqtt" json:"mqtt"`
	HTTP       HTTPConfig       `yaml:"http" json:"http"`
}

// TrackConfig names the track and where its calibration laps live
type TrackConfig struct {
	ID         string   `yaml:"id,omitempty" json:"id,omitempty"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	LapDir     string   `yaml:"lapDir,omitempty" json:"lapDir,omitempty"`
	Laps       []string `yaml:"laps,omitempty" json:"laps,omitempty"`             // explicit lap files, overrides lapDir discovery
	PlanarAxis string   `yaml:"planarAxis,omitempty" json:"planarAxis,omitempty"` // "y", "z" or "auto"
}

// GenerationConfig holds every numeric parameter of the pipeline
type GenerationConfig struct {
	SampleCount        int     `yaml:"sampleCount,omitempty" json:"sampleCount,omitempty"` // 0 derives it from targetSpacing
	TargetSpacing      float64 `yaml:"targetSpacing" json:"targetSpacing"`
	PointTarget        int     `yaml:"pointTarget" json:"pointTarget"`
	Tension            float64 `yaml:"tension" json:"tension"`
	StraightSpacing    float64 `yaml:"straightSpacing" json:"straightSpacing"`
	HysteresisDistance float64 `yaml:"hysteresisDistance" json:"hysteresisDistance"`
	ApexMergeDistance  float64 `yaml:"apexMergeDistance" json:"apexMergeDistance"`
	ScoreTolerance     float64 `yaml:"scoreTolerance" json:"scoreTolerance"`
	SmoothApexScore    bool    `yaml:"smoothApexScore,omitempty" json:"smoothApexScore,omitempty"` // smoothed, prominence-gated apex detection
	DefaultTrackWidth  float64 `yaml:"defaultTrackWidth" json:"defaultTrackWidth"`
	AllowSingleSide    bool    `yaml:"allowSingleSide" json:"allowSingleSide"`
	Smoother           string  `yaml:"smoother" json:"smoother"`
	SmoothingWindow    int     `yaml:"smoothingWindow" json:"smoothingWindow"`
	PolyOrder          int     `yaml:"polyOrder" json:"polyOrder"`
	EnvelopeMinWidth   float64 `yaml:"envelopeMinWidth,omitempty" json:"envelopeMinWidth,omitempty"` // 0 uses the measured target width
	MinWidth           float64 `yaml:"minWidth" json:"minWidth"`
	MaxWidth           float64 `yaml:"maxWidth" json:"maxWidth"`
	MaxDelta           float64 `yaml:"maxDelta" json:"maxDelta"`
	MinHalfWidth       float64 `yaml:"minHalfWidth" json:"minHalfWidth"`
	MaxHalfWidth       float64 `yaml:"maxHalfWidth" json:"maxHalfWidth"`
	MaxDeltaPer10m     float64 `yaml:"maxDeltaPer10m" json:"maxDeltaPer10m"`
	SectorLength       float64 `yaml:"sectorLength" json:"sectorLength"`
	ClampScale         float64 `yaml:"clampScale" json:"clampScale"`
	GuardrailTolerance float64 `yaml:"guardrailTolerance" json:"guardrailTolerance"`
}

// OutputConfig selects which artifacts a generate run writes
type OutputConfig struct {
	Dir               string  `yaml:"dir" json:"dir"`
	GeoJSON           bool    `yaml:"geojson" json:"geojson"`
	SVG               bool    `yaml:"svg" json:"svg"`
	PNG               bool    `yaml:"png" json:"png"`
	Plot              bool    `yaml:"plot" json:"plot"`
	SimplifyTolerance float64 `yaml:"simplifyTolerance,omitempty" json:"simplifyTolerance,omitempty"` // meters, 0 keeps every sample
	Resolution        float64 `yaml:"resolution,omitempty" json:"resolution,omitempty"`               // PNG DPI
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"-"`
	QoS           *byte  `yaml:"qos,omitempty" json:"qos,omitempty"`       // default 1
	Retain        *bool  `yaml:"retain,omitempty" json:"retain,omitempty"` // default true
}

// HTTPConfig configures the serve mode listener
type HTTPConfig struct {
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty"`
}

// DefaultGenerationConfig returns the pipeline defaults
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		TargetSpacing:      DefaultTargetSpacing,
		PointTarget:        40,
		Tension:            0.5,
		StraightSpacing:    80,
		HysteresisDistance: 8,
		ApexMergeDistance:  5,
		ScoreTolerance:     0.05,
		DefaultTrackWidth:  10,
		Smoother:           SmootherSavitzkyGolay,
		SmoothingWindow:    9,
		PolyOrder:          3,
		MinWidth:           3,
		MaxWidth:           20,
		MaxDelta:           5,
		MinHalfWidth:       2,
		MaxHalfWidth:       15,
		MaxDeltaPer10m:     1.5,
		SectorLength:       100,
		ClampScale:         1,
		GuardrailTolerance: 0.01,
	}
}

// DefaultConfig returns a configuration with every default filled in
func DefaultConfig() Config {
	return Config{
		Track:      TrackConfig{LapDir: "laps", PlanarAxis: PlanarAxisAuto},
		Generation: DefaultGenerationConfig(),
		Output:     OutputConfig{Dir: "out", Resolution: 150},
		MQTT:       MQTTConfig{PublishPrefix: "trackmesh", ClientID: "trackmesh"},
		HTTP:       HTTPConfig{Addr: ":4040"},
	}
}

// Validate checks the generation parameters
func (g GenerationConfig) Validate() error {
	switch {
	case g.SampleCount < 0:
		return fmt.Errorf("generation.sampleCount must be >= 0")
	case g.SampleCount > 0 && g.SampleCount < 3:
		return fmt.Errorf("generation.sampleCount must be >= 3 when set")
	case g.SampleCount == 0 && g.TargetSpacing <= 0:
		return fmt.Errorf("generation.targetSpacing must be > 0")
	case g.PointTarget < 4:
		return fmt.Errorf("generation.pointTarget must be >= 4")
	case g.Tension <= 0:
		return fmt.Errorf("generation.tension must be > 0")
	case g.StraightSpacing <= 0:
		return fmt.Errorf("generation.straightSpacing must be > 0")
	case g.HysteresisDistance < 0 || g.ApexMergeDistance < 0:
		return fmt.Errorf("generation.hysteresisDistance and apexMergeDistance must be >= 0")
	case g.ScoreTolerance < 0:
		return fmt.Errorf("generation.scoreTolerance must be >= 0")
	case g.AllowSingleSide && g.DefaultTrackWidth <= 0:
		return fmt.Errorf("generation.defaultTrackWidth must be > 0 when allowSingleSide is set")
	case !slices.Contains([]string{SmootherSavitzkyGolay, SmootherAverage}, g.Smoother):
		return fmt.Errorf("generation.smoother must be %q or %q, got %q", SmootherSavitzkyGolay, SmootherAverage, g.Smoother)
	case g.SmoothingWindow < 0:
		return fmt.Errorf("generation.smoothingWindow must be >= 0")
	case g.Smoother == SmootherSavitzkyGolay && g.SmoothingWindow >= 3 && (g.PolyOrder < 0 || g.PolyOrder >= g.SmoothingWindow):
		return fmt.Errorf("generation.polyOrder must be in [0, smoothingWindow)")
	case g.MinWidth > g.MaxWidth:
		return fmt.Errorf("generation.minWidth must not exceed maxWidth")
	case g.MinHalfWidth < 0 || g.MinHalfWidth > g.MaxHalfWidth:
		return fmt.Errorf("generation.minHalfWidth must be in [0, maxHalfWidth]")
	case g.MaxDeltaPer10m <= 0:
		return fmt.Errorf("generation.maxDeltaPer10m must be > 0")
	case g.SectorLength <= 0:
		return fmt.Errorf("generation.sectorLength must be > 0")
	case g.GuardrailTolerance < 0:
		return fmt.Errorf("generation.guardrailTolerance must be >= 0")
	}
	return nil
}

// Validate checks the whole configuration
func (c *Config) Validate() error {
	switch c.Track.PlanarAxis {
	case "", PlanarAxisY, PlanarAxisZ, PlanarAxisAuto:
	default:
		return fmt.Errorf("track.planarAxis must be y, z or auto, got %q", c.Track.PlanarAxis)
	}
	if c.MQTT.QoS != nil && *c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", *c.MQTT.QoS)
	}
	return c.Generation.Validate()
}
