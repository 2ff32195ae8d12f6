package track

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Generator turns calibration laps into a TrackMap. A Generator may be reused
// across runs; its kernel cache is shared between them.
type Generator struct {
	cfg     GenerationConfig
	kernels *KernelCache
	logger  *zap.Logger
	now     func() time.Time
}

// GeneratorOption customizes a Generator
type GeneratorOption func(*Generator)

// WithLogger sets the logger used for run diagnostics
func WithLogger(l *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithKernelCache shares a Savitzky-Golay kernel cache between generators
func WithKernelCache(kc *KernelCache) GeneratorOption {
	return func(g *Generator) {
		if kc != nil {
			g.kernels = kc
		}
	}
}

// WithClock overrides the time source stamped on generated maps
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGenerator validates cfg and returns a Generator
func NewGenerator(cfg GenerationConfig, opts ...GeneratorOption) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation config: %w", err)
	}
	g := &Generator{
		cfg:     cfg,
		kernels: NewKernelCache(),
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the generation parameters
func (g *Generator) Config() GenerationConfig { return g.cfg }

// Kernels returns the kernel cache owned by the generator
func (g *Generator) Kernels() *KernelCache { return g.kernels }

// Generate runs the full pipeline over the given laps
func (g *Generator) Generate(traces []Trace) (*TrackMap, error) {
	cfg := g.cfg
	if len(traces) == 0 {
		return nil, &DataError{Op: "generate", Want: 1, Err: ErrInsufficientSamples}
	}

	n := cfg.SampleCount
	if n <= 0 {
		n = GridSizeFor(traces, cfg.TargetSpacing)
	}
	g.logger.Debug("resampling laps", zap.Int("laps", len(traces)), zap.Int("gridSize", n))

	rg, err := BuildRoleGrids(traces, n)
	if err != nil {
		return nil, err
	}
	for _, role := range Roles {
		if rg.Has(role) {
			g.logger.Debug("role grid ready",
				zap.String("role", string(role)),
				zap.Int("laps", len(rg.Laps[role])),
				zap.Float64s("headingOffsets", rg.Offsets[role]))
		}
	}

	left, right, synthesized, err := g.edgeGrids(rg)
	if err != nil {
		return nil, err
	}

	center := rg.Averaged[RoleCenter]
	if center == nil {
		if center, err = MidpointGrid(left, right); err != nil {
			return nil, err
		}
	}
	spacing := LoopLength(center.Points()) / float64(n)
	if spacing <= 0 || !isFinite(spacing) {
		return nil, &DataError{Op: "generate", Role: RoleCenter, Err: fmt.Errorf("%w: centerline has zero length", ErrInsufficientSamples)}
	}

	splines, err := BuildSplines(left, right, center, SplineParams{
		SampleCount:        n,
		PointTarget:        cfg.PointTarget,
		Tension:            cfg.Tension,
		Spacing:            spacing,
		StraightSpacing:    cfg.StraightSpacing,
		HysteresisDistance: cfg.HysteresisDistance,
		ApexMergeDistance:  cfg.ApexMergeDistance,
		ScoreTolerance:     cfg.ScoreTolerance,
		SmoothScore:        cfg.SmoothApexScore,
	})
	if err != nil {
		return nil, err
	}
	g.logger.Debug("splines fitted",
		zap.Int("anchors", len(splines.Anchors[RoleCenter])),
		zap.Int("apexes", len(splines.Apexes)),
		zap.Int("flips", splines.Inside.Flips),
		zap.Int("insideLeft", splines.Inside.Count(RoleLeft)),
		zap.Int("insideRight", splines.Inside.Count(RoleRight)))

	frames, err := ComputeFrames(splines.Center)
	if err != nil {
		return nil, err
	}
	for i := range frames {
		frames[i].GridIndex = splines.GridIndex[i]
	}

	raw, err := RawHalfWidths(frames, EdgeSamples(left, frames), EdgeSamples(right, frames))
	if err != nil {
		return nil, err
	}
	target := TargetWidth(raw)
	envelope := ConstantWidthEnvelope(frames, raw, target, cfg.EnvelopeMinWidth)

	outliers := DetectWidthOutliers(envelope, OutlierLimits{MinWidth: cfg.MinWidth, MaxWidth: cfg.MaxWidth, MaxDelta: cfg.MaxDelta})
	if outliers.Count() > 0 {
		g.logger.Info("width outliers detected",
			zap.Int("count", outliers.Count()),
			zap.Int("negative", outliers.Negative),
			zap.Int("total", outliers.Total),
			zap.Int("delta", outliers.Delta))
	}

	clamped, hardClamped := ClampHalfWidths(envelope, cfg.MinHalfWidth, cfg.MaxHalfWidth)
	smoothed, err := g.smooth(clamped, spacing)
	if err != nil {
		return nil, err
	}

	limit := PerSampleLimit(cfg.MaxDeltaPer10m, spacing)
	sector := max(1, int(math.Round(cfg.SectorLength/spacing)))
	slopeLeft := ClampWidthDeltas(smoothed.Left, limit, sector)
	slopeRight := ClampWidthDeltas(smoothed.Right, limit, sector)
	sloped := WidthProfile{Left: slopeLeft.Values, Right: slopeRight.Values}

	final, guard := EnforceWidthConstraints(frames, sloped, rg.Laps[RoleLeft], rg.Laps[RoleRight], GuardrailParams{
		ClampScale: cfg.ClampScale,
		Tolerance:  cfg.GuardrailTolerance,
	})
	if guard.LeftCount+guard.RightCount > 0 {
		g.logger.Info("guardrail clamped widths",
			zap.Int("left", guard.LeftCount),
			zap.Int("right", guard.RightCount),
			zap.Int("overshoots", guard.LeftOvershoots+guard.RightOvershoots),
			zap.Float64("clampScale", guard.ClampScale))
	}

	centerline := lo.Map(frames, func(f CenterlineSample, _ int) Point { return f.Position })
	tm := &TrackMap{
		RunID:       uuid.NewString(),
		SampleCount: len(frames),
		Centerline:  centerline,
		LeftWidths:  final.Left,
		RightWidths: final.Right,
		LeftEdge:    OffsetPoints(frames, final.Left, 1),
		RightEdge:   OffsetPoints(frames, final.Right, -1),
		Apexes:      lo.Map(splines.Apexes, func(i int, _ int) Point { return center[i].Pos() }),
		GeneratedAt: g.now().Unix(),
		Metadata: Metadata{
			SmoothingWindow: cfg.SmoothingWindow,
			Smoother:        cfg.Smoother,
			SourceLaps:      sourceLaps(rg),
			Spacing:         spacing,
			GridSize:        n,
			Length:          LoopLength(centerline),
			AnchorCounts:    splines.AnchorCounts(),
			FlipCount:       splines.Inside.Flips,
			ApexCount:       len(splines.Apexes),
			SynthesizedSide: synthesized,
			TargetWidth:     target,
			HeadingOffsets:  rg.Offsets,
			Outliers:        outliers,
			HardClamped:     hardClamped,
			Slope: SlopeReport{
				PerSampleLimit: limit,
				SectorLength:   cfg.SectorLength,
				Left:           slopeLeft,
				Right:          slopeRight,
			},
			Guardrail:      guard,
			RawWidths:      raw,
			EnvelopeWidths: envelope,
		},
	}
	tm.TrackID, tm.TrackName = trackIdentity(traces)

	g.logger.Info("track map generated",
		zap.String("runId", tm.RunID),
		zap.String("trackId", tm.TrackID),
		zap.Int("samples", tm.SampleCount),
		zap.Float64("length", tm.Metadata.Length),
		zap.Float64("targetWidth", target))
	return tm, nil
}

// edgeGrids returns the left and right grids, synthesizing a missing side
// when the configuration allows it.
func (g *Generator) edgeGrids(rg *RoleGrids) (ProgressGrid, ProgressGrid, Role, error) {
	hasLeft, hasRight := rg.Has(RoleLeft), rg.Has(RoleRight)
	switch {
	case hasLeft && hasRight:
		return rg.Averaged[RoleLeft], rg.Averaged[RoleRight], "", nil
	case !hasLeft && !hasRight:
		return nil, nil, "", &DataError{Op: "generate", Err: fmt.Errorf("%w: no left or right laps", ErrMissingSide), Want: 2}
	}

	present, missing := RoleLeft, RoleRight
	if !hasLeft {
		present, missing = RoleRight, RoleLeft
	}
	if !g.cfg.AllowSingleSide {
		return nil, nil, "", &DataError{Op: "generate", Role: missing, Err: fmt.Errorf("%w: both sides are required", ErrMissingSide)}
	}
	g.logger.Warn("synthesizing missing side",
		zap.String("role", string(missing)),
		zap.Float64("width", g.cfg.DefaultTrackWidth))
	synth, err := SynthesizeSide(rg.Averaged[present], present, g.cfg.DefaultTrackWidth)
	if err != nil {
		return nil, nil, "", err
	}
	if present == RoleLeft {
		return rg.Averaged[RoleLeft], synth, missing, nil
	}
	return synth, rg.Averaged[RoleRight], missing, nil
}

// smooth applies the configured smoother to both sides
func (g *Generator) smooth(w WidthProfile, spacing float64) (WidthProfile, error) {
	if g.cfg.Smoother == SmootherAverage {
		return WidthProfile{
			Left:  SmoothArray(w.Left, g.cfg.SmoothingWindow),
			Right: SmoothArray(w.Right, g.cfg.SmoothingWindow),
		}, nil
	}
	left, err := SavitzkyGolay(w.Left, g.cfg.SmoothingWindow, g.cfg.PolyOrder, spacing, g.kernels)
	if err != nil {
		return WidthProfile{}, err
	}
	right, err := SavitzkyGolay(w.Right, g.cfg.SmoothingWindow, g.cfg.PolyOrder, spacing, g.kernels)
	if err != nil {
		return WidthProfile{}, err
	}
	return WidthProfile{Left: left, Right: right}, nil
}

func sourceLaps(rg *RoleGrids) []string {
	var out []string
	for _, role := range Roles {
		out = append(out, rg.Sources[role]...)
	}
	return out
}

// trackIdentity takes the first non-empty track id and name among the laps
func trackIdentity(traces []Trace) (id, name string) {
	for _, tr := range traces {
		if id == "" {
			id = tr.TrackID
		}
		if name == "" {
			name = tr.TrackName
		}
	}
	return id, name
}
