package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/keagan/previewcut/internal/artifact"
	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/config"
	"github.com/keagan/previewcut/internal/extract"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/keagan/previewcut/internal/ledger"
	"github.com/keagan/previewcut/internal/metrics"
	"github.com/keagan/previewcut/internal/planner"
	"github.com/keagan/previewcut/internal/playlist"
	"github.com/keagan/previewcut/internal/preview"
	"github.com/keagan/previewcut/internal/sheet"
	"github.com/rs/zerolog"
)

// rejectedCodec cannot be cut reliably and is refused up front
const rejectedCodec = "msmpeg4v3"

var _ Tool = (*ffmpeg.Executor)(nil)

// Pipeline turns one source video into its preview and sheet artifacts
type Pipeline struct {
	logger    zerolog.Logger
	tool      Tool
	cfg       *config.Config
	ledger    *ledger.Ledger
	confirmer planner.Confirmer
	seed      *int64
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLedger records every run in l
func WithLedger(l *ledger.Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithConfirmer replaces the terminal prompt used when confirm_cut_points is set
func WithConfirmer(c planner.Confirmer) Option {
	return func(p *Pipeline) { p.confirmer = c }
}

// WithSeed makes every run draw from the same random sequence
func WithSeed(seed int64) Option {
	return func(p *Pipeline) { p.seed = &seed }
}

// New creates a pipeline. The configuration is validated on every run.
func New(logger zerolog.Logger, tool Tool, cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: logger.With().Str("component", "pipeline").Logger(),
		tool:   tool,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(p)
	}
	if cfg.Preview.ConfirmCutPoints && p.confirmer == nil {
		p.confirmer = planner.NewTerminalConfirmer(logger)
	}
	return p
}

// Run processes one video. Failures are returned inside the report, never
// raised, so a batch can carry on with the next source.
func (p *Pipeline) Run(ctx context.Context, source string) *Report {
	return p.execute(ctx, source, p.run)
}

// execute runs body for source and settles the report, the metrics and the ledger
func (p *Pipeline) execute(ctx context.Context, source string, body func(context.Context, zerolog.Logger, *Report) error) *Report {
	started := time.Now()
	report := &Report{
		RunID:  uuid.NewString(),
		Source: source,
		State:  failure.StageConfig,
	}
	logger := p.logger.With().Str("run_id", report.RunID).Str("source", source).Logger()

	err := body(ctx, logger, report)
	report.Duration = time.Since(started)
	if err != nil {
		if fe, ok := failure.As(err); ok {
			fe.WithSource(source)
		}
		report.Err = err
		report.State = failure.StageFailed
		logger.Error().Err(err).Dur("took", report.Duration).Msg("video failed")
	} else {
		report.State = failure.StageDone
	}

	metrics.VideosTotal.WithLabelValues(report.result()).Inc()
	p.record(ctx, logger, report, started)
	return report
}

func (p *Pipeline) run(ctx context.Context, logger zerolog.Logger, report *Report) error {
	cfg := p.cfg
	source := report.Source

	if cfg.IsExcluded(source) {
		logger.Warn().Msg("source is excluded, skipping")
		report.Excluded = true
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	paths := Resolve(cfg, source)
	report.Skipped = paths.Skipped
	for _, s := range paths.Skipped {
		logger.Info().Str("path", s).Msg("artifact exists, skipping")
	}
	if paths.Empty() {
		logger.Info().Msg("nothing to build")
		return nil
	}

	report.State = failure.StageProbing
	src, err := p.probe(ctx, source)
	if err != nil {
		return err
	}

	report.State = failure.StagePlanning
	rng := p.newRand()
	plan, err := p.plan(ctx, logger, src, rng)
	if err != nil {
		return err
	}
	report.Plan = plan

	if err := paths.NewScratch(); err != nil {
		return failure.New(failure.Extraction, failure.StageExtracting, source, fmt.Errorf("create scratch directory: %w", err))
	}
	if !cfg.KeepTemp {
		defer func() {
			if err := os.RemoveAll(paths.Scratch); err != nil {
				logger.Warn().Err(err).Str("path", paths.Scratch).Msg("failed to remove scratch directory")
			}
		}()
	}

	report.State = failure.StageExtracting
	stageStart := time.Now()
	mode := playlist.Mode(cfg.Preview.TimestampsMode)
	extractor := extract.New(logger, p.tool,
		extract.WithConcurrency(cfg.FFmpeg.ExtractConcurrency),
		extract.WithFontFile(cfg.FFmpeg.FontFile),
	)
	res, err := extractor.Extract(ctx, extract.Request{
		Source:          src,
		Base:            paths.Base,
		ScratchDir:      paths.Scratch,
		Points:          plan.Points,
		SegmentDuration: plan.SegmentDuration,
		BlackBars:       cfg.Preview.BlackBars,
		Tagged:          mode.NeedsTagged(cfg.SheetEnabled()),
	})
	metrics.ObserveStage(string(failure.StageExtracting), stageStart)
	if err != nil {
		return err
	}
	metrics.SegmentsExtractedTotal.WithLabelValues("ok").Add(float64(len(res.Segments)))
	metrics.SegmentsExtractedTotal.WithLabelValues("dropped").Add(float64(res.Dropped))
	report.Segments = len(res.Untagged())

	report.State = failure.StageFiltering
	gifTarget := cfg.Preview.Segments
	if cfg.GIFEnabled() {
		gifTarget = cfg.Preview.GIFSegments
	}
	set, err := playlist.Build(res.Segments, mode, cfg.SheetEnabled(), gifTarget, rng)
	if err != nil {
		return err
	}

	report.State = failure.StageAssembling
	stageStart = time.Now()
	artifacts, layout, err := p.assemble(ctx, logger, src, paths, set, plan, rng)
	metrics.ObserveStage(string(failure.StageAssembling), stageStart)
	if err != nil {
		return err
	}
	report.Sheet = layout

	report.State = failure.StagePublishing
	stageStart = time.Now()
	if err := p.publish(source, artifacts); err != nil {
		return err
	}
	metrics.ObserveStage(string(failure.StagePublishing), stageStart)
	report.Artifacts = artifacts

	for _, a := range artifacts {
		w, h, err := artifact.Dimensions(ctx, a.Target, p.tool)
		if err != nil {
			logger.Debug().Err(err).Str("path", a.Target).Msg("could not read artifact dimensions")
			continue
		}
		logger.Info().
			Str("kind", string(a.Kind)).
			Str("path", a.Target).
			Int("width", w).
			Int("height", h).
			Msg("artifact published")
	}
	return nil
}

// probe reads the source metadata and rejects sources the pipeline cannot handle
func (p *Pipeline) probe(ctx context.Context, source string) (clips.VideoSource, error) {
	defer metrics.ObserveStage(string(failure.StageProbing), time.Now())

	info, err := p.tool.ProbeVideo(ctx, source)
	if err != nil {
		return clips.VideoSource{}, failure.New(failure.Probe, failure.StageProbing, source, err).
			WithOutput(ffmpeg.CommandOutput(err))
	}

	src := clips.VideoSource{
		Path:     source,
		Duration: info.Seconds(),
		Width:    info.Width,
		Height:   info.Height,
		FPS:      info.FPS,
		Codec:    info.VideoCodec,
		Rotation: info.Rotation,
		Info:     info,
	}

	switch {
	case src.Rotation != 0:
		return src, failure.Errorf(failure.UnsupportedSource, failure.StageProbing,
			"rotated video (%d degrees) is not supported", src.Rotation)
	case strings.EqualFold(src.Codec, rejectedCodec):
		return src, failure.Errorf(failure.UnsupportedSource, failure.StageProbing,
			"codec %s is not supported", src.Codec)
	case src.Duration <= p.cfg.Preview.MinDuration:
		return src, failure.Errorf(failure.DurationTooShort, failure.StageProbing,
			"duration %.2fs is not above the %.0fs minimum", src.Duration, p.cfg.Preview.MinDuration)
	}
	return src, nil
}

func (p *Pipeline) plan(ctx context.Context, logger zerolog.Logger, src clips.VideoSource, rng *rand.Rand) (*planner.Plan, error) {
	defer metrics.ObserveStage(string(failure.StagePlanning), time.Now())

	opts := []planner.Option{
		planner.WithRand(rng),
		planner.WithRetryPolicy(p.cfg.Retry),
	}
	if p.cfg.Preview.ConfirmCutPoints && p.confirmer != nil {
		opts = append(opts, planner.WithConfirmer(p.confirmer))
	}

	plan, err := planner.New(logger, p.tool, opts...).Plan(ctx, planner.Request{
		Path:            src.Path,
		Duration:        src.Duration,
		Segments:        p.cfg.Preview.Segments,
		SegmentDuration: p.cfg.Preview.SegmentDuration,
		Blacklist:       p.cfg.Preview.BlacklistedCutPoints,
		LastCutPoint:    p.cfg.Preview.LastCutPoint,
		Print:           p.cfg.Preview.PrintCutPoints,
	})
	if plan != nil {
		metrics.PlanDiscardsTotal.Add(float64(plan.Discards))
	}
	return plan, err
}

func (p *Pipeline) assemble(ctx context.Context, logger zerolog.Logger, src clips.VideoSource, paths Paths,
	set playlist.Set, plan *planner.Plan, rng *rand.Rand) ([]clips.Artifact, *sheet.Layout, error) {
	cfg := p.cfg

	artifacts, err := preview.New(logger, p.tool).Assemble(ctx, preview.Request{
		Source:     src,
		Base:       paths.Base,
		ScratchDir: paths.Scratch,
		Full:       set.Full,
		GIF:        set.GIF,
		BlackBars:  cfg.Preview.BlackBars,
		GIFFPS:     cfg.Preview.GIFFPS,
		Targets:    paths.Preview,
	})
	if err != nil {
		return nil, nil, err
	}

	if len(paths.Sheet) == 0 {
		return artifacts, nil, nil
	}

	checksum, err := sheet.FileMD5(src.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to hash source, header shows N/A")
	}

	res, err := sheet.New(logger, p.tool).Assemble(ctx, sheet.Request{
		Source:          src,
		Base:            paths.Base,
		ScratchDir:      paths.Scratch,
		Playlist:        set.Sheet,
		Grid:            cfg.Preview.GridWidth,
		Kind:            sheet.Kind(cfg.Preview.Layout),
		BlackBars:       cfg.Preview.BlackBars,
		SegmentDuration: plan.SegmentDuration,
		GIFFPS:          cfg.Preview.GIFFPS,
		FontFile:        cfg.FFmpeg.FontFile,
		Title:           cfg.Preview.Title,
		Date:            cfg.Preview.Date,
		Checksum:        checksum,
		Targets:         paths.Sheet,
		OriginalTarget:  paths.SheetOriginal,
		Rand:            rng,
	})
	if err != nil {
		return nil, nil, err
	}
	return append(artifacts, res.Artifacts...), &res.Layout, nil
}

// Plan probes source and draws an accepted cut point set without extracting anything
func (p *Pipeline) Plan(ctx context.Context, source string) (*planner.Plan, clips.VideoSource, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, clips.VideoSource{}, err
	}
	src, err := p.probe(ctx, source)
	if err != nil {
		return nil, src, err
	}
	logger := p.logger.With().Str("source", source).Logger()
	plan, err := p.plan(ctx, logger, src, p.newRand())
	return plan, src, err
}

func (p *Pipeline) newRand() *rand.Rand {
	if p.seed != nil {
		return rand.New(rand.NewSource(*p.seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (p *Pipeline) record(ctx context.Context, logger zerolog.Logger, report *Report, started time.Time) {
	if p.ledger == nil {
		return
	}
	run := ledger.Run{
		ID:         report.RunID,
		Source:     report.Source,
		StartedAt:  started,
		FinishedAt: started.Add(report.Duration),
		State:      string(report.State),
		Segments:   report.Segments,
		Artifacts:  report.Published(),
	}
	if report.Err != nil {
		run.Error = report.Err.Error()
	}
	// a cancelled batch still records how far each video got
	if err := p.ledger.Record(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn().Err(err).Msg("failed to record run")
	}
}
