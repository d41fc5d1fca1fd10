package extract

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/keagan/previewcut/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency bounds parallel ffmpeg extractions
const DefaultConcurrency = 4

// TaggedPrefix marks copies carrying a burned-in timestamp
const TaggedPrefix = "timestamped_"

// Tool is the part of the ffmpeg executor the extractor drives
type Tool interface {
	ExtractSegment(ctx context.Context, opts ffmpeg.SegmentOptions) error
	BurnTimestamp(ctx context.Context, opts ffmpeg.TimestampOptions) error
}

// Extractor cuts preview segments out of a source
type Extractor struct {
	logger      zerolog.Logger
	tool        Tool
	concurrency int64
	fontFile    string
}

// Option configures an Extractor
type Option func(*Extractor)

// WithConcurrency sets how many segments are extracted at once
func WithConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.concurrency = int64(n)
		}
	}
}

// WithFontFile sets the font used for timestamp overlays
func WithFontFile(path string) Option {
	return func(e *Extractor) { e.fontFile = path }
}

// New creates an extractor around tool
func New(logger zerolog.Logger, tool Tool, opts ...Option) *Extractor {
	e := &Extractor{
		logger:      logger.With().Str("component", "extract").Logger(),
		tool:        tool,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes the segments of one run
type Request struct {
	Source          clips.VideoSource
	Base            string
	ScratchDir      string
	Points          []clips.CutPoint
	SegmentDuration float64
	BlackBars       bool
	// Tagged also renders a timestamped copy of every segment
	Tagged bool
}

// Result holds the surviving segments sorted by index, tagged copies after
// their untagged source.
type Result struct {
	Segments []clips.Segment
	// Dropped counts segments and tagged copies that failed
	Dropped int
	// Skipped counts points at or past the end of the source
	Skipped int
}

// Untagged returns the plain segments
func (r *Result) Untagged() []clips.Segment {
	return r.filter(false)
}

// TaggedSegments returns the timestamped copies
func (r *Result) TaggedSegments() []clips.Segment {
	return r.filter(true)
}

func (r *Result) filter(tagged bool) []clips.Segment {
	var out []clips.Segment
	for _, s := range r.Segments {
		if s.Tagged == tagged {
			out = append(out, s)
		}
	}
	return out
}

// SegmentName is the scratch file name of the segment cut at pt
func SegmentName(base string, pt clips.CutPoint) string {
	return fmt.Sprintf("%s_start-%s_cutpoint-%d_position-%.2f.mp4",
		base, util.FormatClockFilename(pt.Seconds), pt.Index, pt.Seconds)
}

// Extract cuts one segment per cut point. Failed segments are logged and
// dropped; the run only fails when nothing survives.
func (e *Extractor) Extract(ctx context.Context, req Request) (*Result, error) {
	if req.SegmentDuration <= 0 {
		return nil, failure.Errorf(failure.Configuration, failure.StageExtracting,
			"invalid segment duration %v", req.SegmentDuration)
	}

	filter := ffmpeg.SegmentFilter(req.Source.Vertical(), req.BlackBars)
	sem := semaphore.NewWeighted(e.concurrency)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		result  = &Result{}
		slots   = make([][]clips.Segment, len(req.Points))
		waitErr error
	)

	for i, pt := range req.Points {
		if pt.Seconds >= req.Source.Duration {
			e.logger.Warn().
				Int("cut_point", pt.Index).
				Float64("start", pt.Seconds).
				Msg("cut point is past the end of the source, skipping")
			result.Skipped++
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			waitErr = err
			break
		}

		wg.Add(1)
		go func(i int, pt clips.CutPoint) {
			defer wg.Done()
			defer sem.Release(1)

			segs, dropped := e.extractOne(ctx, req, filter, pt)
			mu.Lock()
			slots[i] = segs
			result.Dropped += dropped
			mu.Unlock()
		}(i, pt)
	}
	wg.Wait()

	if waitErr != nil {
		return nil, waitErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, segs := range slots {
		result.Segments = append(result.Segments, segs...)
	}
	clips.SortByIndex(result.Segments)

	if len(result.Untagged()) == 0 {
		return nil, failure.Errorf(failure.Extraction, failure.StageExtracting,
			"no segment survived extraction (%d dropped, %d skipped)", result.Dropped, result.Skipped).
			WithSource(req.Source.Path)
	}

	e.logger.Info().
		Int("segments", len(result.Untagged())).
		Int("tagged", len(result.TaggedSegments())).
		Int("dropped", result.Dropped).
		Msg("segments extracted")

	return result, nil
}

// extractOne cuts the segment at pt and, when requested, its tagged copy
func (e *Extractor) extractOne(ctx context.Context, req Request, filter string, pt clips.CutPoint) ([]clips.Segment, int) {
	name := SegmentName(req.Base, pt)
	cutDur := math.Min(req.SegmentDuration, req.Source.Duration-pt.Seconds)

	seg := clips.Segment{
		Index:    pt.Index,
		Path:     filepath.Join(req.ScratchDir, name),
		Start:    pt.Seconds,
		Duration: cutDur,
	}

	err := e.tool.ExtractSegment(ctx, ffmpeg.SegmentOptions{
		Input:    req.Source.Path,
		Output:   seg.Path,
		Start:    seg.Start,
		Duration: seg.Duration,
		Filter:   filter,
	})
	if err != nil {
		e.logDrop(err, pt, "segment")
		return nil, 1
	}

	out := []clips.Segment{seg}
	if !req.Tagged {
		return out, 0
	}

	tagged := seg
	tagged.Tagged = true
	tagged.Path = filepath.Join(req.ScratchDir, TaggedPrefix+name)

	err = e.tool.BurnTimestamp(ctx, ffmpeg.TimestampOptions{
		Input:    seg.Path,
		Output:   tagged.Path,
		Seconds:  seg.Start,
		FontFile: e.fontFile,
	})
	if err != nil {
		e.logDrop(err, pt, "timestamp overlay")
		return out, 1
	}
	return append(out, tagged), 0
}

func (e *Extractor) logDrop(err error, pt clips.CutPoint, what string) {
	if errors.Is(err, context.Canceled) {
		return
	}
	ferr := failure.New(failure.Extraction, failure.StageExtracting, "", err).
		WithOutput(ffmpeg.CommandOutput(err))
	e.logger.Error().
		Err(ferr).
		Int("cut_point", pt.Index).
		Float64("start", pt.Seconds).
		Str("output", ferr.Output).
		Msgf("%s failed, dropping", what)
}
