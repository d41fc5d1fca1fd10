package extract

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	mu        sync.Mutex
	segments  []ffmpeg.SegmentOptions
	overlays  []ffmpeg.TimestampOptions
	failStart map[float64]bool
	failTag   map[float64]bool
	inflight  int
	peak      int
}

func (f *fakeTool) enter() {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.peak {
		f.peak = f.inflight
	}
	f.mu.Unlock()
}

func (f *fakeTool) leave() {
	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()
}

func (f *fakeTool) ExtractSegment(_ context.Context, opts ffmpeg.SegmentOptions) error {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = append(f.segments, opts)
	if f.failStart[opts.Start] {
		return errors.New("exit status 1")
	}
	return nil
}

func (f *fakeTool) BurnTimestamp(_ context.Context, opts ffmpeg.TimestampOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlays = append(f.overlays, opts)
	if f.failTag[opts.Seconds] {
		return errors.New("exit status 1")
	}
	return nil
}

func points(secs ...float64) []clips.CutPoint {
	pts := make([]clips.CutPoint, len(secs))
	for i, s := range secs {
		pts[i] = clips.CutPoint{Index: i + 1, Fraction: s / 600, Seconds: s}
	}
	return pts
}

func request(pts []clips.CutPoint) Request {
	return Request{
		Source: clips.VideoSource{
			Path:     "/videos/in.mp4",
			Duration: 600,
			Width:    1920,
			Height:   1080,
		},
		Base:            "in",
		ScratchDir:      "/tmp/in-temp",
		Points:          pts,
		SegmentDuration: 1.5,
	}
}

func TestSegmentName(t *testing.T) {
	name := SegmentName("movie", clips.CutPoint{Index: 3, Seconds: 3725})
	assert.Equal(t, "movie_start-01.02.05_cutpoint-3_position-3725.00.mp4", name)
}

func TestExtractSortsAndNamesSegments(t *testing.T) {
	tool := &fakeTool{}
	e := New(zerolog.Nop(), tool, WithConcurrency(3))

	res, err := e.Extract(context.Background(), request(points(30, 90, 150, 210, 270, 330)))
	require.NoError(t, err)

	segs := res.Untagged()
	require.Len(t, segs, 6)
	for i, s := range segs {
		assert.Equal(t, i+1, s.Index)
		assert.Equal(t, "/tmp/in-temp", filepath.Dir(s.Path))
		assert.Equal(t, 1.5, s.Duration)
	}
	assert.Empty(t, res.TaggedSegments())
	assert.Empty(t, tool.overlays)
	assert.LessOrEqual(t, tool.peak, 3)

	for _, call := range tool.segments {
		assert.Equal(t, "scale=480:270", call.Filter)
	}
}

func TestExtractClampsLastSegmentAndSkipsPastEnd(t *testing.T) {
	tool := &fakeTool{}
	e := New(zerolog.Nop(), tool)

	res, err := e.Extract(context.Background(), request(points(100, 599.5, 600)))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Skipped)
	segs := res.Untagged()
	require.Len(t, segs, 2)
	assert.InDelta(t, 0.5, segs[1].Duration, 1e-9)
	assert.Len(t, tool.segments, 2)
}

func TestExtractTaggedCopies(t *testing.T) {
	tool := &fakeTool{failTag: map[float64]bool{90: true}}
	e := New(zerolog.Nop(), tool, WithFontFile("/fonts/a.ttf"))

	req := request(points(30, 90, 150))
	req.Tagged = true
	res, err := e.Extract(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, res.Untagged(), 3, "a failed overlay keeps its plain segment")
	tagged := res.TaggedSegments()
	require.Len(t, tagged, 2)
	assert.Equal(t, []int{1, 3}, []int{tagged[0].Index, tagged[1].Index})
	assert.True(t, strings.HasPrefix(filepath.Base(tagged[0].Path), TaggedPrefix))
	assert.Equal(t, 1, res.Dropped)

	// untagged segment directly precedes its tagged copy
	assert.False(t, res.Segments[0].Tagged)
	assert.True(t, res.Segments[1].Tagged)
	assert.Equal(t, "/fonts/a.ttf", tool.overlays[0].FontFile)
}

func TestExtractDropsFailedSegments(t *testing.T) {
	tool := &fakeTool{failStart: map[float64]bool{90: true}}
	e := New(zerolog.Nop(), tool)

	res, err := e.Extract(context.Background(), request(points(30, 90, 150)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, clips.NewPlaylist(clips.VariantFull, res.Untagged()).Indexes())
	assert.Equal(t, 1, res.Dropped)
}

func TestExtractFailsWhenNothingSurvives(t *testing.T) {
	tool := &fakeTool{failStart: map[float64]bool{30: true, 90: true}}
	e := New(zerolog.Nop(), tool)

	_, err := e.Extract(context.Background(), request(points(30, 90)))
	require.Error(t, err)
	assert.True(t, failure.IsExtraction(err))
}

func TestExtractVerticalFilter(t *testing.T) {
	tool := &fakeTool{}
	e := New(zerolog.Nop(), tool)

	req := request(points(30, 90, 150))
	req.Source.Width, req.Source.Height = 1080, 1920
	req.BlackBars = true
	_, err := e.Extract(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "scale=480:270:force_original_aspect_ratio=decrease,pad=480:270:(ow-iw)/2:(oh-ih)/2", tool.segments[0].Filter)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(zerolog.Nop(), &fakeTool{}).Extract(ctx, request(points(30, 90, 150)))
	assert.ErrorIs(t, err, context.Canceled)
}
