package ffmpeg

import (
	"context"
	"fmt"
	"strconv"

	"github.com/keagan/previewcut/pkg/util"
)

// SegmentOptions defines a single preview segment extraction
type SegmentOptions struct {
	Input    string
	Output   string
	Start    float64
	Duration float64
	// Filter is the scale/pad chain, see SegmentFilter
	Filter string
}

// ExtractSegment cuts a short video-only clip, re-encoded at the fixed
// segment geometry with metadata, chapters, data, subtitles and audio stripped.
func (e *Executor) ExtractSegment(ctx context.Context, opts SegmentOptions) error {
	args, err := SegmentArgs(opts)
	if err != nil {
		return err
	}

	e.logger.Debug().
		Str("output", opts.Output).
		Float64("start", opts.Start).
		Float64("duration", opts.Duration).
		Msg("extracting segment")

	runOpts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("segment extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("segment extraction failed: %w", err)
	}
	return nil
}

// SegmentArgs builds the extraction command for opts
func SegmentArgs(opts SegmentOptions) ([]string, error) {
	if opts.Input == "" || opts.Output == "" {
		return nil, fmt.Errorf("input and output paths are required")
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("invalid segment duration: %v", opts.Duration)
	}

	args := []string{
		"-ss", util.FormatSeconds(opts.Start),
		"-i", opts.Input,
		"-map", "0:v:0",
		"-c:v", DefaultVideoCodec,
		"-crf", strconv.Itoa(DefaultCRF),
		"-preset", DefaultPreset,
		"-map_metadata", "-1",
		"-map_chapters", "-1",
		"-dn", "-sn", "-an",
		"-t", util.FormatSeconds(opts.Duration),
	}
	if opts.Filter != "" {
		args = append(args, "-vf", opts.Filter)
	}
	return append(args, opts.Output), nil
}

// TimestampOptions defines a burned-in timestamp render
type TimestampOptions struct {
	Input    string
	Output   string
	Seconds  float64
	FontFile string
}

// BurnTimestamp renders a copy of a segment with its start time in the top-right corner
func (e *Executor) BurnTimestamp(ctx context.Context, opts TimestampOptions) error {
	if opts.Input == "" || opts.Output == "" {
		return fmt.Errorf("input and output paths are required")
	}

	filter := NewFilterBuilder().
		DrawText(util.FormatClockEscaped(opts.Seconds), opts.FontFile).
		Build()

	args := []string{
		"-i", opts.Input,
		"-vf", filter,
		"-c:v", DefaultVideoCodec,
		"-crf", strconv.Itoa(DefaultCRF),
		"-preset", DefaultPreset,
		opts.Output,
	}

	if err := e.Run(ctx, RunOptions{Args: args}); err != nil {
		return fmt.Errorf("timestamp overlay failed: %w", err)
	}
	return nil
}
