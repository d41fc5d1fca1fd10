package ffmpeg

import (
	"context"
	"fmt"
)

// Output formats understood by Encode
const (
	FormatWebP = "webp"
	FormatWebM = "webm"
	FormatGIF  = "gif"
)

// Profile selects the encoding recipe family
type Profile int

const (
	// ProfilePreview encodes the single-strip preview, downscaled by orientation
	ProfilePreview Profile = iota
	// ProfileSheet encodes the grid sheet at its native size
	ProfileSheet
)

// EncodeOptions configures a final artifact transcode
type EncodeOptions struct {
	Input     string
	Output    string
	Format    string
	Profile   Profile
	Vertical  bool
	BlackBars bool
	GIFFPS    float64
	// ProgressFunc receives every progress block ffmpeg reports
	ProgressFunc func(*Progress)
}

// Encode transcodes an intermediate clip into one artifact format
func (e *Executor) Encode(ctx context.Context, opts EncodeOptions) error {
	args, err := EncodeArgs(opts)
	if err != nil {
		return err
	}

	e.logger.Info().
		Str("format", opts.Format).
		Str("output", opts.Output).
		Msg("encoding artifact")

	runOpts := RunOptions{
		Args:            args,
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("encoding")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("%s encode failed: %w", opts.Format, err)
	}
	return nil
}

// EncodeArgs builds the transcode command for an artifact
func EncodeArgs(opts EncodeOptions) ([]string, error) {
	if opts.Input == "" || opts.Output == "" {
		return nil, fmt.Errorf("input and output paths are required")
	}
	if opts.Format == FormatGIF && opts.GIFFPS <= 0 {
		return nil, fmt.Errorf("gif fps must be positive, got %v", opts.GIFFPS)
	}

	args := []string{"-i", opts.Input}

	switch opts.Format {
	case FormatWebP:
		args = append(args, "-vf", webpFilter(opts))
		args = append(args, "-c:v", "libwebp", "-quality", "80")
		if opts.Profile == ProfilePreview {
			args = append(args, "-compression_level", "6")
		} else {
			args = append(args, "-lossless", "0")
		}
		args = append(args, "-loop", "0", "-an", "-vsync", "0")
	case FormatWebM:
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-b:v", "3M",
			"-vf", NewFilterBuilder().ScaleExpr("iw", "ih", "lanczos").Build(),
			"-crf", "20",
			"-deadline", "good",
			"-cpu-used", "4",
		)
	case FormatGIF:
		args = append(args, "-vf", gifFilter(opts))
		if opts.Profile == ProfilePreview {
			args = append(args, "-loop", "0")
		}
	default:
		return nil, fmt.Errorf("unsupported format: %q", opts.Format)
	}

	return append(args, opts.Output), nil
}

func webpFilter(opts EncodeOptions) string {
	if opts.Profile == ProfileSheet {
		return NewFilterBuilder().ScaleExpr("iw", "ih", "lanczos").Build()
	}
	w, h := PreviewScale(opts.Vertical, opts.BlackBars)
	return NewFilterBuilder().FPS(24).ScaleExpr(w, h, "lanczos").Build()
}

func gifFilter(opts EncodeOptions) string {
	if opts.Profile == ProfileSheet {
		return NewFilterBuilder().ScaleExpr("iw", "ih", "lanczos").FPS(opts.GIFFPS).Build()
	}
	w, h := PreviewScale(opts.Vertical, opts.BlackBars)
	return NewFilterBuilder().FPS(opts.GIFFPS).ScaleExpr(w, h, "lanczos").Palette().Build()
}
