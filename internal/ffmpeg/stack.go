package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/keagan/previewcut/pkg/util"
)

// ImageVideoOptions turns a still image into a fixed-length clip
type ImageVideoOptions struct {
	Image    string
	Output   string
	FPS      float64
	Duration float64
}

// ImageToVideo loops a still image for the given duration at the given frame rate
func (e *Executor) ImageToVideo(ctx context.Context, opts ImageVideoOptions) error {
	if opts.Image == "" || opts.Output == "" {
		return fmt.Errorf("image and output paths are required")
	}
	if opts.FPS <= 0 || opts.Duration <= 0 {
		return fmt.Errorf("invalid image clip fps=%v duration=%v", opts.FPS, opts.Duration)
	}

	args := []string{
		"-loop", "1",
		"-framerate", util.FormatSeconds(opts.FPS),
		"-t", util.FormatSeconds(opts.Duration),
		"-i", opts.Image,
		"-c:v", DefaultVideoCodec,
		"-pix_fmt", "yuv420p",
		opts.Output,
	}

	if err := e.Run(ctx, RunOptions{Args: args}); err != nil {
		return fmt.Errorf("image clip failed: %w", err)
	}
	return nil
}

// StackOptions runs a filter graph over several inputs producing one [v] output
type StackOptions struct {
	Inputs        []string
	Output        string
	FilterComplex string
	// FrameRate forces the output rate when non-zero
	FrameRate float64
}

// Stack renders a multi-input filter graph such as hstack, vstack or xstack
func (e *Executor) Stack(ctx context.Context, opts StackOptions) error {
	args, err := StackArgs(opts)
	if err != nil {
		return err
	}

	e.logger.Debug().
		Int("inputs", len(opts.Inputs)).
		Str("output", opts.Output).
		Str("filter", opts.FilterComplex).
		Msg("stacking")

	if err := e.Run(ctx, RunOptions{Args: args}); err != nil {
		return fmt.Errorf("stack failed: %w", err)
	}
	return nil
}

// StackArgs builds the command for a stacking graph
func StackArgs(opts StackOptions) ([]string, error) {
	if len(opts.Inputs) == 0 {
		return nil, fmt.Errorf("no input files provided")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}
	if opts.FilterComplex == "" {
		return nil, fmt.Errorf("filter graph is required")
	}

	args := make([]string, 0, 2*len(opts.Inputs)+8)
	for _, in := range opts.Inputs {
		args = append(args, "-i", in)
	}
	args = append(args, "-filter_complex", opts.FilterComplex, "-map", "[v]")
	if opts.FrameRate > 0 {
		args = append(args, "-r", util.FormatSeconds(opts.FrameRate))
	}
	return append(args, opts.Output), nil
}

// Transform applies a single-input filter graph, used for the sheet downscale pass
func (e *Executor) Transform(ctx context.Context, input, output, filter string) error {
	if input == "" || output == "" {
		return fmt.Errorf("input and output paths are required")
	}
	args := []string{"-i", input, "-filter_complex", filter, output}
	if err := e.Run(ctx, RunOptions{Args: args}); err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}
	return nil
}

// HStackFilter stacks n inputs side by side
func HStackFilter(n int) string {
	return inputLabels(n) + "hstack=inputs=" + strconv.Itoa(n) + "[v]"
}

// VStackFilter stacks n inputs top to bottom
func VStackFilter(n int) string {
	return inputLabels(n) + "vstack=inputs=" + strconv.Itoa(n) + "[v]"
}

// Tile places one input at a pixel position, optionally resized
type Tile struct {
	X, Y          int
	Width, Height int
	// Scale resizes the input to Width x Height before placing it
	Scale bool
}

// XStackFilter places each input at its tile position on a width x height
// canvas. Uncovered cells are filled black. A zero width or height leaves the
// canvas at the extent of the tiles.
func XStackFilter(tiles []Tile, width, height int) string {
	var b strings.Builder
	labels := make([]string, len(tiles))
	for i, t := range tiles {
		if t.Scale {
			fmt.Fprintf(&b, "[%d:v]scale=%d:%d[s%d];", i, t.Width, t.Height, i)
			labels[i] = fmt.Sprintf("[s%d]", i)
		} else {
			labels[i] = fmt.Sprintf("[%d:v]", i)
		}
	}
	canvas := width > 0 && height > 0

	// xstack needs at least two inputs, a lone tile is padded onto the canvas
	if len(tiles) == 1 {
		t := tiles[0]
		w, h := width, height
		if !canvas {
			w, h = t.X+t.Width, t.Y+t.Height
		}
		b.WriteString(labels[0])
		fmt.Fprintf(&b, "pad=%d:%d:%d:%d:color=black[v]", w, h, t.X, t.Y)
		return b.String()
	}

	layout := make([]string, len(tiles))
	for i, t := range tiles {
		b.WriteString(labels[i])
		layout[i] = fmt.Sprintf("%d_%d", t.X, t.Y)
	}
	fmt.Fprintf(&b, "xstack=inputs=%d:layout=%s:fill=black", len(tiles), strings.Join(layout, "|"))
	if canvas {
		fmt.Fprintf(&b, "[x];[x]pad=%d:%d:0:0:color=black[v]", width, height)
	} else {
		b.WriteString("[v]")
	}
	return b.String()
}

func inputLabels(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "[%d:v]", i)
	}
	return b.String()
}
