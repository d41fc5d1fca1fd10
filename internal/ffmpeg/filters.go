package ffmpeg

import (
	"fmt"
	"strings"

	"github.com/keagan/previewcut/pkg/util"
)

// Fixed segment geometry
const (
	SegmentWide   = 480
	SegmentNarrow = 270
)

// FilterBuilder helps construct complex ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// ScaleExpr adds a scale filter with free-form dimensions and optional flags
func (fb *FilterBuilder) ScaleExpr(width, height, flags string) *FilterBuilder {
	f := fmt.Sprintf("scale=%s:%s", width, height)
	if flags != "" {
		f += ":flags=" + flags
	}
	fb.filters = append(fb.filters, f)
	return fb
}

// FitPad scales into a box keeping aspect ratio and pads the rest with black
func (fb *FilterBuilder) FitPad(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		return fb
	}
	fb.filters = append(fb.filters,
		fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease", width, height),
		fmt.Sprintf("pad=%d:%d:(ow-iw)/2:(oh-ih)/2", width, height),
	)
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps float64) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, "fps="+util.FormatSeconds(fps))
	return fb
}

// DrawText adds a top-right boxed label, as used for segment timestamps
func (fb *FilterBuilder) DrawText(text, fontFile string) *FilterBuilder {
	if text == "" {
		return fb
	}
	parts := []string{fmt.Sprintf("drawtext=text='%s'", text)}
	if fontFile != "" {
		parts = append(parts, "fontfile="+escapeFilterPath(fontFile))
	}
	parts = append(parts,
		"fontcolor=white",
		"fontsize=20",
		"x=(w-text_w)-10",
		"y=10",
		"box=1",
		"boxcolor=black@0.4",
		"boxborderw=5",
	)
	fb.filters = append(fb.filters, strings.Join(parts, ":"))
	return fb
}

// Palette adds the two-pass palette graph used for GIF output
func (fb *FilterBuilder) Palette() *FilterBuilder {
	fb.filters = append(fb.filters, "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse")
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// SegmentFilter picks the fixed segment geometry for an orientation
func SegmentFilter(vertical, blackBars bool) string {
	fb := NewFilterBuilder()
	switch {
	case vertical && blackBars:
		fb.FitPad(SegmentWide, SegmentNarrow)
	case vertical:
		fb.Scale(SegmentNarrow, SegmentWide)
	default:
		fb.Scale(SegmentWide, SegmentNarrow)
	}
	return fb.Build()
}

// PreviewScale returns the scale used for single-strip previews
func PreviewScale(vertical, blackBars bool) (width, height string) {
	if vertical && !blackBars {
		return "-2", "480"
	}
	return "480", "-2"
}

// escapeFilterPath escapes a path for use inside a filter option
func escapeFilterPath(path string) string {
	path = strings.ReplaceAll(path, `\`, `/`)
	path = strings.ReplaceAll(path, `:`, `\\:`)
	path = strings.ReplaceAll(path, `'`, `\\'`)
	return path
}
