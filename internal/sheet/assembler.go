package sheet

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/keagan/previewcut/pkg/util"
	"github.com/rs/zerolog"
)

// Scratch names of the rendered sheet
const (
	renderName   = "final_thumbnail_sheet.mp4"
	originalName = "final_thumbnail_sheet_og.mp4"
	// downscaleFilter brings wide 4-column sheets down to a friendlier width
	downscaleFilter = "scale=1890:trunc(ih/2)*2"
	fallbackFPS     = 30
)

// Tool is the part of the ffmpeg executor the sheet assembler drives
type Tool interface {
	ImageToVideo(ctx context.Context, opts ffmpeg.ImageVideoOptions) error
	Stack(ctx context.Context, opts ffmpeg.StackOptions) error
	Transform(ctx context.Context, input, output, filter string) error
	Encode(ctx context.Context, opts ffmpeg.EncodeOptions) error
}

// Assembler renders the grid sheet artifacts
type Assembler struct {
	logger zerolog.Logger
	tool   Tool
}

// New creates a sheet assembler
func New(logger zerolog.Logger, tool Tool) *Assembler {
	return &Assembler{
		logger: logger.With().Str("component", "sheet").Logger(),
		tool:   tool,
	}
}

// Request describes one sheet render
type Request struct {
	Source          clips.VideoSource
	Base            string
	ScratchDir      string
	Playlist        clips.Playlist
	Grid            int
	Kind            Kind
	BlackBars       bool
	SegmentDuration float64
	GIFFPS          float64
	FontFile        string
	// Title and Date are shown in the header when set
	Title string
	Date  string
	// Checksum is the source MD5 shown in the header
	Checksum string
	// Targets maps each format to build onto its published path
	Targets map[clips.Format]string
	// OriginalTarget publishes the pre-downscale render when set
	OriginalTarget string
	Rand           *rand.Rand
}

// Result is a rendered sheet
type Result struct {
	Artifacts []clips.Artifact
	Layout    Layout
	// Downscaled reports whether the downscale pass ran
	Downscaled bool
}

// FileName is the published name of a sheet artifact
func FileName(base string, format clips.Format) string {
	return fmt.Sprintf("%s_preview_sheet.%s", base, format)
}

// OriginalFileName is the published name of the pre-downscale render
func OriginalFileName(base string) string {
	return base + "_preview_sheet_og.mp4"
}

// NeedsDownscale reports whether a sheet gets the downscale pass
func NeedsDownscale(grid int, vertical, blackBars bool) bool {
	return grid == 4 && !(vertical && !blackBars)
}

// Assemble builds the header, stacks the segments under it and encodes every
// requested format. Artifacts are rendered inside the scratch directory.
func (a *Assembler) Assemble(ctx context.Context, req Request) (*Result, error) {
	if len(req.Targets) == 0 && req.OriginalTarget == "" {
		return &Result{}, nil
	}
	if req.Playlist.Len() == 0 {
		return nil, a.fail(req, fmt.Errorf("sheet playlist is empty"))
	}
	if !req.Kind.Valid() {
		return nil, failure.Errorf(failure.Configuration, failure.StageAssembling, "unknown sheet layout %q", req.Kind)
	}

	rng := req.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	vertical := req.Source.Vertical()
	fps := util.Round(req.Source.FPS, 2)
	if fps <= 0 {
		fps = fallbackFPS
	}

	headerClip, headerH, err := a.header(ctx, req, fps)
	if err != nil {
		return nil, err
	}

	cellW, cellH := CellSize(vertical, req.BlackBars)
	selected := Select(req.Kind, req.Grid, req.Playlist.Segments, rng)
	layout := NewLayout(req.Kind, req.Grid, len(selected), cellW, cellH, 0, headerH)

	body, err := a.body(ctx, req, layout, selected)
	if err != nil {
		return nil, err
	}

	downscale := NeedsDownscale(req.Grid, vertical, req.BlackBars)
	render := filepath.Join(req.ScratchDir, renderName)
	stacked := render
	if downscale {
		stacked = filepath.Join(req.ScratchDir, originalName)
	}

	err = a.tool.Stack(ctx, ffmpeg.StackOptions{
		Inputs:        append([]string{headerClip}, body...),
		Output:        stacked,
		FilterComplex: ffmpeg.VStackFilter(1 + len(body)),
		FrameRate:     fps,
	})
	if err != nil {
		return nil, a.fail(req, err)
	}

	if downscale {
		if err := a.tool.Transform(ctx, stacked, render, downscaleFilter); err != nil {
			return nil, a.fail(req, err)
		}
	}

	a.logger.Info().
		Str("layout", string(layout.Kind)).
		Int("grid", layout.Grid).
		Int("rows", layout.Rows).
		Int("height", layout.Height()).
		Bool("downscaled", downscale).
		Msg("sheet rendered")

	res := &Result{Layout: layout, Downscaled: downscale}
	for _, format := range clips.Formats {
		target, ok := req.Targets[format]
		if !ok {
			continue
		}
		out := filepath.Join(req.ScratchDir, FileName(req.Base, format))
		err := a.tool.Encode(ctx, ffmpeg.EncodeOptions{
			Input:     render,
			Output:    out,
			Format:    string(format),
			Profile:   ffmpeg.ProfileSheet,
			Vertical:  vertical,
			BlackBars: req.BlackBars,
			GIFFPS:    req.GIFFPS,

			ProgressFunc: func(p *ffmpeg.Progress) {
				a.logger.Debug().
					Str("format", string(format)).
					Int("frame", p.Frame).
					Str("time", p.Time).
					Msg("sheet progress")
			},
		})
		if err != nil {
			return nil, a.fail(req, err)
		}
		res.Artifacts = append(res.Artifacts, clips.Artifact{
			Kind:   clips.KindSheet,
			Format: format,
			Path:   out,
			Target: target,
		})
	}

	if downscale && req.OriginalTarget != "" {
		res.Artifacts = append(res.Artifacts, clips.Artifact{
			Kind:   clips.KindSheetOriginal,
			Path:   stacked,
			Target: req.OriginalTarget,
		})
	}

	return res, nil
}

// header renders the info image and loops it into a clip as long as a segment
func (a *Assembler) header(ctx context.Context, req Request, fps float64) (string, int, error) {
	info := req.Source.Info
	if info == nil {
		info = &ffmpeg.VideoInfo{
			FilePath: req.Source.Path,
			Width:    req.Source.Width,
			Height:   req.Source.Height,
			FPS:      req.Source.FPS,
		}
	}

	opts := HeaderOptions{
		Grid:      req.Grid,
		Vertical:  req.Source.Vertical(),
		BlackBars: req.BlackBars,
		FontFile:  req.FontFile,
		Title:     req.Title,
		Date:      req.Date,
	}

	png := filepath.Join(req.ScratchDir, req.Base+"_info.png")
	height, err := WriteHeader(png, BuildRows(info, req.Checksum, opts), opts)
	if err != nil {
		return "", 0, a.fail(req, err)
	}

	clip := filepath.Join(req.ScratchDir, req.Base+"_info.mp4")
	err = a.tool.ImageToVideo(ctx, ffmpeg.ImageVideoOptions{
		Image:    png,
		Output:   clip,
		FPS:      fps,
		Duration: req.SegmentDuration,
	})
	if err != nil {
		return "", 0, a.fail(req, err)
	}
	return clip, height, nil
}

// body stacks the segments into one clip per row, or a single xstack clip
// when the grid is not a plain set of full rows.
func (a *Assembler) body(ctx context.Context, req Request, layout Layout, segs []clips.Segment) ([]string, error) {
	if layout.Kind == KindStandard && len(segs)%layout.Grid == 0 {
		var rows []string
		for i, batch := range Batches(segs, layout.Grid) {
			out := filepath.Join(req.ScratchDir, fmt.Sprintf("%s_row_%d.mp4", req.Base, i+1))
			err := a.tool.Stack(ctx, ffmpeg.StackOptions{
				Inputs:        clips.Playlist{Segments: batch}.Paths(),
				Output:        out,
				FilterComplex: ffmpeg.HStackFilter(len(batch)),
			})
			if err != nil {
				return nil, a.fail(req, err)
			}
			rows = append(rows, out)
		}
		return rows, nil
	}

	placements, err := layout.Assign(segs)
	if err != nil {
		return nil, a.fail(req, err)
	}
	inputs := make([]string, len(placements))
	tiles := make([]ffmpeg.Tile, len(placements))
	for i, p := range placements {
		inputs[i] = p.Segment.Path
		tiles[i] = p.Tile()
	}

	out := filepath.Join(req.ScratchDir, req.Base+"_grid.mp4")
	err = a.tool.Stack(ctx, ffmpeg.StackOptions{
		Inputs:        inputs,
		Output:        out,
		FilterComplex: ffmpeg.XStackFilter(tiles, layout.Width(), layout.BodyHeight()),
	})
	if err != nil {
		return nil, a.fail(req, err)
	}
	return []string{out}, nil
}

func (a *Assembler) fail(req Request, err error) error {
	return failure.New(failure.Assembly, failure.StageAssembling, req.Source.Path, err).
		WithOutput(ffmpeg.CommandOutput(err))
}
