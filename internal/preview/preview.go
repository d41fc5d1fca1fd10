package preview

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/ffmpeg"
	"github.com/rs/zerolog"
)

// Tool is the part of the ffmpeg executor the preview assembler drives
type Tool interface {
	Concat(ctx context.Context, opts ffmpeg.ConcatOptions) error
	Encode(ctx context.Context, opts ffmpeg.EncodeOptions) error
}

// Assembler renders the single-strip preview artifacts
type Assembler struct {
	logger zerolog.Logger
	tool   Tool
}

// New creates a preview assembler
func New(logger zerolog.Logger, tool Tool) *Assembler {
	return &Assembler{
		logger: logger.With().Str("component", "preview").Logger(),
		tool:   tool,
	}
}

// Request describes one preview render
type Request struct {
	Source     clips.VideoSource
	Base       string
	ScratchDir string
	Full       clips.Playlist
	GIF        clips.Playlist
	BlackBars  bool
	GIFFPS     float64
	// Targets maps each format to build onto its published path. Formats
	// missing from the map are not rendered.
	Targets map[clips.Format]string
}

// FileName is the published name of a preview artifact
func FileName(base string, format clips.Format) string {
	return fmt.Sprintf("%s_preview.%s", base, format)
}

// Assemble concatenates the playlists and encodes every requested format.
// Artifacts are rendered inside the scratch directory; publishing is left to
// the caller.
func (a *Assembler) Assemble(ctx context.Context, req Request) ([]clips.Artifact, error) {
	if len(req.Targets) == 0 {
		return nil, nil
	}
	if req.Full.Len() == 0 {
		return nil, a.fail(req, fmt.Errorf("full playlist is empty"))
	}

	fullClip, err := a.concat(ctx, req, req.Full, "full")
	if err != nil {
		return nil, err
	}

	gifClip := fullClip
	if _, ok := req.Targets[clips.FormatGIF]; ok && req.GIF.Len() > 0 && !req.GIF.Equal(req.Full) {
		gifClip, err = a.concat(ctx, req, req.GIF, "gif")
		if err != nil {
			return nil, err
		}
	}

	var artifacts []clips.Artifact
	for _, format := range clips.Formats {
		target, ok := req.Targets[format]
		if !ok {
			continue
		}

		input := fullClip
		if format == clips.FormatGIF {
			input = gifClip
		}

		out := filepath.Join(req.ScratchDir, FileName(req.Base, format))
		err := a.tool.Encode(ctx, ffmpeg.EncodeOptions{
			Input:     input,
			Output:    out,
			Format:    string(format),
			Profile:   ffmpeg.ProfilePreview,
			Vertical:  req.Source.Vertical(),
			BlackBars: req.BlackBars,
			GIFFPS:    req.GIFFPS,

			ProgressFunc: a.progress(string(format)),
		})
		if err != nil {
			return nil, a.fail(req, err)
		}

		a.logger.Info().Str("format", string(format)).Str("path", out).Msg("preview rendered")
		artifacts = append(artifacts, clips.Artifact{
			Kind:   clips.KindPreview,
			Format: format,
			Path:   out,
			Target: target,
		})
	}

	return artifacts, nil
}

// concat joins a playlist into one clip in the scratch directory
func (a *Assembler) concat(ctx context.Context, req Request, p clips.Playlist, name string) (string, error) {
	list := filepath.Join(req.ScratchDir, fmt.Sprintf("%s_%s_list.txt", req.Base, name))
	if err := p.WriteConcatList(list); err != nil {
		return "", a.fail(req, err)
	}

	out := filepath.Join(req.ScratchDir, fmt.Sprintf("%s_%s.mp4", req.Base, name))
	if err := a.tool.Concat(ctx, ffmpeg.ConcatOptions{ListFile: list, Output: out, ProgressFunc: a.progress(name)}); err != nil {
		return "", a.fail(req, err)
	}

	a.logger.Debug().
		Str("variant", string(p.Variant)).
		Int("segments", p.Len()).
		Str("output", out).
		Msg("playlist concatenated")
	return out, nil
}

// progress logs the ffmpeg progress of one render step at debug level
func (a *Assembler) progress(step string) func(*ffmpeg.Progress) {
	return func(p *ffmpeg.Progress) {
		a.logger.Debug().
			Str("step", step).
			Int("frame", p.Frame).
			Float64("fps", p.FPS).
			Str("time", p.Time).
			Str("speed", p.Speed).
			Msg("preview progress")
	}
}

func (a *Assembler) fail(req Request, err error) error {
	return failure.New(failure.Assembly, failure.StageAssembling, req.Source.Path, err).
		WithOutput(ffmpeg.CommandOutput(err))
}
