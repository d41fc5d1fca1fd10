package pipeline

import (
	"time"

	"github.com/keagan/previewcut/internal/artifact"
	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/extract"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/metrics"
	"github.com/keagan/previewcut/internal/planner"
	"github.com/keagan/previewcut/internal/preview"
	"github.com/keagan/previewcut/internal/sheet"
)

// Tool is everything the pipeline asks of ffmpeg. *ffmpeg.Executor satisfies it.
type Tool interface {
	artifact.Prober
	planner.SceneDetector
	extract.Tool
	preview.Tool
	sheet.Tool
}

// Report describes the outcome of one video
type Report struct {
	RunID  string
	Source string
	// State is the last stage reached, StageDone or StageFailed
	State failure.Stage
	Plan  *planner.Plan
	// Artifacts lists what was published; Target is the final location
	Artifacts []clips.Artifact
	// Skipped lists targets left alone because they already exist
	Skipped []string
	// Excluded is set when the source is listed in excluded_files
	Excluded bool
	Segments int
	Sheet    *sheet.Layout
	Duration time.Duration
	Err      error
}

// OK reports whether the video finished without error
func (r *Report) OK() bool {
	return r.Err == nil
}

// NoOp reports whether nothing had to be built
func (r *Report) NoOp() bool {
	return r.Err == nil && len(r.Artifacts) == 0
}

// Published returns the final paths of every published artifact
func (r *Report) Published() []string {
	paths := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		paths[i] = a.Target
	}
	return paths
}

func (r *Report) result() string {
	switch {
	case r.Err != nil:
		return metrics.ResultFailed
	case r.Excluded || r.NoOp():
		return metrics.ResultSkipped
	default:
		return metrics.ResultSuccess
	}
}
