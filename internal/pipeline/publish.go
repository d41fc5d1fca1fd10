package pipeline

import (
	"os"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/metrics"
	"github.com/keagan/previewcut/pkg/util"
)

// replaced is one published target and the hidden copy of what it replaced
type replaced struct {
	target string
	backup string
}

// publish moves every artifact from scratch to its target. A target that
// already exists is moved aside first. A failure removes what this call
// published and puts the replaced files back, so a video never ends
// half-updated.
func (p *Pipeline) publish(source string, artifacts []clips.Artifact) error {
	var done []replaced
	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			_ = os.Remove(done[i].target)
			if done[i].backup != "" {
				if err := os.Rename(done[i].backup, done[i].target); err != nil {
					p.logger.Error().Err(err).Str("path", done[i].target).Msg("failed to restore replaced artifact")
				}
			}
		}
	}

	for _, a := range artifacts {
		r := replaced{target: a.Target}
		if util.FileExists(a.Target) {
			r.backup = util.PartialPath(a.Target)
			if err := os.Rename(a.Target, r.backup); err != nil {
				rollback()
				return failure.New(failure.Assembly, failure.StagePublishing, source, err)
			}
		}
		done = append(done, r)

		if err := util.PublishAtomic(a.Path, a.Target); err != nil {
			rollback()
			return failure.New(failure.Assembly, failure.StagePublishing, source, err)
		}
	}

	for _, r := range done {
		if r.backup == "" {
			continue
		}
		if err := os.Remove(r.backup); err != nil {
			p.logger.Warn().Err(err).Str("path", r.backup).Msg("failed to remove replaced artifact")
		}
	}

	for _, a := range artifacts {
		format := string(a.Format)
		if format == "" {
			format = "mp4"
		}
		metrics.ArtifactsPublishedTotal.WithLabelValues(format, string(a.Kind)).Inc()
	}
	return nil
}
