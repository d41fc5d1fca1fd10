package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/keagan/previewcut/internal/failure"
	"github.com/keagan/previewcut/internal/workers"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// VideoExtensions are picked up when a directory is expanded
var VideoExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".wmv", ".m4v", ".ts", ".webm"}

// artifactSuffixes mark files this tool wrote itself
var artifactSuffixes = []string{"_preview", "_preview_sheet", "_preview_sheet_og"}

// ProgressFunc is called after every finished video
type ProgressFunc func(done, total int, r *Report)

// Expand resolves the arguments into video files. Directories contain every
// video directly inside them, sorted by name; files are kept as given.
func Expand(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() || !isVideo(e.Name()) {
				continue
			}
			found = append(found, filepath.Join(arg, e.Name()))
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

func isVideo(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, s := range artifactSuffixes {
		if strings.HasSuffix(stem, s) {
			return false
		}
	}
	for _, v := range VideoExtensions {
		if ext == v {
			return true
		}
	}
	return false
}

// Batch runs every source through the pipeline with a bounded worker pool.
// Reports come back in the order of sources; one failure never stops the rest.
// A source whose artifacts would land on the paths of an earlier source fails
// with a configuration error and is never touched.
func (p *Pipeline) Batch(ctx context.Context, sources []string, progress ProgressFunc) []*Report {
	limit := p.cfg.Concurrency
	if limit <= 0 {
		limit = workers.ForCPU(4)
	}

	p.logger.Info().Int("videos", len(sources)).Int("workers", limit).Msg("starting batch")

	clashes := p.clashes(sources)
	reports := make([]*Report, len(sources))
	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(limit)
	for i, source := range sources {
		g.Go(func() error {
			var r *Report
			if err, ok := clashes[i]; ok {
				r = p.execute(ctx, source, func(context.Context, zerolog.Logger, *Report) error { return err })
			} else {
				r = p.Run(ctx, source)
			}
			reports[i] = r

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			if progress != nil {
				progress(n, len(sources), r)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range reports {
		if !r.OK() {
			failed++
		}
	}
	p.logger.Info().Int("videos", len(sources)).Int("failed", failed).Msg("batch complete")
	return reports
}

// clashes maps the index of every source that shares its artifact targets
// with an earlier one to the error it fails with
func (p *Pipeline) clashes(sources []string) map[int]error {
	out := make(map[int]error)
	claimed := make(map[string]string, len(sources))
	for i, source := range sources {
		if p.cfg.IsExcluded(source) {
			continue
		}
		key := targetKey(p.cfg, source)
		if first, ok := claimed[key]; ok {
			out[i] = failure.New(failure.Configuration, failure.StageConfig, source,
				fmt.Errorf("artifacts would overwrite those of %s", first))
			continue
		}
		claimed[key] = source
	}
	return out
}

// Failed returns the reports that ended in an error
func Failed(reports []*Report) []*Report {
	var out []*Report
	for _, r := range reports {
		if r != nil && !r.OK() {
			out = append(out, r)
		}
	}
	return out
}
