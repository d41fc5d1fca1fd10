package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/keagan/previewcut/pkg/util"
)

// SceneChangeAt reports whether a scene cut occurs in [ts-0.1, ts+window+0.1].
// It decodes only that window. A probe that times out counts as a change,
// other tool errors count as no change.
func (e *Executor) SceneChangeAt(ctx context.Context, input string, ts, window float64) (bool, error) {
	if input == "" {
		return false, fmt.Errorf("input path is required")
	}

	probeCtx, cancel := context.WithTimeout(ctx, e.opts.SceneProbeTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		found   bool
		matched float64
	)

	opts := RunOptions{
		Args: SceneProbeArgs(input, ts, window),
		LogHandler: func(line string) {
			mu.Lock()
			defer mu.Unlock()
			if found {
				return
			}
			if pts, ok := parseSceneLine(line); ok {
				found = true
				matched = pts
			}
		},
	}

	err := e.Run(probeCtx, opts)

	mu.Lock()
	defer mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn().
				Str("input", input).
				Float64("ts", ts).
				Dur("timeout", e.opts.SceneProbeTimeout).
				Msg("scene probe timed out, treating as scene change")
			return true, nil
		}
		if !found {
			e.logger.Debug().Err(err).Float64("ts", ts).Msg("scene probe failed, treating as no change")
			return false, nil
		}
	}

	if found {
		e.logger.Debug().
			Float64("ts", ts).
			Float64("change_at", ts+matched).
			Msg("scene change detected")
	}
	return found, nil
}

// SceneProbeArgs builds the windowed scene detection command
func SceneProbeArgs(input string, ts, window float64) []string {
	start := math.Max(ts-SceneProbeMargin, 0)
	return []string{
		"-ss", util.FormatSeconds(util.Round(start, 3)),
		"-t", util.FormatSeconds(util.Round(window+SceneProbeMargin, 3)),
		"-i", input,
		"-vf", fmt.Sprintf("select='gt(scene,%s)',showinfo", util.FormatSeconds(SceneThreshold)),
		"-an",
		"-f", "null",
		"-",
	}
}

// parseSceneLine extracts the pts_time of a showinfo line
func parseSceneLine(line string) (float64, bool) {
	_, rest, ok := strings.Cut(line, "pts_time:")
	if !ok {
		return 0, false
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return seconds, true
}
