package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ConcatOptions defines concatenation parameters
type ConcatOptions struct {
	// ListFile is a concat demuxer list, see WriteConcatList
	ListFile     string
	Output       string
	ProgressFunc func(*Progress)
}

// Concat joins the files of a concat list without re-encoding
func (e *Executor) Concat(ctx context.Context, opts ConcatOptions) error {
	if opts.ListFile == "" {
		return fmt.Errorf("concat list is required")
	}
	if opts.Output == "" {
		return fmt.Errorf("output path is required")
	}

	e.logger.Info().
		Str("list", opts.ListFile).
		Str("output", opts.Output).
		Msg("concatenating segments")

	runOpts := RunOptions{
		Args:            ConcatArgs(opts.ListFile, opts.Output),
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("concatenating")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("concat failed: %w", err)
	}
	return nil
}

// ConcatArgs builds a stream-copy concat command
func ConcatArgs(listFile, output string) []string {
	return []string{
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
}

// WriteConcatList writes one `file '<path>'` line per input, in order.
// Relative paths are made absolute.
func WriteConcatList(w io.Writer, inputs []string) error {
	for _, input := range inputs {
		absPath, err := filepath.Abs(input)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "file '%s'\n", quoteConcatPath(absPath)); err != nil {
			return err
		}
	}
	return nil
}

// quoteConcatPath escapes single quotes for the concat demuxer
func quoteConcatPath(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}
