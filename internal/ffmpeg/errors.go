package ffmpeg

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// CommandError is returned when ffmpeg or ffprobe exits unsuccessfully.
// Output holds the tail of the tool's diagnostic text.
type CommandError struct {
	Tool     string
	Args     []string
	ExitCode int
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s execution failed (exit %d): %v", e.Tool, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// CommandOutput returns the diagnostic text carried by err, if any
func CommandOutput(err error) string {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Output
	}
	return ""
}

func newCommandError(tool string, args []string, output string, err error) *CommandError {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &CommandError{
		Tool:     tool,
		Args:     args,
		ExitCode: code,
		Output:   strings.TrimSpace(output),
		Err:      err,
	}
}

// tailBuffer keeps the last n lines written to it
type tailBuffer struct {
	n     int
	lines []string
}

func newTailBuffer(n int) *tailBuffer {
	return &tailBuffer{n: n}
}

func (t *tailBuffer) add(line string) {
	if strings.TrimSpace(line) == "" || isProgressLine(line) {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.n {
		t.lines = t.lines[len(t.lines)-t.n:]
	}
}

func (t *tailBuffer) String() string {
	return strings.Join(t.lines, "\n")
}

var progressKeys = []string{
	"frame=", "fps=", "stream_", "bitrate=", "total_size=", "out_time",
	"dup_frames=", "drop_frames=", "speed=", "progress=",
}

func isProgressLine(line string) bool {
	for _, k := range progressKeys {
		if strings.HasPrefix(line, k) {
			return true
		}
	}
	return false
}
