package planner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/keagan/previewcut/internal/clips"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// TerminalConfirmer prompts on a terminal. Only an exact "yes" accepts.
type TerminalConfirmer struct {
	logger      zerolog.Logger
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	// one prompt at a time when several videos plan concurrently
	mu sync.Mutex
}

// NewTerminalConfirmer prompts on stdin/stderr. When stdin is not a terminal
// every set is accepted with a warning instead of blocking.
func NewTerminalConfirmer(logger zerolog.Logger) *TerminalConfirmer {
	return NewConfirmer(logger, os.Stdin, os.Stderr, term.IsTerminal(int(os.Stdin.Fd())))
}

// NewConfirmer builds a confirmer over arbitrary streams
func NewConfirmer(logger zerolog.Logger, in io.Reader, out io.Writer, interactive bool) *TerminalConfirmer {
	return &TerminalConfirmer{
		logger:      logger.With().Str("component", "confirm").Logger(),
		in:          bufio.NewReader(in),
		out:         out,
		interactive: interactive,
	}
}

// Confirm shows the breakdown of points and waits for an answer
func (c *TerminalConfirmer) Confirm(ctx context.Context, points []clips.CutPoint, duration float64) (bool, error) {
	if !c.interactive {
		c.logger.Warn().Msg("cut point confirmation requested but stdin is not a terminal, accepting")
		return true, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintln(c.out, "Generated cut points with timestamp breakdown:")
	for _, line := range Breakdown(points, duration) {
		fmt.Fprintln(c.out, line)
	}
	fmt.Fprint(c.out, "Do you want to use these cut points? (yes/no): ")

	answer, err := c.in.ReadString('\n')
	if err != nil && (err != io.EOF || answer == "") {
		return false, fmt.Errorf("read confirmation: %w", err)
	}

	return strings.ToLower(strings.TrimSpace(answer)) == "yes", nil
}
