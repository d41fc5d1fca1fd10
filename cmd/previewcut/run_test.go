package main

import (
	"testing"

	"github.com/keagan/previewcut/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "run"}
	addRunFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyRunFlagsOnlyTouchesChangedFlags(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/from/file"
	cfg.Preview.Segments = 16

	cmd := newRunFlags(t, "--grid", "3", "--layout", "enlarged-corner", "--last-cut-point", "00:09:00", "--overwrite")
	require.NoError(t, applyRunFlags(cmd, cfg))

	assert.Equal(t, "/from/file", cfg.OutputDir)
	assert.Equal(t, 16, cfg.Preview.Segments)
	assert.Equal(t, 3, cfg.Preview.GridWidth)
	assert.Equal(t, "enlarged-corner", cfg.Preview.Layout)
	assert.Equal(t, 540.0, cfg.Preview.LastCutPoint)
	assert.True(t, cfg.Overwrite)
}

func TestApplyRunFlagsHeaderFields(t *testing.T) {
	cfg := config.Default()
	cmd := newRunFlags(t, "--title", "Summer 2024", "--date", "2024-08-01")
	require.NoError(t, applyRunFlags(cmd, cfg))

	assert.Equal(t, "Summer 2024", cfg.Preview.Title)
	assert.Equal(t, "2024-08-01", cfg.Preview.Date)
}

func TestApplyRunFlagsRejectsBadTimestamp(t *testing.T) {
	cmd := newRunFlags(t, "--last-cut-point", "soon")
	assert.Error(t, applyRunFlags(cmd, config.Default()))
}
