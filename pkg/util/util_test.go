package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockFormats(t *testing.T) {
	assert.Equal(t, "00:00:00", FormatClock(0))
	assert.Equal(t, "01:02:03", FormatClock(3723.9))
	assert.Equal(t, "00.10.00", FormatClockFilename(600))
	assert.Equal(t, `00\:02\:30`, FormatClockEscaped(150))
	assert.Equal(t, "00:00:00", FormatClock(-5))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "1.5", FormatSeconds(1.5))
	assert.Equal(t, "42", FormatSeconds(42))
	assert.Equal(t, "0.1", FormatSeconds(Round(0.30000000000000004-0.2, 2)))
}

func TestParseTimestamp(t *testing.T) {
	cases := map[string]float64{
		"45.5":     45.5,
		"02:30":    150,
		"01:00:05": 3605,
	}
	for in, want := range cases {
		got, err := ParseTimestamp(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}

	for _, bad := range []string{"", "a:b", "1:2:3:4", "-3"} {
		_, err := ParseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseFrameRate(t *testing.T) {
	assert.InDelta(t, 29.97, ParseFrameRate("30000/1001"), 0.01)
	assert.Equal(t, 0.0, ParseFrameRate("30/0"))
	assert.Equal(t, 0.0, ParseFrameRate("garbage"))
}

func TestPartialPathKeepsExtension(t *testing.T) {
	p := PartialPath("/out/movie_preview.webp")
	assert.Equal(t, "/out", filepath.Dir(p))
	assert.Equal(t, ".webp", filepath.Ext(p))
	assert.True(t, strings.HasPrefix(filepath.Base(p), ".movie_preview."))
}

func TestPublishAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scratch", "a.gif")
	dst := filepath.Join(dir, "out", "a_preview.gif")
	require.NoError(t, EnsureDir(filepath.Dir(src)))
	require.NoError(t, os.WriteFile(src, []byte("GIF89a"), 0644))

	require.NoError(t, PublishAtomic(src, dst))

	assert.False(t, FileExists(src))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "GIF89a", string(data))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "movie.part1", Stem("/videos/movie.part1.mkv"))
}
