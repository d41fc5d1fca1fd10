package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	logger := NewLogger(&a, &b)
	logger.Info().Str("source", "/v/a.mp4").Msg("planning")

	for _, buf := range []*bytes.Buffer{&a, &b} {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "planning", entry["message"])
		assert.Equal(t, "/v/a.mp4", entry["source"])
	}
}

func TestInitWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "previewcut.log")
	require.NoError(t, Init(false, path))
	t.Cleanup(func() { _ = Close() })

	logger := WithComponent("pipeline")
	logger.Info().Msg("video done")
	log.Debug().Msg("hidden at info level")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "video done", entry["message"])
}
