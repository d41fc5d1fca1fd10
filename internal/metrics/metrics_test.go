package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"StageDuration", StageDuration},
		{"VideosTotal", VideosTotal},
		{"PlanDiscardsTotal", PlanDiscardsTotal},
		{"SegmentsExtractedTotal", SegmentsExtractedTotal},
		{"ArtifactsPublishedTotal", ArtifactsPublishedTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.metric)
		})
	}
}

func TestWriteTextfile(t *testing.T) {
	InitializeMetrics()
	PlanDiscardsTotal.Add(3)
	VideosTotal.WithLabelValues(ResultFailed).Inc()
	ObserveStage("planning", time.Now().Add(-time.Second))

	path := filepath.Join(t.TempDir(), "previewcut.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "previewcut_plan_discards_total")
	assert.Contains(t, string(data), `previewcut_artifacts_published_total{format="webp",variant="sheet"}`)
	assert.Contains(t, string(data), `previewcut_videos_total{result="failed"}`)
	assert.Contains(t, string(data), `previewcut_stage_duration_seconds_count{stage="planning"}`)
}
