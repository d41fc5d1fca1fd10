package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "previewcut_stage_duration_seconds",
			Help:    "Duration of each per-video pipeline stage in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	VideosTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "previewcut_videos_total",
			Help: "Total number of processed videos by result",
		},
		[]string{"result"},
	)

	PlanDiscardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "previewcut_plan_discards_total",
			Help: "Total number of cut point sets discarded during planning",
		},
	)

	SegmentsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "previewcut_segments_extracted_total",
			Help: "Total number of segment extractions by result",
		},
		[]string{"result"},
	)

	ArtifactsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "previewcut_artifacts_published_total",
			Help: "Total number of published artifacts by format and variant",
		},
		[]string{"format", "variant"},
	)
)

// Video results
const (
	ResultSuccess = "success"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// InitializeMetrics pre-populates the expected label combinations so every
// series shows up in the first export.
func InitializeMetrics() {
	for _, stage := range []string{"probing", "planning", "extracting", "filtering", "assembling", "publishing"} {
		StageDuration.WithLabelValues(stage)
	}
	for _, r := range []string{ResultSuccess, ResultSkipped, ResultFailed} {
		VideosTotal.WithLabelValues(r)
	}
	SegmentsExtractedTotal.WithLabelValues("ok")
	SegmentsExtractedTotal.WithLabelValues("dropped")
	for _, f := range []string{"webp", "webm", "gif", "mp4"} {
		for _, v := range []string{"preview", "sheet", "sheet-original"} {
			ArtifactsPublishedTotal.WithLabelValues(f, v)
		}
	}
}

// ObserveStage records how long a stage took
func ObserveStage(stage string, started time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// WriteTextfile dumps the default registry in the node exporter textfile format
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
