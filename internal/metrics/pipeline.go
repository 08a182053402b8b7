package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gauge"

// Pipeline Prometheus metrics.
var (
	PhotosTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "photos_processed_total",
			Help:      "Photos processed, by outcome status",
		},
		[]string{"status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of a pipeline stage in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	FieldNotesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_notes_total",
			Help:      "Fields left unset by the engine, by field and reason",
		},
		[]string{"field", "kind"},
	)

	RefinementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_refinements_total",
			Help:      "LLM refinement calls, by result",
		},
		[]string{"result"}, // "filled" / "empty" / "error"
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the processing queue",
		},
	)
)

func init() {
	prometheus.MustRegister(PhotosTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(FieldNotesTotal)
	prometheus.MustRegister(RefinementsTotal)
	prometheus.MustRegister(QueueDepth)
}

// ObserveStage records the time spent in stage since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
