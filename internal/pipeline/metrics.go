package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retention",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Analysis runs by outcome.",
	}, []string{"outcome"})

	metricActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "retention",
		Subsystem: "pipeline",
		Name:      "active_runs",
		Help:      "Analysis runs currently executing.",
	})

	metricStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "retention",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall time spent in each pipeline stage.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"stage", "status"})
)
