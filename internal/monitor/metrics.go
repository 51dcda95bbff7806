// Package monitor records per-stage pipeline metrics and sends throttled
// operator alerts.
package monitor

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRunsTotal           *prometheus.CounterVec
	jobDurationSeconds     *prometheus.HistogramVec
	alertsSentTotal        *prometheus.CounterVec
	alertsSuppressedTotal  *prometheus.CounterVec
	metricsInitializedOnce sync.Once
)

// InitMetrics initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func InitMetrics() {
	metricsInitializedOnce.Do(func() {
		jobRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_job_runs_total",
				Help: "Total number of job triggers, labeled by stage and outcome.",
			},
			[]string{"stage", "outcome"},
		)

		jobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aggregator_job_duration_seconds",
				Help:    "Histogram of stage body runtimes, labeled by stage.",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"stage"},
		)

		alertsSentTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_alerts_sent_total",
				Help: "Total number of operator alerts sent, labeled by stage.",
			},
			[]string{"stage"},
		)

		alertsSuppressedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aggregator_alerts_suppressed_total",
				Help: "Total number of alerts suppressed by the throttle window, labeled by stage.",
			},
			[]string{"stage"},
		)
	})
}

func countRun(stage, outcome string) {
	if jobRunsTotal != nil {
		jobRunsTotal.WithLabelValues(stage, outcome).Inc()
	}
}

// ObserveDuration records one stage body runtime.
func ObserveDuration(stage string, d time.Duration) {
	if jobDurationSeconds != nil {
		jobDurationSeconds.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func countAlertSent(stage string) {
	if alertsSentTotal != nil {
		alertsSentTotal.WithLabelValues(stage).Inc()
	}
}

func countAlertSuppressed(stage string) {
	if alertsSuppressedTotal != nil {
		alertsSuppressedTotal.WithLabelValues(stage).Inc()
	}
}
