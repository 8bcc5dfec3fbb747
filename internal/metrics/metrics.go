// Package metrics exposes Prometheus instruments for the analysis pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "email_agent"

// Recorder implements core.StageObserver on top of Prometheus collectors
type Recorder struct {
	stageDuration  *prometheus.HistogramVec
	stageFallbacks *prometheus.CounterVec
	emails         *prometheus.CounterVec
}

// NewRecorder registers the pipeline collectors with reg
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
			},
			[]string{"stage"},
		),
		stageFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_fallbacks_total",
				Help:      "Number of times a stage degraded to its default",
			},
			[]string{"stage"},
		),
		emails: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_processed_total",
				Help:      "Total number of emails processed",
			},
			[]string{"status", "priority"},
		),
	}
}

// ObserveStage records how long a stage took
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveFallback counts a stage that used its default
func (r *Recorder) ObserveFallback(stage string) {
	r.stageFallbacks.WithLabelValues(stage).Inc()
}

// RecordEmail counts one processed email. status is "success" or "failed";
// priority is empty for failures.
func (r *Recorder) RecordEmail(status, priority string) {
	r.emails.WithLabelValues(status, priority).Inc()
}
