package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the service's Prometheus collectors.
type Metrics struct {
	DetectionsTotal   *prometheus.CounterVec
	InferenceDuration prometheus.Histogram
	TrainingRunsTotal *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Metrics {
	m := &Metrics{
		DetectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waste_detections_total",
				Help: "Total number of waste detections by class and outcome",
			}, []string{"class", "outcome"},
		),
		InferenceDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "waste_inference_duration_seconds",
				Help:    "Duration of classifier inference in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		TrainingRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waste_training_runs_total",
				Help: "Total number of training runs by final status",
			}, []string{"status"},
		),
	}

	prometheus.MustRegister(m.DetectionsTotal, m.InferenceDuration, m.TrainingRunsTotal)
	return m
}

// ObserveDetection records one finished detection.
func (m *Metrics) ObserveDetection(class, outcome string, duration time.Duration) {
	m.DetectionsTotal.WithLabelValues(class, outcome).Inc()
	m.InferenceDuration.Observe(duration.Seconds())
}
