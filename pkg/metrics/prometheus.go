package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	pairsTotal     *prometheus.CounterVec
	eventsTotal    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	rejectionTotal *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a recorder on the default Prometheus registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg. Tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		pairsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aria_track_pairs_total",
				Help: "Track pairs processed by outcome",
			},
			[]string{"outcome"},
		),
		eventsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aria_events_detected_total",
				Help: "Airborne events detected by category",
			},
			[]string{"category"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aria_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		rejectionTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aria_track_rejections_total",
				Help: "Tracks rejected by the boundary trimmer, by kind",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aria_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPairProcessed records one processed track pair by outcome
// ("events", "empty" or "failed").
func (r *Recorder) RecordPairProcessed(outcome string) {
	r.pairsTotal.WithLabelValues(outcome).Inc()
}

// RecordEventDetected records an event reaching the pipeline.
func (r *Recorder) RecordEventDetected(category string) {
	r.eventsTotal.WithLabelValues(category).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRejection records a trimmer rejection.
func (r *Recorder) RecordRejection(kind string) {
	r.rejectionTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
