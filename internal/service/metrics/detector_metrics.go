package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	DetectorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aria",
			Subsystem: "remote_detector",
			Name:      "latency_seconds",
			Help:      "Latency of remote detector calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	DetectorErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aria",
			Subsystem: "remote_detector",
			Name:      "errors_total",
			Help:      "Failed remote detector attempts by endpoint",
		},
		[]string{"endpoint"},
	)
)

// Register adds the remote detector metrics to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(DetectorLatency, DetectorErrors)
	})
}
