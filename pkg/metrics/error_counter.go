package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorCounter counts failed per-item operations across the whole process.
// It only goes up. Build one in DI and hand the same pointer to every
// component that reports failures.
type ErrorCounter struct {
	n atomic.Int64
}

func NewErrorCounter() *ErrorCounter {
	return &ErrorCounter{}
}

// Increment adds one failure.
func (c *ErrorCounter) Increment() {
	c.n.Add(1)
}

// Count returns the number of failures seen so far.
func (c *ErrorCounter) Count() int64 {
	return c.n.Load()
}

// Register exposes the counter as aria_processing_errors_total.
func (c *ErrorCounter) Register(reg prometheus.Registerer) error {
	return reg.Register(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "aria_processing_errors_total",
			Help: "Per-item processing failures (trimming and pair pipeline)",
		},
		func() float64 { return float64(c.Count()) },
	))
}
