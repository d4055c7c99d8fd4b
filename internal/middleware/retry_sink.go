package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"AriaPull/internal/domain/models"
	domrepo "AriaPull/internal/domain/repository"
	applogger "AriaPull/pkg/logger"
)

// ErrBufferFull is returned when downstream failed and there is no room to
// hold the event for a later attempt.
var ErrBufferFull = errors.New("retry buffer full")

// RetrySink sits between the pipeline and an output that can be briefly
// unavailable (Kafka). Events the output rejects are buffered and
// re-delivered in the background with capped exponential backoff.
type RetrySink struct {
	next    domrepo.EventSink
	metrics domrepo.Metrics
	log     *applogger.Logger

	bufSize    int
	bufCh      chan models.AirborneEvent
	backoffMin time.Duration
	backoffMax time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	mu      sync.Mutex
}

type RetryOption func(*RetrySink)

// WithBufferSize sets how many events may wait for redelivery.
func WithBufferSize(n int) RetryOption {
	return func(s *RetrySink) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

// WithBackoff bounds the delay between failed redelivery attempts.
func WithBackoff(min, max time.Duration) RetryOption {
	return func(s *RetrySink) {
		if min > 0 && max >= min {
			s.backoffMin, s.backoffMax = min, max
		}
	}
}

func WithLogger(l *applogger.Logger) RetryOption {
	return func(s *RetrySink) {
		if l != nil {
			s.log = l
		}
	}
}

// NewRetrySink wraps next.
func NewRetrySink(next domrepo.EventSink, metrics domrepo.Metrics, opts ...RetryOption) (*RetrySink, error) {
	if next == nil {
		return nil, fmt.Errorf("retry sink: next sink is required")
	}
	if metrics == nil {
		return nil, fmt.Errorf("retry sink: metrics are required")
	}
	s := &RetrySink{
		next:       next,
		metrics:    metrics,
		log:        applogger.Nop(),
		bufSize:    1000,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bufCh = make(chan models.AirborneEvent, s.bufSize)
	return s, nil
}

// Accept forwards e. When downstream fails, e is kept for redelivery and
// Accept reports success; only a full buffer is an error.
func (s *RetrySink) Accept(ctx context.Context, e models.AirborneEvent) error {
	start := time.Now()
	err := s.next.Accept(ctx, e)
	if err == nil {
		s.metrics.RecordLatency("sink_deliver", time.Since(start).Seconds())
		return nil
	}

	s.metrics.RecordError("sink_deliver")
	select {
	case s.bufCh <- e:
		s.log.Warn("event delivery deferred",
			applogger.String("event_id", e.ID),
			applogger.Int("buffered", len(s.bufCh)),
			applogger.Error(err),
		)
		return nil
	default:
		s.metrics.RecordError("sink_buffer_full")
		return fmt.Errorf("%w: %w", ErrBufferFull, err)
	}
}

// Pending returns the number of events waiting for redelivery.
func (s *RetrySink) Pending() int { return len(s.bufCh) }

// Start launches background redelivery of buffered events. A sink runs at
// most once: Start after Stop is a no-op.
func (s *RetrySink) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.doneCh)
		backoff := s.backoffMin
		for {
			select {
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			case e := <-s.bufCh:
				if err := s.next.Accept(ctx, e); err != nil {
					s.metrics.RecordError("sink_redeliver")
					if !s.requeue(e) {
						return
					}
					if !s.sleep(ctx, backoff) {
						return
					}
					if backoff *= 2; backoff > s.backoffMax {
						backoff = s.backoffMax
					}
					continue
				}
				backoff = s.backoffMin
			}
		}
	}()
}

// Stop ends background redelivery and makes one last attempt for each
// buffered event within ctx.
func (s *RetrySink) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.stopped = true
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	var lost int
	for {
		select {
		case e := <-s.bufCh:
			if ctx.Err() != nil || s.next.Accept(ctx, e) != nil {
				lost++
			}
		default:
			if lost > 0 {
				s.log.Error("events lost at shutdown", applogger.Int("count", lost))
				return fmt.Errorf("retry sink: %d events not delivered", lost)
			}
			return nil
		}
	}
}

func (s *RetrySink) requeue(e models.AirborneEvent) bool {
	select {
	case s.bufCh <- e:
		return true
	case <-s.stopCh:
		// Stop drains the buffer; put the event back for it if there is room
		select {
		case s.bufCh <- e:
		default:
			s.log.Error("event dropped at shutdown", applogger.String("event_id", e.ID))
		}
		return false
	default:
		s.metrics.RecordError("sink_buffer_drop")
		s.log.Error("event dropped, retry buffer full", applogger.String("event_id", e.ID))
		return true
	}
}

func (s *RetrySink) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
