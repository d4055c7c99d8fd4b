package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"AriaPull/internal/domain/models"
	"AriaPull/internal/domain/repository"
	"AriaPull/internal/domain/service"
	"AriaPull/internal/services/summary"
	applogger "AriaPull/pkg/logger"
	"AriaPull/pkg/util"
)

// ErrNilPair is returned when there is no pair to process.
var ErrNilPair = errors.New("track pair is nil")

// PairFailure describes a pair that could not be processed. Track fields are
// filled only when the pair itself was available.
type PairFailure struct {
	Message    string
	Track1ID   string
	Track2ID   string
	Track1Size int
	Track2Size int
	Resolved   bool
	Err        error
}

func (f *PairFailure) Error() string {
	if !f.Resolved {
		return "process pair: " + f.Message
	}
	return fmt.Sprintf("process pair %s|%s: %s", f.Track1ID, f.Track2ID, f.Message)
}

func (f *PairFailure) Unwrap() error { return f.Err }

// PairConsumer runs the detector over track pairs, folds every event into a
// running summary and forwards it to the sink. A failing pair is counted,
// logged and reported; it never affects the next call.
//
// Process may be called concurrently as long as the detector and the sink
// are safe for concurrent use.
type PairConsumer[T any] struct {
	detector service.Detector[T]
	sink     repository.EventSink
	errs     repository.ErrorCounter
	metrics  repository.Metrics
	summary  *summary.Summarizer
	log      *applogger.Logger
}

// NewPairConsumer wires a consumer. All collaborators are required.
func NewPairConsumer[T any](
	detector service.Detector[T],
	sink repository.EventSink,
	errs repository.ErrorCounter,
	metrics repository.Metrics,
) (*PairConsumer[T], error) {
	switch {
	case detector == nil:
		return nil, fmt.Errorf("pair consumer: detector is required")
	case sink == nil:
		return nil, fmt.Errorf("pair consumer: sink is required")
	case errs == nil:
		return nil, fmt.Errorf("pair consumer: error counter is required")
	case metrics == nil:
		return nil, fmt.Errorf("pair consumer: metrics are required")
	}
	return &PairConsumer[T]{
		detector: detector,
		sink:     sink,
		errs:     errs,
		metrics:  metrics,
		summary:  summary.New(),
	}, nil
}

func (c *PairConsumer[T]) SetLogger(l *applogger.Logger) { c.log = l }

// Process handles one pair. The returned error is a *PairFailure.
func (c *PairConsumer[T]) Process(ctx context.Context, pair *models.TrackPair[T]) error {
	_, err := c.ProcessEvents(ctx, pair)
	return err
}

// ProcessEvents is Process that also hands back the detected events. Events
// are returned even when some of them could not be forwarded.
func (c *PairConsumer[T]) ProcessEvents(ctx context.Context, pair *models.TrackPair[T]) ([]models.AirborneEvent, error) {
	start := time.Now()
	var events []models.AirborneEvent
	err := util.Guard(func() error {
		var err error
		events, err = c.process(ctx, pair)
		return err
	})
	c.metrics.RecordLatency("process_pair", time.Since(start).Seconds())
	if err != nil {
		return events, c.Fail(pair, err)
	}

	if len(events) == 0 {
		c.metrics.RecordPairProcessed("empty")
	} else {
		c.metrics.RecordPairProcessed("events")
	}
	return events, nil
}

func (c *PairConsumer[T]) process(ctx context.Context, pair *models.TrackPair[T]) ([]models.AirborneEvent, error) {
	if pair == nil {
		return nil, ErrNilPair
	}

	events, err := c.detector.Detect(ctx, *pair)
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	var sinkErrs []error
	for _, e := range events {
		c.summary.Observe(e)
		c.metrics.RecordEventDetected(e.Category)

		if err := util.Guard(func() error { return c.sink.Accept(ctx, e) }); err != nil {
			sinkErrs = append(sinkErrs, fmt.Errorf("forward event %s: %w", e.ID, err))
		}
	}
	return events, errors.Join(sinkErrs...)
}

// Fail records a pair-level failure: the error counter goes up by one, the
// diagnostic is logged and returned. It is also the entry point for inputs
// that never became a pair (pair is nil then).
func (c *PairConsumer[T]) Fail(pair *models.TrackPair[T], cause error) error {
	c.errs.Increment()
	c.metrics.RecordPairProcessed("failed")
	kind := "pair"
	if util.IsPanic(cause) {
		kind = "pair_panic"
	}
	c.metrics.RecordError(kind)

	f := &PairFailure{Message: cause.Error(), Err: cause}
	if pair != nil {
		f.Resolved = true
		f.Track1ID, f.Track1Size = pair.Track1.ID(), pair.Track1.Len()
		f.Track2ID, f.Track2Size = pair.Track2.ID(), pair.Track2.Len()
	}

	if c.log != nil {
		fields := []applogger.Field{applogger.Error(cause)}
		if f.Resolved {
			fields = append(fields,
				applogger.String("track1_id", f.Track1ID),
				applogger.Int("track1_size", f.Track1Size),
				applogger.String("track2_id", f.Track2ID),
				applogger.Int("track2_size", f.Track2Size),
			)
		}
		var pe *util.PanicError
		if errors.As(cause, &pe) {
			fields = append(fields, applogger.String("stack", string(pe.Stack)))
		}
		c.log.Error("track pair failed", fields...)
	}
	return f
}

// Summary returns a snapshot of the events seen so far.
func (c *PairConsumer[T]) Summary() models.EventSummary { return c.summary.Snapshot() }

func (c *PairConsumer[T]) ResetSummary() { c.summary.Reset() }

// Errors is the shared failure count.
func (c *PairConsumer[T]) Errors() int64 { return c.errs.Count() }
