package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"AriaPull/internal/domain/models"
	"AriaPull/pkg/metrics"
	"AriaPull/pkg/units"
	"AriaPull/pkg/util"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type detectorFunc func(ctx context.Context, pair models.RadarPair) ([]models.AirborneEvent, error)

func (f detectorFunc) Detect(ctx context.Context, pair models.RadarPair) ([]models.AirborneEvent, error) {
	return f(ctx, pair)
}

type recordingSink struct {
	mu     sync.Mutex
	got    []models.AirborneEvent
	failOn map[string]error
	panics map[string]bool
}

func (s *recordingSink) Accept(_ context.Context, e models.AirborneEvent) error {
	if s.panics[e.ID] {
		panic("sink exploded on " + e.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, e)
	return s.failOn[e.ID]
}

func (s *recordingSink) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.got))
	for i, e := range s.got {
		ids[i] = e.ID
	}
	return ids
}

func radarTrack(id string, n int) models.RadarTrack {
	pts := make([]models.Point[models.RadarHit], n)
	for i := range pts {
		pts[i] = models.NewPoint(t0.Add(time.Duration(i)*time.Second), units.Feet(5000), units.Knots(250),
			models.RadarHit{Latitude: 40, Longitude: -73, Callsign: id})
	}
	return models.NewTrack(id, pts)
}

func radarPair(n1, n2 int) *models.RadarPair {
	return &models.RadarPair{Track1: radarTrack("T1", n1), Track2: radarTrack("T2", n2)}
}

func event(id, category string, lateral float64) models.AirborneEvent {
	return models.AirborneEvent{
		ID: id, Category: category, Time: t0, Facility: "N90",
		Track1ID: "T1", Track2ID: "T2",
		LateralSeparationNM: lateral, VerticalSeparationFt: 400, Score: 0.5,
	}
}

type fixture struct {
	consumer *PairConsumer[models.RadarHit]
	sink     *recordingSink
	errs     *metrics.ErrorCounter
	reg      *prometheus.Registry
}

func newFixture(t *testing.T, d detectorFunc) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink := &recordingSink{}
	errs := metrics.NewErrorCounter()
	c, err := NewPairConsumer[models.RadarHit](d, sink, errs, metrics.NewWithRegisterer(reg))
	require.NoError(t, err)
	return &fixture{consumer: c, sink: sink, errs: errs, reg: reg}
}

func TestNewPairConsumerRejectsMissingCollaborators(t *testing.T) {
	d := detectorFunc(func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) { return nil, nil })
	sink := &recordingSink{}
	errs := metrics.NewErrorCounter()
	rec := metrics.NewWithRegisterer(prometheus.NewRegistry())

	_, err := NewPairConsumer[models.RadarHit](nil, sink, errs, rec)
	assert.Error(t, err)
	_, err = NewPairConsumer[models.RadarHit](d, nil, errs, rec)
	assert.Error(t, err)
	_, err = NewPairConsumer[models.RadarHit](d, sink, nil, rec)
	assert.Error(t, err)
	_, err = NewPairConsumer[models.RadarHit](d, sink, errs, nil)
	assert.Error(t, err)
}

func TestProcessForwardsEventsInOrder(t *testing.T) {
	f := newFixture(t, func(_ context.Context, p models.RadarPair) ([]models.AirborneEvent, error) {
		assert.Equal(t, "T1", p.Track1.ID())
		return []models.AirborneEvent{event("e1", "level/level", 0.8), event("e2", "climbing/level", 0.4)}, nil
	})

	require.NoError(t, f.consumer.Process(context.Background(), radarPair(3, 4)))

	assert.Equal(t, []string{"e1", "e2"}, f.sink.IDs())
	s := f.consumer.Summary()
	assert.Equal(t, int64(2), s.TotalEvents)
	assert.Equal(t, int64(1), s.ByCategory["climbing/level"])
	assert.InDelta(t, 0.4, s.MinLateralSeparationNM, 1e-9)
	assert.Equal(t, int64(0), f.errs.Count())
	assert.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(`
# HELP aria_track_pairs_total Track pairs processed by outcome
# TYPE aria_track_pairs_total counter
aria_track_pairs_total{outcome="events"} 1
`), "aria_track_pairs_total"))
}

type summarySnoopSink struct {
	consumer *PairConsumer[models.RadarHit]
	seen     []int64
}

func (s *summarySnoopSink) Accept(context.Context, models.AirborneEvent) error {
	s.seen = append(s.seen, s.consumer.Summary().TotalEvents)
	return nil
}

func TestProcessObservesBeforeForwarding(t *testing.T) {
	d := detectorFunc(func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) {
		return []models.AirborneEvent{event("e1", "level/level", 0.8), event("e2", "level/level", 0.6)}, nil
	})
	sink := &summarySnoopSink{}
	c, err := NewPairConsumer[models.RadarHit](d, sink, metrics.NewErrorCounter(), metrics.NewWithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	sink.consumer = c

	require.NoError(t, c.Process(context.Background(), radarPair(3, 3)))
	assert.Equal(t, []int64{1, 2}, sink.seen)
}

func TestProcessEmptyResults(t *testing.T) {
	for name, d := range map[string]detectorFunc{
		"nil slice": func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) { return nil, nil },
		"empty slice": func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) {
			return []models.AirborneEvent{}, nil
		},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, d)
			require.NoError(t, f.consumer.Process(context.Background(), radarPair(2, 2)))
			assert.Empty(t, f.sink.IDs())
			assert.Equal(t, int64(0), f.consumer.Summary().TotalEvents)
			assert.Equal(t, int64(0), f.errs.Count())
		})
	}
}

func TestProcessNilPair(t *testing.T) {
	called := false
	f := newFixture(t, func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) {
		called = true
		return nil, nil
	})

	err := f.consumer.Process(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNilPair)

	var pf *PairFailure
	require.ErrorAs(t, err, &pf)
	assert.False(t, pf.Resolved)
	assert.Empty(t, pf.Track1ID)
	assert.False(t, called)
	assert.Equal(t, int64(1), f.errs.Count())
}

func TestProcessDetectorErrorCarriesTrackDetail(t *testing.T) {
	cause := errors.New("detector unavailable")
	f := newFixture(t, func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) {
		return nil, cause
	})

	err := f.consumer.Process(context.Background(), radarPair(3, 5))
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var pf *PairFailure
	require.ErrorAs(t, err, &pf)
	assert.True(t, pf.Resolved)
	assert.Equal(t, "T1", pf.Track1ID)
	assert.Equal(t, 3, pf.Track1Size)
	assert.Equal(t, "T2", pf.Track2ID)
	assert.Equal(t, 5, pf.Track2Size)
	assert.Contains(t, pf.Error(), "T1|T2")
	assert.Equal(t, int64(1), f.errs.Count())
}

func TestProcessDetectorPanicIsIsolated(t *testing.T) {
	calls := 0
	f := newFixture(t, func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) {
		calls++
		if calls == 1 {
			panic("index out of range")
		}
		return []models.AirborneEvent{event("e1", "level/level", 0.5)}, nil
	})

	err := f.consumer.Process(context.Background(), radarPair(2, 2))
	require.Error(t, err)
	assert.True(t, util.IsPanic(err))
	assert.Equal(t, int64(1), f.errs.Count())

	require.NoError(t, f.consumer.Process(context.Background(), radarPair(2, 2)))
	assert.Equal(t, []string{"e1"}, f.sink.IDs())
	assert.Equal(t, int64(1), f.errs.Count())
}

func TestProcessSinkFailureContinuesAndCountsOnce(t *testing.T) {
	f := newFixture(t, func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) {
		return []models.AirborneEvent{
			event("e1", "level/level", 0.5),
			event("e2", "level/level", 0.5),
			event("e3", "level/level", 0.5),
		}, nil
	})
	f.sink.failOn = map[string]error{"e1": errors.New("disk full")}
	f.sink.panics = map[string]bool{"e2": true}

	events, err := f.consumer.ProcessEvents(context.Background(), radarPair(2, 2))
	require.Error(t, err)
	assert.Len(t, events, 3)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "sink exploded on e2")

	assert.Equal(t, []string{"e1", "e3"}, f.sink.IDs())
	assert.Equal(t, int64(3), f.consumer.Summary().TotalEvents)
	assert.Equal(t, int64(1), f.errs.Count())
}

func TestProcessConcurrentCallsKeepEveryUpdate(t *testing.T) {
	f := newFixture(t, func(_ context.Context, p models.RadarPair) ([]models.AirborneEvent, error) {
		if p.Track1.Len() == 1 {
			return nil, errors.New("too short")
		}
		return []models.AirborneEvent{event(p.Track1.ID(), "level/level", 1)}, nil
	})

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			size := 2
			if i%4 == 0 {
				size = 1
			}
			_ = f.consumer.Process(context.Background(), radarPair(size, 2))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(n/4), f.errs.Count())
	assert.Equal(t, int64(n-n/4), f.consumer.Summary().TotalEvents)
	assert.Len(t, f.sink.IDs(), n-n/4)
}

func TestResetSummary(t *testing.T) {
	f := newFixture(t, func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) {
		return []models.AirborneEvent{event("e1", "level/level", 1)}, nil
	})
	require.NoError(t, f.consumer.Process(context.Background(), radarPair(2, 2)))
	require.Equal(t, int64(1), f.consumer.Summary().TotalEvents)

	f.consumer.ResetSummary()
	assert.Equal(t, int64(0), f.consumer.Summary().TotalEvents)
}

func TestFailWithoutPair(t *testing.T) {
	f := newFixture(t, func(context.Context, models.RadarPair) ([]models.AirborneEvent, error) { return nil, nil })
	err := f.consumer.Fail(nil, fmt.Errorf("decode pair: %w", errors.New("unexpected EOF")))
	assert.EqualError(t, err, "process pair: decode pair: unexpected EOF")
	assert.Equal(t, int64(1), f.consumer.Errors())
}
