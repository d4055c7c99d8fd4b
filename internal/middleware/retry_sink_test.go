package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"AriaPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySink struct {
	mu      sync.Mutex
	down    bool
	got     []string
	attempt int
}

func (f *flakySink) Accept(_ context.Context, e models.AirborneEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempt++
	if f.down {
		return errors.New("broker unavailable")
	}
	f.got = append(f.got, e.ID)
	return nil
}

func (f *flakySink) setDown(v bool) {
	f.mu.Lock()
	f.down = v
	f.mu.Unlock()
}

func (f *flakySink) delivered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.got...)
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors []string
}

func (m *fakeMetrics) RecordPairProcessed(string)    {}
func (m *fakeMetrics) RecordEventDetected(string)    {}
func (m *fakeMetrics) RecordRejection(string)        {}
func (m *fakeMetrics) RecordLatency(string, float64) {}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}

func TestRetrySinkPassThrough(t *testing.T) {
	next := &flakySink{}
	s, err := NewRetrySink(next, &fakeMetrics{})
	require.NoError(t, err)

	require.NoError(t, s.Accept(context.Background(), models.AirborneEvent{ID: "e1"}))
	assert.Equal(t, []string{"e1"}, next.delivered())
	assert.Zero(t, s.Pending())
}

func TestRetrySinkRedeliversAfterOutage(t *testing.T) {
	next := &flakySink{down: true}
	s, err := NewRetrySink(next, &fakeMetrics{}, WithBackoff(time.Millisecond, 5*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Accept(context.Background(), models.AirborneEvent{ID: "e1"}))
	assert.Equal(t, 1, s.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	next.setDown(false)
	assert.Eventually(t, func() bool {
		return len(next.delivered()) == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}

func TestRetrySinkBufferFull(t *testing.T) {
	next := &flakySink{down: true}
	m := &fakeMetrics{}
	s, err := NewRetrySink(next, m, WithBufferSize(1))
	require.NoError(t, err)

	require.NoError(t, s.Accept(context.Background(), models.AirborneEvent{ID: "e1"}))
	err = s.Accept(context.Background(), models.AirborneEvent{ID: "e2"})
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.Contains(t, m.errors, "sink_buffer_full")
}

func TestRetrySinkStopReportsLostEvents(t *testing.T) {
	next := &flakySink{down: true}
	s, err := NewRetrySink(next, &fakeMetrics{}, WithBackoff(time.Hour, time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.NoError(t, s.Accept(context.Background(), models.AirborneEvent{ID: "e1"}))

	err = s.Stop(context.Background())
	assert.Error(t, err)
	assert.Empty(t, next.delivered())
}

func TestRetrySinkStopFlushes(t *testing.T) {
	next := &flakySink{down: true}
	s, err := NewRetrySink(next, &fakeMetrics{}, WithBackoff(time.Hour, time.Hour))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.NoError(t, s.Accept(context.Background(), models.AirborneEvent{ID: "e1"}))

	next.setDown(false)
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"e1"}, next.delivered())
}

func TestRetrySinkRunsOnce(t *testing.T) {
	next := &flakySink{}
	s, err := NewRetrySink(next, &fakeMetrics{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.NoError(t, s.Stop(context.Background()))

	assert.NotPanics(t, func() {
		s.Start(ctx)
		require.NoError(t, s.Stop(context.Background()))
	})
}

func TestNewRetrySinkRequiresCollaborators(t *testing.T) {
	_, err := NewRetrySink(nil, &fakeMetrics{})
	assert.Error(t, err)
	_, err = NewRetrySink(&flakySink{}, nil)
	assert.Error(t, err)
}
