package models

import (
	"testing"
	"time"

	"AriaPull/pkg/units"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrackSortsAndDeduplicates(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	pts := []Point[string]{
		NewPoint(base.Add(2*time.Second), units.Feet(300), units.Knots(150), "c"),
		NewPoint(base, units.Feet(100), units.Knots(10), "a"),
		NewPoint(base.Add(time.Second), units.Feet(200), units.Knots(90), "b"),
		NewPoint(base, units.Feet(999), units.Knots(10), "dup"),
	}

	tr := NewTrack("T1", pts)
	require.Equal(t, 3, tr.Len())
	assert.Equal(t, "a", tr.At(0).Payload())
	assert.Equal(t, "b", tr.At(1).Payload())
	assert.Equal(t, "c", tr.At(2).Payload())

	// input untouched
	assert.Equal(t, "c", pts[0].Payload())
}

func TestTrackPointsIsACopy(t *testing.T) {
	base := time.Now()
	tr := NewTrack("T1", []Point[int]{NewPoint(base, units.Feet(0), units.Zero, 1)})

	p := tr.Points()
	p[0] = NewPoint(base, units.Feet(0), units.Zero, 42)
	assert.Equal(t, 1, tr.At(0).Payload())

	sub := tr.Sub(0, 1)
	assert.Equal(t, "T1", sub.ID())
	assert.Equal(t, 1, sub.Len())
}

func TestPointSpeed(t *testing.T) {
	now := time.Now()
	_, ok := NewPointWithoutSpeed(now, units.Feet(10), 0).Speed()
	assert.False(t, ok)

	s, ok := NewPoint(now, units.Feet(10), units.Knots(12), 0).Speed()
	assert.True(t, ok)
	assert.Equal(t, units.Knots(12), s)

	_, ok = NewPoint(now, units.Feet(10), units.Knots(-3), 0).Speed()
	assert.False(t, ok)

	s, ok = NewPoint(now, units.Feet(10), units.Knots(0), 0).Speed()
	assert.True(t, ok)
	assert.Zero(t, s)
}

func TestTrackMessageRoundTrip(t *testing.T) {
	speed := 140.0
	msg := TrackMessage{
		ID: "AAL12",
		Points: []PointMessage{
			{Time: "2024-05-01T12:00:01Z", AltitudeFt: 1200, SpeedKt: &speed, Latitude: 40.6, Longitude: -73.7, Callsign: "AAL12"},
			{Time: "1714564800", AltitudeFt: 1000},
		},
	}

	tr, err := msg.ToTrack()
	require.NoError(t, err)
	require.Equal(t, 2, tr.Len())
	assert.False(t, tr.At(0).HasSpeed())
	assert.True(t, tr.At(1).HasSpeed())
	assert.Equal(t, "AAL12", tr.At(1).Payload().Callsign)

	back := NewTrackMessage(tr)
	assert.Equal(t, "2024-05-01T12:00:00Z", back.Points[0].Time)
	assert.Nil(t, back.Points[0].SpeedKt)
	require.NotNil(t, back.Points[1].SpeedKt)
	assert.Equal(t, 140.0, *back.Points[1].SpeedKt)

	_, err = TrackMessage{ID: "x", Points: []PointMessage{{Time: "yesterday"}}}.ToTrack()
	assert.Error(t, err)
}

func TestEventKeyIgnoresID(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := AirborneEvent{ID: "1", Track1ID: "A", Track2ID: "B", Time: at, Category: "level/level"}
	b := a
	b.ID = "2"
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "A|B", TrackPair[int]{Track1: NewTrack[int]("A", nil), Track2: NewTrack[int]("B", nil)}.Key())
}
