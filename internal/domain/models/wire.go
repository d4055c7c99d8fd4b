package models

import (
	"fmt"

	"AriaPull/pkg/units"
	"AriaPull/pkg/util"
)

// Wire shapes for track pairs arriving on Kafka or over HTTP. Time accepts
// RFC3339 or unix seconds/milliseconds. A missing speed_kt is kept as an
// unknown speed so the trimmer can reject the track.

type PointMessage struct {
	Time       string   `json:"time" validate:"required"`
	AltitudeFt float64  `json:"altitude_ft"`
	SpeedKt    *float64 `json:"speed_kt,omitempty" validate:"omitempty,gte=0"`
	Latitude   float64  `json:"lat" validate:"gte=-90,lte=90"`
	Longitude  float64  `json:"lon" validate:"gte=-180,lte=180"`
	Callsign   string   `json:"callsign,omitempty"`
	Beacon     string   `json:"beacon,omitempty"`
	Facility   string   `json:"facility,omitempty"`
}

type TrackMessage struct {
	ID     string         `json:"id" validate:"required"`
	Points []PointMessage `json:"points" validate:"required,min=1,dive"`
}

type TrackPairMessage struct {
	Track1 TrackMessage `json:"track1" validate:"required"`
	Track2 TrackMessage `json:"track2" validate:"required"`
}

// ToTrack converts the wire form into a sorted, de-duplicated RadarTrack.
func (m TrackMessage) ToTrack() (RadarTrack, error) {
	points := make([]Point[RadarHit], 0, len(m.Points))
	for i, p := range m.Points {
		t, ok := util.ParseTime(p.Time)
		if !ok {
			return RadarTrack{}, fmt.Errorf("track %s point %d: bad time %q", m.ID, i, p.Time)
		}
		hit := RadarHit{
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Callsign:  p.Callsign,
			Beacon:    p.Beacon,
			Facility:  p.Facility,
		}
		alt := units.Feet(p.AltitudeFt)
		if p.SpeedKt == nil {
			points = append(points, NewPointWithoutSpeed(t, alt, hit))
			continue
		}
		points = append(points, NewPoint(t, alt, units.Knots(*p.SpeedKt), hit))
	}
	return NewTrack(m.ID, points), nil
}

func (m TrackPairMessage) ToPair() (*RadarPair, error) {
	t1, err := m.Track1.ToTrack()
	if err != nil {
		return nil, err
	}
	t2, err := m.Track2.ToTrack()
	if err != nil {
		return nil, err
	}
	return &RadarPair{Track1: t1, Track2: t2}, nil
}

// NewTrackMessage is the inverse of ToTrack, used when echoing cleaned tracks.
func NewTrackMessage(t RadarTrack) TrackMessage {
	out := TrackMessage{ID: t.ID(), Points: make([]PointMessage, 0, t.Len())}
	for _, p := range t.Points() {
		hit := p.Payload()
		pm := PointMessage{
			Time:       p.Time().UTC().Format(timeLayout),
			AltitudeFt: p.Altitude().InFeet(),
			Latitude:   hit.Latitude,
			Longitude:  hit.Longitude,
			Callsign:   hit.Callsign,
			Beacon:     hit.Beacon,
			Facility:   hit.Facility,
		}
		if s, ok := p.Speed(); ok {
			kt := s.InKnots()
			pm.SpeedKt = &kt
		}
		out.Points = append(out.Points, pm)
	}
	return out
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"
