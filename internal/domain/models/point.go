package models

import (
	"time"

	"AriaPull/pkg/units"
)

// Point is one timestamped sample of a track. Values are immutable once built.
type Point[T any] struct {
	time     time.Time
	altitude units.Distance
	speed    units.Speed
	hasSpeed bool
	payload  T
}

// NewPoint builds a point with a known ground speed. Speed is a magnitude; a
// negative value is not a measurement and leaves the speed unknown.
func NewPoint[T any](t time.Time, alt units.Distance, speed units.Speed, payload T) Point[T] {
	if speed < 0 {
		return NewPointWithoutSpeed(t, alt, payload)
	}
	return Point[T]{time: t, altitude: alt, speed: speed, hasSpeed: true, payload: payload}
}

// NewPointWithoutSpeed builds a point whose ground speed is unknown.
func NewPointWithoutSpeed[T any](t time.Time, alt units.Distance, payload T) Point[T] {
	return Point[T]{time: t, altitude: alt, payload: payload}
}

func (p Point[T]) Time() time.Time          { return p.time }
func (p Point[T]) Altitude() units.Distance { return p.altitude }
func (p Point[T]) Payload() T               { return p.payload }
func (p Point[T]) HasSpeed() bool           { return p.hasSpeed }

// Speed returns the ground speed and whether it is known.
func (p Point[T]) Speed() (units.Speed, bool) { return p.speed, p.hasSpeed }
