// Package units provides the distance and speed value types used by track data.
package units

import (
	"fmt"
	"math"
)

const (
	feetPerNauticalMile = 6076.11548556
	feetPerMeter        = 3.28083989501
	knotsPerMPS         = 1.94384449244
)

// Distance is a signed linear distance stored in feet.
type Distance float64

// Feet builds a Distance from feet.
func Feet(ft float64) Distance { return Distance(ft) }

// Meters builds a Distance from meters.
func Meters(m float64) Distance { return Distance(m * feetPerMeter) }

// NauticalMiles builds a Distance from nautical miles.
func NauticalMiles(nm float64) Distance { return Distance(nm * feetPerNauticalMile) }

func (d Distance) InFeet() float64          { return float64(d) }
func (d Distance) InMeters() float64        { return float64(d) / feetPerMeter }
func (d Distance) InNauticalMiles() float64 { return float64(d) / feetPerNauticalMile }

// Minus returns d - o.
func (d Distance) Minus(o Distance) Distance { return d - o }

// Abs returns the magnitude of d.
func (d Distance) Abs() Distance { return Distance(math.Abs(float64(d))) }

// IsLessThan reports d < o.
func (d Distance) IsLessThan(o Distance) bool { return d < o }

// IsNegative reports d < 0.
func (d Distance) IsNegative() bool { return d < 0 }

func (d Distance) String() string { return fmt.Sprintf("%.1fft", float64(d)) }

// Speed is a non-negative magnitude stored in knots.
type Speed float64

// Zero is the zero speed.
const Zero Speed = 0

// Knots builds a Speed from knots.
func Knots(kt float64) Speed { return Speed(kt) }

// MetersPerSecond builds a Speed from m/s.
func MetersPerSecond(mps float64) Speed { return Speed(mps * knotsPerMPS) }

func (s Speed) InKnots() float64           { return float64(s) }
func (s Speed) InMetersPerSecond() float64 { return float64(s) / knotsPerMPS }

// IsLessThan reports s < o.
func (s Speed) IsLessThan(o Speed) bool { return s < o }

// IsGreaterThan reports s > o.
func (s Speed) IsGreaterThan(o Speed) bool { return s > o }

func (s Speed) String() string { return fmt.Sprintf("%.1fkt", float64(s)) }

// Ptr returns a pointer to a copy of s, for optional speed fields.
func (s Speed) Ptr() *Speed { return &s }
