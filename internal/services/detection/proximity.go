// Package detection finds airborne events in track pairs.
package detection

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"AriaPull/internal/domain/models"
	"AriaPull/internal/services/smoothing"
	applogger "AriaPull/pkg/logger"
	"AriaPull/pkg/units"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	StateLevel      = "level"
	StateClimbing   = "climbing"
	StateDescending = "descending"

	// vertical rate beyond which an aircraft is no longer level
	levelRateFPM = 300.0
)

type ProximityConfig struct {
	LateralThreshold  units.Distance
	VerticalThreshold units.Distance
	// MaxTimeGap bounds how far apart in time two samples may be and still
	// be compared.
	MaxTimeGap time.Duration
	// Facility is used when the radar hits carry none.
	Facility string
}

// ProximityDetector cleans both tracks, then reports the closest point of
// approach when it falls inside both separation thresholds.
type ProximityDetector struct {
	cfg     ProximityConfig
	trimmer *smoothing.Trimmer[models.RadarHit]
	log     *applogger.Logger
	newID   func() string
}

func NewProximityDetector(cfg ProximityConfig, trimmer *smoothing.Trimmer[models.RadarHit]) (*ProximityDetector, error) {
	if trimmer == nil {
		return nil, fmt.Errorf("proximity detector: trimmer is required")
	}
	if cfg.LateralThreshold <= 0 || cfg.VerticalThreshold <= 0 {
		return nil, fmt.Errorf("proximity detector: thresholds must be positive")
	}
	if cfg.MaxTimeGap <= 0 {
		cfg.MaxTimeGap = 10 * time.Second
	}
	return &ProximityDetector{
		cfg:     cfg,
		trimmer: trimmer,
		newID:   func() string { return uuid.NewString() },
	}, nil
}

// SetLogger sets an optional logger for diagnostics.
func (d *ProximityDetector) SetLogger(l *applogger.Logger) { d.log = l }

// Detect returns at most one event per pair. Both tracks are always cleaned;
// a track the trimmer rejects yields no events and has already been counted
// and logged by the trimmer.
func (d *ProximityDetector) Detect(ctx context.Context, pair models.RadarPair) ([]models.AirborneEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t1, ok1 := d.clean(pair.Track1)
	t2, ok2 := d.clean(pair.Track2)
	if !ok1 || !ok2 {
		return nil, nil
	}

	cpa, found := closestApproach(t1, t2, d.cfg.MaxTimeGap)
	if !found {
		return nil, nil
	}
	if !cpa.lateral.IsLessThan(d.cfg.LateralThreshold) || !cpa.vertical.IsLessThan(d.cfg.VerticalThreshold) {
		return nil, nil
	}

	return []models.AirborneEvent{d.event(t1, t2, cpa)}, nil
}

func (d *ProximityDetector) clean(t models.RadarTrack) (models.RadarTrack, bool) {
	cleaned, err := d.trimmer.Clean(t)
	if err == nil {
		return cleaned, true
	}
	if d.log != nil && !errors.Is(err, smoothing.ErrInsufficientPoints) {
		d.log.Debug("pair skipped after cleaning", applogger.String("track_id", t.ID()), applogger.Error(err))
	}
	return models.RadarTrack{}, false
}

type approach struct {
	i, j     int
	lateral  units.Distance
	vertical units.Distance
}

// closestApproach pairs every point of a with the nearest-in-time point of b
// and keeps the pair with the smallest lateral separation.
func closestApproach(a, b models.RadarTrack, maxGap time.Duration) (approach, bool) {
	best := approach{}
	found := false
	for i := 0; i < a.Len(); i++ {
		p := a.At(i)
		j, ok := nearestInTime(b, p.Time(), maxGap)
		if !ok {
			continue
		}
		q := b.At(j)
		lat := lateralSeparation(p.Payload(), q.Payload())
		vert := p.Altitude().Minus(q.Altitude()).Abs()
		if !found || lat.IsLessThan(best.lateral) || (lat == best.lateral && vert.IsLessThan(best.vertical)) {
			best = approach{i: i, j: j, lateral: lat, vertical: vert}
			found = true
		}
	}
	return best, found
}

func nearestInTime(t models.RadarTrack, at time.Time, maxGap time.Duration) (int, bool) {
	n := t.Len()
	if n == 0 {
		return 0, false
	}
	k := sort.Search(n, func(i int) bool { return !t.At(i).Time().Before(at) })

	best, bestGap := -1, time.Duration(math.MaxInt64)
	for _, c := range []int{k - 1, k} {
		if c < 0 || c >= n {
			continue
		}
		gap := t.At(c).Time().Sub(at)
		if gap < 0 {
			gap = -gap
		}
		if gap < bestGap {
			best, bestGap = c, gap
		}
	}
	if best < 0 || bestGap > maxGap {
		return 0, false
	}
	return best, true
}

func lateralSeparation(a, b models.RadarHit) units.Distance {
	m := geo.DistanceHaversine(orb.Point{a.Longitude, a.Latitude}, orb.Point{b.Longitude, b.Latitude})
	return units.Meters(m)
}

// VerticalState classifies the climb rate around point i.
func VerticalState(t models.RadarTrack, i int) string {
	lo, hi := i-1, i+1
	if lo < 0 {
		lo = 0
	}
	if hi >= t.Len() {
		hi = t.Len() - 1
	}
	if lo == hi {
		return StateLevel
	}
	minutes := t.At(hi).Time().Sub(t.At(lo).Time()).Minutes()
	if minutes <= 0 {
		return StateLevel
	}
	rate := t.At(hi).Altitude().Minus(t.At(lo).Altitude()).InFeet() / minutes
	switch {
	case rate > levelRateFPM:
		return StateClimbing
	case rate < -levelRateFPM:
		return StateDescending
	default:
		return StateLevel
	}
}

// Category joins both vertical states in sorted order so that the pair
// order does not matter, e.g. "climbing/level".
func Category(s1, s2 string) string {
	states := []string{s1, s2}
	sort.Strings(states)
	return strings.Join(states, "/")
}

func (d *ProximityDetector) event(t1, t2 models.RadarTrack, cpa approach) models.AirborneEvent {
	p, q := t1.At(cpa.i), t2.At(cpa.j)
	h1, h2 := p.Payload(), q.Payload()

	mid := geo.Midpoint(orb.Point{h1.Longitude, h1.Latitude}, orb.Point{h2.Longitude, h2.Latitude})

	facility := h1.Facility
	if facility == "" {
		facility = h2.Facility
	}
	if facility == "" {
		facility = d.cfg.Facility
	}

	lateral := cpa.lateral.InNauticalMiles()
	vertical := cpa.vertical.InFeet()
	score := ((1 - lateral/d.cfg.LateralThreshold.InNauticalMiles()) +
		(1 - vertical/d.cfg.VerticalThreshold.InFeet())) / 2

	return models.AirborneEvent{
		ID:                   d.newID(),
		Category:             Category(VerticalState(t1, cpa.i), VerticalState(t2, cpa.j)),
		Time:                 p.Time(),
		Facility:             facility,
		Track1ID:             t1.ID(),
		Track2ID:             t2.ID(),
		Callsign1:            h1.Callsign,
		Callsign2:            h2.Callsign,
		Latitude:             mid.Lat(),
		Longitude:            mid.Lon(),
		LateralSeparationNM:  lateral,
		VerticalSeparationFt: vertical,
		Score:                score,
	}
}
