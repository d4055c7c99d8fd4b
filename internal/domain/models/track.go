package models

import (
	"fmt"
	"sort"
)

// Track is an identified sequence of points ordered by time with unique
// timestamps. The zero value is an empty track.
type Track[T any] struct {
	id     string
	points []Point[T]
}

// NewTrack sorts points by time and drops later duplicates of a timestamp.
// The input slice is not retained.
func NewTrack[T any](id string, points []Point[T]) Track[T] {
	sorted := make([]Point[T], len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].time.Before(sorted[j].time)
	})

	out := sorted[:0]
	for i, p := range sorted {
		if i > 0 && p.time.Equal(out[len(out)-1].time) {
			continue
		}
		out = append(out, p)
	}
	return Track[T]{id: id, points: out}
}

func (t Track[T]) ID() string { return t.id }
func (t Track[T]) Len() int   { return len(t.points) }

// Points returns a copy of the points in time order.
func (t Track[T]) Points() []Point[T] {
	out := make([]Point[T], len(t.points))
	copy(out, t.points)
	return out
}

// At returns the i-th point in time order.
func (t Track[T]) At(i int) Point[T] { return t.points[i] }

// Sub returns a new track holding points [from, to).
func (t Track[T]) Sub(from, to int) Track[T] {
	out := make([]Point[T], to-from)
	copy(out, t.points[from:to])
	return Track[T]{id: t.id, points: out}
}

func (t Track[T]) String() string {
	return fmt.Sprintf("track %s (%d points)", t.id, len(t.points))
}

// TrackPair is two tracks considered together for event detection.
type TrackPair[T any] struct {
	Track1 Track[T]
	Track2 Track[T]
}

// Key identifies the pair in logs and dedup keys.
func (p TrackPair[T]) Key() string {
	return p.Track1.id + "|" + p.Track2.id
}
