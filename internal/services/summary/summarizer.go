// Package summary accumulates statistics over detected airborne events.
package summary

import (
	"sync"
	"time"

	"AriaPull/internal/domain/models"
)

// Summarizer is safe for concurrent use. It is only ever cleared by Reset.
type Summarizer struct {
	mu          sync.RWMutex
	total       int64
	byCategory  map[string]int64
	byFacility  map[string]int64
	minLateral  float64
	minVertical float64
	scoreSum    float64
	first       time.Time
	last        time.Time
}

func New() *Summarizer {
	return &Summarizer{
		byCategory: make(map[string]int64),
		byFacility: make(map[string]int64),
	}
}

// Observe folds one event into the running statistics.
func (s *Summarizer) Observe(e models.AirborneEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.total == 0 || e.LateralSeparationNM < s.minLateral {
		s.minLateral = e.LateralSeparationNM
	}
	if s.total == 0 || e.VerticalSeparationFt < s.minVertical {
		s.minVertical = e.VerticalSeparationFt
	}
	if !e.Time.IsZero() {
		if s.first.IsZero() || e.Time.Before(s.first) {
			s.first = e.Time
		}
		if e.Time.After(s.last) {
			s.last = e.Time
		}
	}

	s.total++
	s.byCategory[e.Category]++
	s.byFacility[e.Facility]++
	s.scoreSum += e.Score
}

// Snapshot returns a copy that later Observe calls do not touch.
func (s *Summarizer) Snapshot() models.EventSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := models.EventSummary{
		TotalEvents: s.total,
		ByCategory:  make(map[string]int64, len(s.byCategory)),
		ByFacility:  make(map[string]int64, len(s.byFacility)),
		ScoreSum:    s.scoreSum,
	}
	for k, v := range s.byCategory {
		out.ByCategory[k] = v
	}
	for k, v := range s.byFacility {
		out.ByFacility[k] = v
	}
	if s.total > 0 {
		out.MinLateralSeparationNM = s.minLateral
		out.MinVerticalSeparationFt = s.minVertical
		out.MeanScore = s.scoreSum / float64(s.total)
	}
	if !s.first.IsZero() {
		first, last := s.first, s.last
		out.FirstEventTime = &first
		out.LastEventTime = &last
	}
	return out
}

func (s *Summarizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total = 0
	s.byCategory = make(map[string]int64)
	s.byFacility = make(map[string]int64)
	s.minLateral, s.minVertical, s.scoreSum = 0, 0, 0
	s.first, s.last = time.Time{}, time.Time{}
}
