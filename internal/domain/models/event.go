package models

import (
	"fmt"
	"time"
)

// AirborneEvent is one detected loss of separation between two tracks.
type AirborneEvent struct {
	ID                   string    `json:"id"`
	Category             string    `json:"category"`
	Time                 time.Time `json:"time"`
	Facility             string    `json:"facility"`
	Track1ID             string    `json:"track1_id"`
	Track2ID             string    `json:"track2_id"`
	Callsign1            string    `json:"callsign1,omitempty"`
	Callsign2            string    `json:"callsign2,omitempty"`
	Latitude             float64   `json:"lat"`
	Longitude            float64   `json:"lon"`
	LateralSeparationNM  float64   `json:"lateral_separation_nm"`
	VerticalSeparationFt float64   `json:"vertical_separation_ft"`
	Score                float64   `json:"score"`
}

// Key is stable across re-detection of the same encounter, unlike ID.
func (e AirborneEvent) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s", e.Track1ID, e.Track2ID, e.Time.UnixMilli(), e.Category)
}
