package models

import "time"

// EventSummary is a point-in-time view of the events seen by a pipeline.
// Min separations and times are only meaningful when TotalEvents > 0.
type EventSummary struct {
	TotalEvents             int64            `json:"total_events"`
	ByCategory              map[string]int64 `json:"by_category"`
	ByFacility              map[string]int64 `json:"by_facility"`
	MinLateralSeparationNM  float64          `json:"min_lateral_separation_nm"`
	MinVerticalSeparationFt float64          `json:"min_vertical_separation_ft"`
	ScoreSum                float64          `json:"score_sum"`
	MeanScore               float64          `json:"mean_score"`
	FirstEventTime          *time.Time       `json:"first_event_time,omitempty"`
	LastEventTime           *time.Time       `json:"last_event_time,omitempty"`
}
