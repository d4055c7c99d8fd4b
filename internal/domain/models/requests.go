package models

// Requests for the HTTP API.

type EventsRequest struct {
	Limit int `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// CleanTrackRequest cleans one track, optionally with its own thresholds.
type CleanTrackRequest struct {
	Track                     TrackMessage `json:"track" validate:"required"`
	SpeedLimitKnots           *float64     `json:"speed_limit_knots,omitempty" validate:"omitempty,gt=0"`
	GroundAltitudeToleranceFt *float64     `json:"ground_altitude_tolerance_ft,omitempty" validate:"omitempty,gte=0"`
	MinPoints                 *int         `json:"min_points,omitempty" validate:"omitempty,gte=1"`
}

type CleanTrackResponse struct {
	Track         TrackMessage `json:"track"`
	OriginalSize  int          `json:"original_size"`
	RemovedPoints int          `json:"removed_points"`
}

type ProcessPairResponse struct {
	Pair   string          `json:"pair"`
	Events []AirborneEvent `json:"events"`
}
