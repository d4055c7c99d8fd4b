package models

// RadarHit is the per-point payload carried by surveillance tracks.
type RadarHit struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Callsign  string  `json:"callsign,omitempty"`
	Beacon    string  `json:"beacon,omitempty"`
	Facility  string  `json:"facility,omitempty"`
}

// RadarTrack and RadarPair are the instantiations the service runs on.
type (
	RadarTrack = Track[RadarHit]
	RadarPair  = TrackPair[RadarHit]
)
