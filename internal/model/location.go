package model

import "time"

// Location is a geographic point.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LocationSample is one accepted location update. It is consumed by the
// evaluator and broadcast, and recorded to history on a best-effort basis.
type LocationSample struct {
	ActorID   string    `json:"actorId"`
	SessionID string    `json:"sessionId"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// Location returns the sample's point.
func (s LocationSample) Location() Location {
	return Location{Lat: s.Lat, Lng: s.Lng}
}
