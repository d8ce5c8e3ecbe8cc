package domain

import "github.com/paulmach/orb"

// Route is a driving route between a reference point and a point of interest.
// Geometry is in lng/lat order.
type Route struct {
	Geometry        orb.LineString `json:"geometry"`
	DurationSeconds float64        `json:"duration_seconds"`
	DistanceMeters  float64        `json:"distance_meters"`
	DurationLabel   string         `json:"duration_label"`
	DistanceKm      float64        `json:"distance_km"`
}

func (r *Route) Bound() orb.Bound {
	return r.Geometry.Bound()
}

// Suggestion is one forward-search result.
type Suggestion struct {
	ID        string  `json:"id"`
	Label     string  `json:"label"`
	Address   string  `json:"address,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TravelInfo is the popup's travel-time line.
type TravelInfo struct {
	Available     bool    `json:"available"`
	DurationLabel string  `json:"duration_label,omitempty"`
	DistanceKm    float64 `json:"distance_km,omitempty"`
	DistanceLabel string  `json:"distance_label,omitempty"`
}
