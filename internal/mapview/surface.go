// Package mapview reconciles pins, previews, locations, routes and the
// heatmap into map primitives and owns the map lifecycle.
package mapview

import (
	"context"

	"accizard/internal/domain"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type ControlKind string

const (
	ControlGeolocate ControlKind = "geolocate"
	ControlZoom      ControlKind = "zoom"
	ControlSearch    ControlKind = "search"
)

type MarkerKind string

const (
	MarkerPin     MarkerKind = "pin"
	MarkerPreview MarkerKind = "preview"
	MarkerUser    MarkerKind = "user_location"
	MarkerClicked MarkerKind = "clicked_location"
)

type Marker struct {
	ID           string          `json:"id"`
	Kind         MarkerKind      `json:"kind"`
	Position     orb.Point       `json:"position"`
	Title        string          `json:"title,omitempty"`
	LocationName string          `json:"location_name,omitempty"`
	PinID        *uuid.UUID      `json:"pin_id,omitempty"`
	Type         domain.PinType  `json:"type,omitempty"`
	Category     domain.Category `json:"category,omitempty"`
}

// DisplayName is the title, falling back to the location name.
func (m Marker) DisplayName() string {
	if m.Title != "" {
		return m.Title
	}
	return m.LocationName
}

type Popup struct {
	MarkerID string             `json:"marker_id"`
	Title    string             `json:"title"`
	Label    string             `json:"label,omitempty"`
	Travel   *domain.TravelInfo `json:"travel,omitempty"`
	Actions  []string           `json:"actions,omitempty"`
}

type LayerKind string

const (
	LayerLine    LayerKind = "line"
	LayerHeatmap LayerKind = "heatmap"
)

type Layer struct {
	ID     string    `json:"id"`
	Kind   LayerKind `json:"kind"`
	Source string    `json:"source"`
	Hidden bool      `json:"hidden,omitempty"`
}

type View struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Style  string    `json:"style"`
}

// Surface is the drawing target: an interactive map reached through the
// host page, or the in-memory Scene.
type Surface interface {
	Create(ctx context.Context, view View) error
	Remove()
	AddControl(kind ControlKind) error
	RemoveControl(kind ControlKind)
	AddMarker(m Marker)
	RemoveMarker(id string)
	ShowPopup(p Popup)
	ClosePopup(markerID string)
	AddSource(id string, fc *geojson.FeatureCollection)
	RemoveSource(id string)
	AddLayer(l Layer)
	RemoveLayer(id string)
	SetLayerVisible(id string, visible bool)
	FitBounds(b orb.Bound, paddingPx int)
	SetView(center orb.Point, zoom float64)
	SetStyle(style string)
}
