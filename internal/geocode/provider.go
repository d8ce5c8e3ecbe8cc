// Package geocode wraps the mapping provider's forward search, reverse
// geocoding and driving directions. Provider failures never reach callers:
// they are converted to empty suggestions, "Unknown Location" and nil routes.
package geocode

import (
	"context"

	"accizard/internal/domain"
)

// Provider is one mapping backend. Reverse returns "" when nothing matched and
// Directions returns nil when no route exists.
type Provider interface {
	Name() string
	Forward(ctx context.Context, query string, opts SearchOptions) ([]domain.Suggestion, error)
	Reverse(ctx context.Context, lat, lng float64) (string, error)
	Directions(ctx context.Context, origin, dest domain.LatLng) (*domain.Route, error)
}

type SearchOptions struct {
	Proximity domain.LatLng
	Country   string
	Limit     int
}
