package geocode

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"accizard/internal/domain"

	"github.com/paulmach/orb"
	"googlemaps.github.io/maps"
)

// proximity bias box half-size in degrees, roughly 50 km
const googleBiasDegrees = 0.5

// GoogleProvider uses the Google Maps Geocoding and Directions APIs.
type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey, baseURL string, timeout time.Duration) (*GoogleProvider, error) {
	opts := []maps.ClientOption{
		maps.WithAPIKey(apiKey),
		maps.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if baseURL != "" {
		opts = append(opts, maps.WithBaseURL(baseURL))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating Google Maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Forward(ctx context.Context, query string, opts SearchOptions) ([]domain.Suggestion, error) {
	req := &maps.GeocodingRequest{
		Address: query,
		Bounds: &maps.LatLngBounds{
			NorthEast: maps.LatLng{Lat: opts.Proximity.Lat + googleBiasDegrees, Lng: opts.Proximity.Lng + googleBiasDegrees},
			SouthWest: maps.LatLng{Lat: opts.Proximity.Lat - googleBiasDegrees, Lng: opts.Proximity.Lng - googleBiasDegrees},
		},
	}
	if opts.Country != "" {
		req.Region = opts.Country
		req.Components = map[maps.Component]string{maps.ComponentCountry: opts.Country}
	}

	results, err := p.client.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("error requesting geocode from google: %w", err)
	}

	out := make([]domain.Suggestion, 0, len(results))
	for _, r := range results {
		label := r.FormattedAddress
		if len(r.AddressComponents) > 0 {
			label = r.AddressComponents[0].LongName
		}
		out = append(out, domain.Suggestion{
			ID:        r.PlaceID,
			Label:     label,
			Address:   r.FormattedAddress,
			Latitude:  r.Geometry.Location.Lat,
			Longitude: r.Geometry.Location.Lng,
		})
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (p *GoogleProvider) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	results, err := p.client.ReverseGeocode(ctx, &maps.GeocodingRequest{
		LatLng: &maps.LatLng{Lat: lat, Lng: lng},
	})
	if err != nil {
		return "", fmt.Errorf("error requesting reverse geocode from google: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}
	return results[0].FormattedAddress, nil
}

func (p *GoogleProvider) Directions(ctx context.Context, origin, dest domain.LatLng) (*domain.Route, error) {
	routes, _, err := p.client.Directions(ctx, &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:        maps.TravelModeDriving,
	})
	if err != nil {
		return nil, fmt.Errorf("error requesting directions from google: %w", err)
	}
	if len(routes) == 0 {
		return nil, nil
	}

	r := routes[0]
	path, err := r.OverviewPolyline.Decode()
	if err != nil {
		return nil, fmt.Errorf("decoding overview polyline: %w", err)
	}

	line := make(orb.LineString, 0, len(path))
	for _, ll := range path {
		line = append(line, orb.Point{ll.Lng, ll.Lat})
	}

	var seconds, meters float64
	for _, leg := range r.Legs {
		seconds += leg.Duration.Seconds()
		meters += float64(leg.Distance.Meters)
	}
	return newRoute(line, seconds, meters), nil
}
