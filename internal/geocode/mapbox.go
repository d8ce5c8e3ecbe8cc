package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"accizard/internal/domain"

	"github.com/paulmach/orb"
)

const mapboxURL = "https://api.mapbox.com"

// MapboxProvider talks to the Mapbox geocoding v5 and directions v5 APIs.
type MapboxProvider struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewMapboxProvider(baseURL, token string, timeout time.Duration) *MapboxProvider {
	if baseURL == "" {
		baseURL = mapboxURL
	}
	return &MapboxProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *MapboxProvider) Name() string { return "mapbox" }

type mapboxFeature struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"`
}

type mapboxGeocodeResponse struct {
	Features []mapboxFeature `json:"features"`
}

type mapboxRoute struct {
	Duration float64 `json:"duration"`
	Distance float64 `json:"distance"`
	Geometry struct {
		Coordinates [][]float64 `json:"coordinates"`
	} `json:"geometry"`
}

type mapboxDirectionsResponse struct {
	Code   string        `json:"code"`
	Routes []mapboxRoute `json:"routes"`
}

func (p *MapboxProvider) Forward(ctx context.Context, query string, opts SearchOptions) ([]domain.Suggestion, error) {
	params := url.Values{}
	params.Set("access_token", p.token)
	params.Set("autocomplete", "true")
	params.Set("proximity", fmt.Sprintf("%f,%f", opts.Proximity.Lng, opts.Proximity.Lat))
	if opts.Country != "" {
		params.Set("country", opts.Country)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprint(opts.Limit))
	}

	reqURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", p.baseURL, url.PathEscape(query), params.Encode())

	var resp mapboxGeocodeResponse
	if err := p.get(ctx, reqURL, &resp); err != nil {
		return nil, err
	}

	out := make([]domain.Suggestion, 0, len(resp.Features))
	for _, f := range resp.Features {
		if len(f.Center) < 2 {
			continue
		}
		out = append(out, domain.Suggestion{
			ID:        f.ID,
			Label:     f.Text,
			Address:   f.PlaceName,
			Latitude:  f.Center[1],
			Longitude: f.Center[0],
		})
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Reverse returns the place name of the first feature, which Mapbox orders
// from most to least specific.
func (p *MapboxProvider) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{}
	params.Set("access_token", p.token)
	params.Set("limit", "1")

	reqURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%f,%f.json?%s", p.baseURL, lng, lat, params.Encode())

	var resp mapboxGeocodeResponse
	if err := p.get(ctx, reqURL, &resp); err != nil {
		return "", err
	}
	if len(resp.Features) == 0 {
		return "", nil
	}
	return resp.Features[0].PlaceName, nil
}

func (p *MapboxProvider) Directions(ctx context.Context, origin, dest domain.LatLng) (*domain.Route, error) {
	params := url.Values{}
	params.Set("access_token", p.token)
	params.Set("geometries", "geojson")
	params.Set("overview", "full")

	reqURL := fmt.Sprintf("%s/directions/v5/mapbox/driving/%f,%f;%f,%f?%s",
		p.baseURL, origin.Lng, origin.Lat, dest.Lng, dest.Lat, params.Encode())

	var resp mapboxDirectionsResponse
	if err := p.get(ctx, reqURL, &resp); err != nil {
		return nil, err
	}
	if resp.Code != "" && resp.Code != "Ok" {
		return nil, nil
	}
	if len(resp.Routes) == 0 {
		return nil, nil
	}

	r := resp.Routes[0]
	line := make(orb.LineString, 0, len(r.Geometry.Coordinates))
	for _, c := range r.Geometry.Coordinates {
		if len(c) >= 2 {
			line = append(line, orb.Point{c[0], c[1]})
		}
	}
	return newRoute(line, r.Duration, r.Distance), nil
}

func (p *MapboxProvider) get(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	// directions answers 200 with code NoRoute, but also 422 for unroutable points
	if resp.StatusCode == http.StatusUnprocessableEntity {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mapbox API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
