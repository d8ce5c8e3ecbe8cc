package geocode

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"accizard/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

var testOpts = Options{
	Search: SearchOptions{
		Proximity: domain.LatLng{Lat: 14.1122, Lng: 121.5569},
		Country:   "ph",
		Limit:     5,
	},
	Timeout: 2 * time.Second,
}

func newMapboxServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/geocoding/v5/mapbox.places/120.984200,14.599500"):
			fmt.Fprint(w, `{"features":[{"id":"poi.1","text":"Rizal Park","place_name":"Rizal Park, Ermita, Manila","center":[120.9842,14.5995]},{"id":"place.2","text":"Manila","place_name":"Manila, Philippines","center":[120.98,14.6]}]}`)
		case strings.HasPrefix(r.URL.Path, "/geocoding/v5/mapbox.places/0.000000,0.000000"):
			fmt.Fprint(w, `{"features":[]}`)
		case strings.HasPrefix(r.URL.Path, "/geocoding/v5/mapbox.places/"):
			q := r.URL.Query()
			if q.Get("country") != "ph" || q.Get("limit") != "5" || !strings.HasPrefix(q.Get("proximity"), "121.5569") {
				t.Errorf("unexpected forward params: %v", q)
			}
			fmt.Fprint(w, `{"features":[{"id":"a","text":"Lucban","place_name":"Lucban, Quezon","center":[121.5569,14.1122]}]}`)
		case strings.HasPrefix(r.URL.Path, "/directions/v5/mapbox/driving/"):
			if r.URL.Query().Get("geometries") != "geojson" {
				t.Errorf("expected geojson geometries")
			}
			if strings.Contains(r.URL.Path, "0.000000,0.000000") {
				fmt.Fprint(w, `{"code":"NoRoute","routes":[]}`)
				return
			}
			fmt.Fprint(w, `{"code":"Ok","routes":[{"duration":3930,"distance":12345,"geometry":{"coordinates":[[121.5569,14.1122],[121.56,14.12],[121.57,14.13]]}}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestClient_Search_ShortQueryNoRequest(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("provider must not be called for short queries")
	}))
	defer srv.Close()

	c := NewClient(NewMapboxProvider(srv.URL, "tok", time.Second), nil, testOpts, newTestLogger())

	for _, q := range []string{"", "a", " lu "} {
		if got := c.Search(context.Background(), q); got == nil || len(got) != 0 {
			t.Fatalf("query %q: expected empty non-nil result, got %v", q, got)
		}
	}
}

func TestClient_Search_OK(t *testing.T) {
	t.Parallel()

	srv := newMapboxServer(t)
	defer srv.Close()

	c := NewClient(NewMapboxProvider(srv.URL, "tok", time.Second), nil, testOpts, newTestLogger())

	got := c.Search(context.Background(), "lucban")
	if len(got) != 1 || got[0].Latitude != 14.1122 || got[0].Longitude != 121.5569 || got[0].Address != "Lucban, Quezon" {
		t.Fatalf("unexpected suggestions: %+v", got)
	}
}

func TestClient_ReverseGeocode_MostSpecificAndCached(t *testing.T) {
	t.Parallel()

	srv := newMapboxServer(t)
	defer srv.Close()

	cache := NewMemoryLabelCache(time.Minute)
	defer cache.Close()

	c := NewClient(NewMapboxProvider(srv.URL, "tok", time.Second), cache, testOpts, newTestLogger())

	if got := c.ReverseGeocode(context.Background(), 14.5995, 120.9842); got != "Rizal Park, Ermita, Manila" {
		t.Fatalf("unexpected label %q", got)
	}
	srv.Close()
	if got := c.ReverseGeocode(context.Background(), 14.5995, 120.9842); got != "Rizal Park, Ermita, Manila" {
		t.Fatalf("expected cached label, got %q", got)
	}
}

func TestClient_ReverseGeocode_EmptyResult(t *testing.T) {
	t.Parallel()

	srv := newMapboxServer(t)
	defer srv.Close()

	c := NewClient(NewMapboxProvider(srv.URL, "tok", time.Second), nil, testOpts, newTestLogger())
	if got := c.ReverseGeocode(context.Background(), 0, 0); got != UnknownLocation {
		t.Fatalf("expected %q, got %q", UnknownLocation, got)
	}
}

func TestClient_ReverseGeocode_UnreachableProvider(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()

	c := NewClient(NewMapboxProvider("http://"+addr, "tok", time.Second), nil, testOpts, newTestLogger())

	if got := c.ReverseGeocode(context.Background(), 14.5995, 120.9842); got != UnknownLocation {
		t.Fatalf("expected %q, got %q", UnknownLocation, got)
	}
	if c.Online() {
		t.Fatalf("expected client to report offline")
	}
	if got := c.ComputeRoute(context.Background(), domain.LatLng{Lat: 1, Lng: 1}, domain.LatLng{Lat: 2, Lng: 2}); got != nil {
		t.Fatalf("expected nil route, got %+v", got)
	}
}

func TestClient_ReverseGeocode_ServerErrorStaysOnline(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(NewMapboxProvider(srv.URL, "tok", time.Second), nil, testOpts, newTestLogger())
	if got := c.ReverseGeocode(context.Background(), 14.5, 121); got != UnknownLocation {
		t.Fatalf("expected fallback label, got %q", got)
	}
	if !c.Online() {
		t.Fatalf("a 500 is not a connectivity loss")
	}
}

func TestClient_ComputeRoute(t *testing.T) {
	t.Parallel()

	srv := newMapboxServer(t)
	defer srv.Close()

	c := NewClient(NewMapboxProvider(srv.URL, "tok", time.Second), nil, testOpts, newTestLogger())

	route := c.ComputeRoute(context.Background(), domain.LatLng{Lat: 14.1122, Lng: 121.5569}, domain.LatLng{Lat: 14.13, Lng: 121.57})
	if route == nil {
		t.Fatalf("expected route")
	}
	if route.DurationLabel != "1 h 6 m" || route.DistanceKm != 12.3 || len(route.Geometry) != 3 {
		t.Fatalf("unexpected route: %+v", route)
	}

	if got := c.ComputeRoute(context.Background(), domain.LatLng{Lat: 14, Lng: 121}, domain.LatLng{}); got != nil {
		t.Fatalf("expected nil for NoRoute, got %+v", got)
	}
}

func TestClient_TravelInfo(t *testing.T) {
	t.Parallel()

	srv := newMapboxServer(t)
	defer srv.Close()

	c := NewClient(NewMapboxProvider(srv.URL, "tok", time.Second), nil, testOpts, newTestLogger())
	dest := domain.LatLng{Lat: 14.13, Lng: 121.57}

	if info := c.TravelInfo(context.Background(), nil, dest); info.Available {
		t.Fatalf("expected unavailable without an origin")
	}
	info := c.TravelInfo(context.Background(), &domain.LatLng{Lat: 14.1122, Lng: 121.5569}, dest)
	if !info.Available || info.DistanceLabel != "12.3 km" {
		t.Fatalf("unexpected travel info: %+v", info)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "0 m"},
		{29, "0 m"},
		{300, "5 m"},
		{3540, "59 m"},
		{3600, "1 h 0 m"},
		{3930, "1 h 6 m"},
		{7325, "2 h 2 m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestFormatDistanceKm(t *testing.T) {
	tests := []struct {
		meters float64
		want   float64
	}{
		{0, 0},
		{949, 0.9},
		{1000, 1},
		{12345, 12.3},
		{12351, 12.4},
	}
	for _, tt := range tests {
		if got := FormatDistanceKm(tt.meters); got != tt.want {
			t.Errorf("FormatDistanceKm(%v) = %v, want %v", tt.meters, got, tt.want)
		}
	}
}
