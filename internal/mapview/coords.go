package mapview

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"accizard/internal/domain"
	"accizard/pkg/e"

	"github.com/paulmach/orb"
)

// DefaultReference is the fallback reference point, Manila.
var DefaultReference = orb.Point{120.9842, 14.5995}

// ParseCoordinates reads a "lat,lng" pair and returns it in lng/lat order.
// A pair whose first value cannot be a latitude but whose second can is
// treated as "lng,lat". Anything unparsable or out of range yields
// DefaultReference.
func ParseCoordinates(s string) orb.Point {
	p, err := ParseCoordinatesStrict(s)
	if err != nil {
		return DefaultReference
	}
	return p
}

// ParseCoordinatesStrict is ParseCoordinates without the fallback.
func ParseCoordinatesStrict(s string) (orb.Point, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return orb.Point{}, fmt.Errorf("%w: %q", e.ErrInvalidCoordinates, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: %q", e.ErrInvalidCoordinates, s)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return orb.Point{}, fmt.Errorf("%w: %q", e.ErrInvalidCoordinates, s)
	}

	if math.Abs(lat) > 90 && math.Abs(lng) <= 90 {
		lat, lng = lng, lat
	}
	if math.IsNaN(lat) || math.IsNaN(lng) || math.Abs(lat) > 90 || math.Abs(lng) > 180 {
		return orb.Point{}, fmt.Errorf("%w: %q", e.ErrInvalidCoordinates, s)
	}
	return orb.Point{lng, lat}, nil
}

func toPoint(ll domain.LatLng) orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

func toLatLng(p orb.Point) domain.LatLng {
	return domain.LatLng{Lat: p.Lat(), Lng: p.Lon()}
}
