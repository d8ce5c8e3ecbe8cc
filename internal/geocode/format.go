package geocode

import (
	"fmt"
	"math"

	"accizard/internal/domain"

	"github.com/paulmach/orb"
)

// FormatDuration renders a travel time as "H h M m" or "M m".
func FormatDuration(seconds float64) string {
	total := int(math.Round(seconds / 60))
	if total < 0 {
		total = 0
	}
	h, m := total/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d h %d m", h, m)
	}
	return fmt.Sprintf("%d m", m)
}

// FormatDistanceKm converts metres to kilometres rounded to one decimal.
func FormatDistanceKm(meters float64) float64 {
	return math.Round(meters/100) / 10
}

func FormatDistanceLabel(km float64) string {
	return fmt.Sprintf("%.1f km", km)
}

func newRoute(line orb.LineString, seconds, meters float64) *domain.Route {
	return &domain.Route{
		Geometry:        line,
		DurationSeconds: seconds,
		DistanceMeters:  meters,
		DurationLabel:   FormatDuration(seconds),
		DistanceKm:      FormatDistanceKm(meters),
	}
}
