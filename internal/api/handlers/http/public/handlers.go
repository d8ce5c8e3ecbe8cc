package public

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"accizard/internal/api/handlers/http/respond"
	"accizard/internal/domain"
	"accizard/internal/mapview"
	"accizard/pkg/e"
)

// Lookup is the geocoding surface. Failures are absorbed by the
// implementation: empty suggestions, the unknown label or a nil route.
//
//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Lookup interface {
	Search(ctx context.Context, query string) []domain.Suggestion
	ReverseGeocode(ctx context.Context, lat, lng float64) string
	ComputeRoute(ctx context.Context, origin, dest domain.LatLng) *domain.Route
	TravelInfo(ctx context.Context, origin *domain.LatLng, dest domain.LatLng) domain.TravelInfo
	Online() bool
}

type Handler struct {
	logger *slog.Logger
	Lookup Lookup
}

func NewHandler(logger *slog.Logger, lookup Lookup) *Handler {
	return &Handler{
		logger: logger,
		Lookup: lookup,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	return respond.Logger(h.logger, r)
}

func (h *Handler) GeocodeSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	h.log(r).Debug("GeocodeSearch", slog.String("q", q), slog.String("remote", r.RemoteAddr))

	suggestions := h.Lookup.Search(r.Context(), q)
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"query":       q,
		"suggestions": suggestions,
		"online":      h.Lookup.Online(),
	})
}

func (h *Handler) GeocodeReverse(w http.ResponseWriter, r *http.Request) {
	h.log(r).Debug("GeocodeReverse", slog.String("query", r.URL.Query().Encode()))

	pos, err := parseLatLng(r.URL.Query().Get("lat"), r.URL.Query().Get("lng"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"latitude":      pos.Lat,
		"longitude":     pos.Lng,
		"location_name": h.Lookup.ReverseGeocode(r.Context(), pos.Lat, pos.Lng),
		"online":        h.Lookup.Online(),
	})
}

// GeocodeRoute returns the driving route between from and to ("lat,lng").
// An unavailable route is a 200 with "available": false.
func (h *Handler) GeocodeRoute(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	from, err := parsePair(r.URL.Query().Get("from"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	to, err := parsePair(r.URL.Query().Get("to"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	route := h.Lookup.ComputeRoute(r.Context(), from, to)
	if route == nil {
		l.Info("route unavailable", slog.Any("from", from), slog.Any("to", to))
		respond.JSON(w, h.logger, http.StatusOK, map[string]any{"available": false})
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"available": true,
		"route":     route,
	})
}

// GeocodeTravel is the popup travel line; from is optional.
func (h *Handler) GeocodeTravel(w http.ResponseWriter, r *http.Request) {
	to, err := parsePair(r.URL.Query().Get("to"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	var from *domain.LatLng
	if s := r.URL.Query().Get("from"); s != "" {
		p, err := parsePair(s)
		if err != nil {
			respond.Error(w, r, h.logger, err)
			return
		}
		from = &p
	}

	respond.JSON(w, h.logger, http.StatusOK, h.Lookup.TravelInfo(r.Context(), from, to))
}

func parsePair(s string) (domain.LatLng, error) {
	p, err := mapview.ParseCoordinatesStrict(s)
	if err != nil {
		return domain.LatLng{}, err
	}
	return domain.LatLng{Lat: p.Lat(), Lng: p.Lon()}, nil
}

func parseLatLng(latStr, lngStr string) (domain.LatLng, error) {
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return domain.LatLng{}, fmt.Errorf("%w: lat %q", e.ErrInvalidCoordinates, latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return domain.LatLng{}, fmt.Errorf("%w: lng %q", e.ErrInvalidCoordinates, lngStr)
	}
	return domain.LatLng{Lat: lat, Lng: lng}, nil
}
