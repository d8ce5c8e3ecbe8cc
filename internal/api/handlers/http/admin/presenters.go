package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"accizard/internal/domain"
	"accizard/internal/filter"
	"accizard/pkg/e"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type pinResponse struct {
	domain.Pin
	TypeLabel string `json:"type_label"`
}

func presentPin(p domain.Pin) pinResponse {
	p.Normalize()
	return pinResponse{Pin: p, TypeLabel: p.Type.Label()}
}

func presentPins(pins []domain.Pin) []pinResponse {
	out := make([]pinResponse, 0, len(pins))
	for _, p := range pins {
		out = append(out, presentPin(p))
	}
	return out
}

func presentHeatmap(points []domain.HeatPoint) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		f := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
		f.Properties["weight"] = p.Weight
		fc.Append(f)
	}
	return fc
}

func parseID(r *http.Request) (uuid.UUID, error) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", idStr, e.ErrInvalidInput)
	}
	return id, nil
}

// parseFilter reads types=a,b, date_from, date_to and q. At most
// filter.MaxActive distinct types are accepted. Dates are RFC 3339
// or YYYY-MM-DD; a bare date_to covers that whole day.
func parseFilter(r *http.Request) (domain.PinFilter, error) {
	q := r.URL.Query()
	f := domain.PinFilter{SearchQuery: strings.TrimSpace(q.Get("q"))}

	if raw := q.Get("types"); raw != "" {
		seen := make(map[domain.PinType]bool)
		for _, s := range strings.Split(raw, ",") {
			t := domain.PinType(strings.TrimSpace(s))
			if !t.Valid() {
				return f, fmt.Errorf("unknown pin type %q: %w", t, e.ErrInvalidInput)
			}
			if seen[t] {
				continue
			}
			seen[t] = true
			f.Types = append(f.Types, t)
		}
		if len(f.Types) > filter.MaxActive {
			return f, fmt.Errorf("%d pin types requested: %w: %w", len(f.Types), e.ErrInvalidInput, e.ErrLimitExceeded)
		}
	}

	var err error
	if f.DateFrom, err = parseDate(q.Get("date_from"), false); err != nil {
		return f, err
	}
	if f.DateTo, err = parseDate(q.Get("date_to"), true); err != nil {
		return f, err
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return f, fmt.Errorf("date_to before date_from: %w", e.ErrInvalidInput)
	}
	return f, nil
}

func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", s, e.ErrInvalidInput)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
