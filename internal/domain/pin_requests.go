package domain

import (
	"slices"
	"strings"
	"time"
)

type CreatePinData struct {
	Type         PinType  `json:"type" validate:"required,pin_type"`
	Title        string   `json:"title" validate:"required,max=60"`
	Latitude     *float64 `json:"latitude" validate:"required,lat"`
	Longitude    *float64 `json:"longitude" validate:"required,lng"`
	LocationName string   `json:"location_name" validate:"required"`
	ReportID     *string  `json:"report_id,omitempty"`
}

type UpdatePinData struct {
	Type         *PinType `json:"type,omitempty" validate:"omitempty,pin_type"`
	Title        *string  `json:"title,omitempty" validate:"omitempty,min=1,max=60"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,lat"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,lng"`
	LocationName *string  `json:"location_name,omitempty" validate:"omitempty,min=1"`
}

func (u UpdatePinData) Empty() bool {
	return u.Type == nil && u.Title == nil && u.Latitude == nil && u.Longitude == nil && u.LocationName == nil
}

// PinFilter is the composable predicate for pin queries and subscriptions.
type PinFilter struct {
	Types       []PinType  `json:"types,omitempty"`
	DateFrom    *time.Time `json:"date_from,omitempty"`
	DateTo      *time.Time `json:"date_to,omitempty"`
	SearchQuery string     `json:"search_query,omitempty"`
}

// Equal reports whether two filters select the same pins.
func (f PinFilter) Equal(o PinFilter) bool {
	if !timeEq(f.DateFrom, o.DateFrom) || !timeEq(f.DateTo, o.DateTo) {
		return false
	}
	if strings.TrimSpace(f.SearchQuery) != strings.TrimSpace(o.SearchQuery) {
		return false
	}
	a := slices.Clone(f.Types)
	b := slices.Clone(o.Types)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Query is the part of the filter the backing store evaluates.
func (f PinFilter) Query() PinQuery {
	return PinQuery{Types: f.Types, CreatedFrom: f.DateFrom, CreatedTo: f.DateTo}
}

// MatchesSearch applies the client-side token match over title and location name:
// every query token must prefix a token of either field.
func (f PinFilter) MatchesSearch(p Pin) bool {
	q := tokenize(f.SearchQuery)
	if len(q) == 0 {
		return true
	}
	fields := append(tokenize(p.Title), tokenize(p.LocationName)...)
	for _, want := range q {
		found := false
		for _, have := range fields {
			if strings.HasPrefix(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PinQuery is the store-side predicate: "in" on type, range on created_at.
type PinQuery struct {
	Types       []PinType
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

func (q PinQuery) Matches(p Pin) bool {
	if len(q.Types) > 0 && !slices.Contains(q.Types, p.Type) {
		return false
	}
	if q.CreatedFrom != nil && p.CreatedAt.Before(*q.CreatedFrom) {
		return false
	}
	if q.CreatedTo != nil && p.CreatedAt.After(*q.CreatedTo) {
		return false
	}
	return true
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

func timeEq(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
