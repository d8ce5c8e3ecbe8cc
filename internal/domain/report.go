package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReportPrefill carries what a linked incident report knows about a pin.
type ReportPrefill struct {
	ReportID     string   `json:"report_id" validate:"required"`
	Type         PinType  `json:"type" validate:"required,pin_type"`
	Title        string   `json:"title" validate:"max=60"`
	Latitude     *float64 `json:"latitude,omitempty" validate:"omitempty,lat"`
	Longitude    *float64 `json:"longitude,omitempty" validate:"omitempty,lng"`
	LocationName string   `json:"location_name,omitempty"`
}

func (r ReportPrefill) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// ComputeResponseTime returns the time between dispatch and arrival given as
// "HH:MM" clock times. An arrival earlier than dispatch crossed midnight.
func ComputeResponseTime(dispatch, arrival string) (time.Duration, error) {
	d, err := parseClock(dispatch)
	if err != nil {
		return 0, fmt.Errorf("dispatch: %w", err)
	}
	a, err := parseClock(arrival)
	if err != nil {
		return 0, fmt.Errorf("arrival: %w", err)
	}
	if a < d {
		return (24*time.Hour - d) + a, nil
	}
	return a - d, nil
}

// FormatResponseTime renders "20 min" or "1 hr 5 min".
func FormatResponseTime(d time.Duration) string {
	total := int(d.Minutes())
	h, m := total/60, total%60
	if h == 0 {
		return fmt.Sprintf("%d min", m)
	}
	if m == 0 {
		return fmt.Sprintf("%d hr", h)
	}
	return fmt.Sprintf("%d hr %d min", h, m)
}

func parseClock(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}
