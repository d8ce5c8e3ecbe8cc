package mapview

import (
	"errors"
	"testing"

	"accizard/pkg/e"

	"github.com/paulmach/orb"
)

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		in   string
		want orb.Point
	}{
		{"14.5995,120.9842", orb.Point{120.9842, 14.5995}},
		{"120.9842,14.5995", orb.Point{120.9842, 14.5995}},
		{" 14.1122 , 121.5569 ", orb.Point{121.5569, 14.1122}},
		{"-33.8688,151.2093", orb.Point{151.2093, -33.8688}},
		{"10,20", orb.Point{20, 10}},
		{"", DefaultReference},
		{"14.5995", DefaultReference},
		{"abc,def", DefaultReference},
		{"95,200", DefaultReference},
		{"14.5,190", DefaultReference},
		{"NaN,1", DefaultReference},
	}
	for _, tt := range tests {
		if got := ParseCoordinates(tt.in); got != tt.want {
			t.Errorf("ParseCoordinates(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCoordinates_SwapIsIdempotent(t *testing.T) {
	a := ParseCoordinates("120.9842,14.5995")
	b := ParseCoordinates("14.5995,120.9842")
	if a != b {
		t.Fatalf("expected equal points, got %v and %v", a, b)
	}
}

func TestParseCoordinatesStrict_Error(t *testing.T) {
	if _, err := ParseCoordinatesStrict("north,south"); !errors.Is(err, e.ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}
