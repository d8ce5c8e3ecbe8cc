package authoring_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"

	"accizard/internal/authoring"
	"accizard/internal/domain"
	"accizard/pkg/e"

	mock_authoring "accizard/internal/authoring/mocks"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func f64ptr(v float64) *float64 { return &v }
func strPtr(s string) *string    { return &s }

func typePtr(t domain.PinType) *domain.PinType { return &t }

var operator = domain.Operator{ID: "op-3", Name: "Dispatcher Three"}

func setup(t *testing.T) (*authoring.Controller, *mock_authoring.MockPinWriter, *mock_authoring.MockGeocoder) {
	t.Helper()

	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	store := mock_authoring.NewMockPinWriter(ctrl)
	geo := mock_authoring.NewMockGeocoder(ctrl)
	return authoring.NewController(store, geo, newTestLogger(), nil), store, geo
}

func TestController_Create_ClickFillSave(t *testing.T) {
	t.Parallel()

	c, store, geo := setup(t)

	if err := c.OpenCreate(); err != nil {
		t.Fatalf("OpenCreate: %v", err)
	}
	if s := c.Snapshot(); s.State != authoring.StateAwaitingMapClick || s.Mode != authoring.ModeCreate {
		t.Fatalf("unexpected snapshot %+v", s)
	}

	geo.EXPECT().ReverseGeocode(gomock.Any(), 14.1122, 121.5569).Return("Lucban, Quezon").Times(1)
	if err := c.HandleMapClick(context.Background(), domain.LatLng{Lat: 14.1122, Lng: 121.5569}); err != nil {
		t.Fatalf("HandleMapClick: %v", err)
	}
	s := c.Snapshot()
	if s.State != authoring.StateEditing || s.Form.LocationName != "Lucban, Quezon" || *s.Form.Latitude != 14.1122 {
		t.Fatalf("unexpected snapshot after click %+v", s)
	}

	if _, err := c.Update(context.Background(), authoring.FormPatch{Type: typePtr(domain.PinLandslide), Title: strPtr(" Slope failure ")}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := uuid.New()
	store.EXPECT().
		Create(gomock.Any(), gomock.Any(), operator).
		DoAndReturn(func(_ context.Context, d domain.CreatePinData, _ domain.Operator) (uuid.UUID, error) {
			if d.Type != domain.PinLandslide || d.Title != "Slope failure" || d.LocationName != "Lucban, Quezon" {
				t.Errorf("unexpected create data %+v", d)
			}
			return want, nil
		}).
		Times(1)

	id, err := c.Save(context.Background(), operator)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id != want {
		t.Fatalf("expected id %s, got %s", want, id)
	}
	if s := c.Snapshot(); s.State != authoring.StateIdle || s.Open() {
		t.Fatalf("expected idle after save, got %+v", s)
	}
}

func TestController_Save_MissingLatitude_NoStoreCall(t *testing.T) {
	t.Parallel()

	c, store, geo := setup(t)
	store.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	geo.EXPECT().ReverseGeocode(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_ = c.OpenCreate()
	_, err := c.Update(context.Background(), authoring.FormPatch{
		Type:      typePtr(domain.PinFire),
		Title:     strPtr("Warehouse fire"),
		Longitude: f64ptr(120.9842),
	})
	var verr *e.ValidationError
	if !errors.As(err, &verr) || verr.Fields["latitude"] == "" {
		t.Fatalf("expected latitude field error on a half position, got %v", err)
	}

	_, _ = c.Update(context.Background(), authoring.FormPatch{
		Type:  typePtr(domain.PinFire),
		Title: strPtr("Warehouse fire"),
	})

	_, err = c.Save(context.Background(), operator)
	if !errors.Is(err, e.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !errors.As(err, &verr) || verr.Fields["latitude"] == "" {
		t.Fatalf("expected latitude field error, got %v", err)
	}
	s := c.Snapshot()
	if s.State != authoring.StateAwaitingMapClick || s.FieldErrors["latitude"] == "" {
		t.Fatalf("expected form kept with field errors, got %+v", s)
	}
}

func TestController_Save_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		patch authoring.FormPatch
		label string
		field string
	}{
		{
			name:  "no type",
			patch: authoring.FormPatch{Title: strPtr("x")},
			label: "Ermita, Manila",
			field: "type",
		},
		{
			name:  "blank title",
			patch: authoring.FormPatch{Type: typePtr(domain.PinFire), Title: strPtr("   ")},
			label: "Ermita, Manila",
			field: "title",
		},
		{
			name:  "blank location",
			patch: authoring.FormPatch{Type: typePtr(domain.PinFire), Title: strPtr("x")},
			label: " ",
			field: "locationname",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, store, geo := setup(t)
			store.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			geo.EXPECT().ReverseGeocode(gomock.Any(), 14.5, 121.0).Return(tc.label).Times(1)

			_ = c.OpenCreate()
			tc.patch.Latitude = f64ptr(14.5)
			tc.patch.Longitude = f64ptr(121)
			if _, err := c.Update(context.Background(), tc.patch); err != nil {
				t.Fatalf("Update: %v", err)
			}

			_, err := c.Save(context.Background(), operator)
			var verr *e.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected %q in %v", tc.field, verr.Fields)
			}
			if s := c.Snapshot(); s.State != authoring.StateEditing {
				t.Fatalf("expected editing, got %s", s.State)
			}
		})
	}
}

func TestController_Update_LocationNameFollowsGeocoding(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		patch authoring.FormPatch
		lat   float64
		lng   float64
		label string
	}{
		{
			name:  "both coordinates",
			patch: authoring.FormPatch{Latitude: f64ptr(10), Longitude: f64ptr(123.9)},
			lat:   10,
			lng:   123.9,
			label: "Cebu City, Cebu",
		},
		{
			name:  "latitude only keeps longitude",
			patch: authoring.FormPatch{Latitude: f64ptr(10)},
			lat:   10,
			lng:   121.02,
			label: "Sibuyan Sea",
		},
		{
			name:  "geocoding unavailable",
			patch: authoring.FormPatch{Latitude: f64ptr(10), Longitude: f64ptr(121)},
			lat:   10,
			lng:   121,
			label: "Unknown Location",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c, store, geo := setup(t)
			pin := domain.Pin{
				ID:           uuid.New(),
				Type:         domain.PinFire,
				Title:        "Warehouse fire",
				Latitude:     14.55,
				Longitude:    121.02,
				LocationName: "Makati",
			}
			_ = c.OpenEdit(pin)

			geo.EXPECT().ReverseGeocode(gomock.Any(), tc.lat, tc.lng).Return(tc.label).Times(1)

			s, err := c.Update(context.Background(), tc.patch)
			if err != nil {
				t.Fatalf("Update: %v", err)
			}
			if s.Form.LocationName != tc.label || *s.Form.Latitude != tc.lat || *s.Form.Longitude != tc.lng {
				t.Fatalf("location must follow the new position, got %+v", s.Form)
			}

			store.EXPECT().
				Update(gomock.Any(), pin.ID, gomock.Any(), operator).
				DoAndReturn(func(_ context.Context, _ uuid.UUID, p domain.UpdatePinData, _ domain.Operator) error {
					if p.LocationName == nil || *p.LocationName != tc.label {
						t.Errorf("stored location %v, want %q", p.LocationName, tc.label)
					}
					if p.Latitude == nil || *p.Latitude != tc.lat {
						t.Errorf("stored latitude %v, want %v", p.Latitude, tc.lat)
					}
					return nil
				}).
				Times(1)
			if _, err := c.Save(context.Background(), operator); err != nil {
				t.Fatalf("Save: %v", err)
			}
		})
	}
}

func TestController_Update_RejectsOutOfRangeCoordinates(t *testing.T) {
	t.Parallel()

	c, _, geo := setup(t)
	geo.EXPECT().ReverseGeocode(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	_ = c.OpenEdit(domain.Pin{ID: uuid.New(), Type: domain.PinFire, Title: "t", Latitude: 1, Longitude: 1, LocationName: "l"})

	_, err := c.Update(context.Background(), authoring.FormPatch{Latitude: f64ptr(91)})
	var verr *e.ValidationError
	if !errors.As(err, &verr) || verr.Fields["latitude"] == "" {
		t.Fatalf("expected latitude field error, got %v", err)
	}
	if s := c.Snapshot(); *s.Form.Latitude != 1 || s.Form.LocationName != "l" {
		t.Fatalf("form must be unchanged, got %+v", s.Form)
	}
}

func TestController_Update_IgnoresTypedLocationName(t *testing.T) {
	t.Parallel()

	c, _, _ := setup(t)
	_ = c.OpenEdit(domain.Pin{ID: uuid.New(), Type: domain.PinFire, Title: "t", Latitude: 1, Longitude: 1, LocationName: "Geocoded"})

	var patch authoring.FormPatch
	if err := json.Unmarshal([]byte(`{"title":"renamed","location_name":"typed by hand"}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s, err := c.Update(context.Background(), patch)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.Form.LocationName != "Geocoded" || s.Form.Title != "renamed" {
		t.Fatalf("location name must not be editable, got %+v", s.Form)
	}
}

func TestController_Save_StoreError_BackToEditing(t *testing.T) {
	t.Parallel()

	c, store, _ := setup(t)

	_ = c.OpenFromReport(domain.ReportPrefill{
		ReportID:     "RPT-0042",
		Type:         domain.PinFlooding,
		Title:        "Flooded road",
		Latitude:     f64ptr(14.5995),
		Longitude:    f64ptr(120.9842),
		LocationName: "Ermita, Manila",
	})

	store.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(uuid.Nil, e.ErrPersistence).
		Times(1)

	_, err := c.Save(context.Background(), operator)
	if !errors.Is(err, e.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	s := c.Snapshot()
	if s.State != authoring.StateEditing || s.Error == "" {
		t.Fatalf("expected editing with error, got %+v", s)
	}
	if s.Form.Title != "Flooded road" || s.Form.ReportID == nil || *s.Form.ReportID != "RPT-0042" {
		t.Fatalf("form must be preserved, got %+v", s.Form)
	}

	store.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any()).Return(uuid.New(), nil).Times(1)
	if _, err := c.Save(context.Background(), operator); err != nil {
		t.Fatalf("retry Save: %v", err)
	}
}

func TestController_OpenFromReport_TypeLocked(t *testing.T) {
	t.Parallel()

	c, store, _ := setup(t)

	if err := c.OpenFromReport(domain.ReportPrefill{
		ReportID:     "RPT-0007",
		Type:         domain.PinFire,
		Title:        "Market fire",
		Latitude:     f64ptr(14.6),
		Longitude:    f64ptr(120.98),
		LocationName: "Divisoria",
	}); err != nil {
		t.Fatalf("OpenFromReport: %v", err)
	}

	s := c.Snapshot()
	if s.State != authoring.StateEditing || !s.TypeLocked {
		t.Fatalf("expected editing with locked type, got %+v", s)
	}

	s, _ = c.Update(context.Background(), authoring.FormPatch{Type: typePtr(domain.PinEarthquake), Title: strPtr("Public market fire")})
	if s.Form.Type != domain.PinFire || s.Form.Title != "Public market fire" {
		t.Fatalf("type must stay locked while other fields change, got %+v", s.Form)
	}

	store.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, d domain.CreatePinData, _ domain.Operator) (uuid.UUID, error) {
			if d.Type != domain.PinFire || d.ReportID == nil || *d.ReportID != "RPT-0007" {
				t.Errorf("report type or link lost: %+v", d)
			}
			return uuid.New(), nil
		}).
		Times(1)
	if _, err := c.Save(context.Background(), operator); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestController_OpenFromReport_WithoutCoordinates(t *testing.T) {
	t.Parallel()

	c, _, geo := setup(t)

	_ = c.OpenFromReport(domain.ReportPrefill{ReportID: "RPT-1", Type: domain.PinRoadCrash, Title: "Collision"})
	if s := c.Snapshot(); s.State != authoring.StateAwaitingMapClick {
		t.Fatalf("expected awaiting click, got %s", s.State)
	}

	geo.EXPECT().ReverseGeocode(gomock.Any(), gomock.Any(), gomock.Any()).Return("Pagbilao, Quezon")
	_ = c.HandleMapClick(context.Background(), domain.LatLng{Lat: 13.97, Lng: 121.69})

	s := c.Snapshot()
	if s.State != authoring.StateEditing || s.Form.Title != "Collision" || s.Form.LocationName != "Pagbilao, Quezon" {
		t.Fatalf("unexpected snapshot %+v", s)
	}
}

func TestController_OpenFromReport_Invalid(t *testing.T) {
	t.Parallel()

	c, _, _ := setup(t)
	err := c.OpenFromReport(domain.ReportPrefill{ReportID: "RPT-1", Type: "meteor"})
	if !errors.Is(err, e.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if s := c.Snapshot(); s.State != authoring.StateIdle {
		t.Fatalf("expected idle, got %s", s.State)
	}
}

func TestController_ClickWhileEditing_UpdatesInPlace(t *testing.T) {
	t.Parallel()

	c, _, geo := setup(t)

	gomock.InOrder(
		geo.EXPECT().ReverseGeocode(gomock.Any(), 14.1, 121.5).Return("First"),
		geo.EXPECT().ReverseGeocode(gomock.Any(), 14.2, 121.6).Return("Second"),
	)

	_ = c.OpenCreate()
	_ = c.HandleMapClick(context.Background(), domain.LatLng{Lat: 14.1, Lng: 121.5})
	_, _ = c.Update(context.Background(), authoring.FormPatch{Title: strPtr("Keep me")})
	_ = c.HandleMapClick(context.Background(), domain.LatLng{Lat: 14.2, Lng: 121.6})

	s := c.Snapshot()
	if s.State != authoring.StateEditing || s.Form.LocationName != "Second" || *s.Form.Latitude != 14.2 {
		t.Fatalf("expected coordinates replaced in place, got %+v", s)
	}
	if s.Form.Title != "Keep me" {
		t.Fatalf("other fields must be kept, got %q", s.Form.Title)
	}
}

func TestController_ClickWhenIdle_Refused(t *testing.T) {
	t.Parallel()

	c, _, geo := setup(t)
	geo.EXPECT().ReverseGeocode(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	err := c.HandleMapClick(context.Background(), domain.LatLng{Lat: 1, Lng: 1})
	if !errors.Is(err, e.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestController_Edit_SkipsClickAndUpdates(t *testing.T) {
	t.Parallel()

	c, store, _ := setup(t)
	report := "RPT-9"
	pin := domain.Pin{
		ID:           uuid.New(),
		Type:         domain.PinMedicalEmergency,
		Title:        "Collapsed jogger",
		Latitude:     14.55,
		Longitude:    121.02,
		LocationName: "Makati",
		ReportID:     &report,
	}

	if err := c.OpenEdit(pin); err != nil {
		t.Fatalf("OpenEdit: %v", err)
	}
	s := c.Snapshot()
	if s.State != authoring.StateEditing || s.Mode != authoring.ModeEdit || !s.TypeLocked || *s.PinID != pin.ID {
		t.Fatalf("unexpected snapshot %+v", s)
	}

	_, _ = c.Update(context.Background(), authoring.FormPatch{Title: strPtr("Collapsed runner")})

	store.EXPECT().
		Update(gomock.Any(), pin.ID, gomock.Any(), operator).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, p domain.UpdatePinData, _ domain.Operator) error {
			if p.Type != nil {
				t.Errorf("locked type must not be sent, got %s", *p.Type)
			}
			if p.Title == nil || *p.Title != "Collapsed runner" {
				t.Errorf("unexpected title %v", p.Title)
			}
			return nil
		}).
		Times(1)

	id, err := c.Save(context.Background(), operator)
	if err != nil || id != pin.ID {
		t.Fatalf("Save: %v %s", err, id)
	}
}

func TestController_Edit_NotFound(t *testing.T) {
	t.Parallel()

	c, store, _ := setup(t)
	pin := domain.Pin{ID: uuid.New(), Type: domain.PinFire, Title: "t", Latitude: 1, Longitude: 1, LocationName: "l"}
	_ = c.OpenEdit(pin)

	store.EXPECT().Update(gomock.Any(), pin.ID, gomock.Any(), gomock.Any()).Return(e.ErrNotFound)

	if _, err := c.Save(context.Background(), operator); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s := c.Snapshot(); s.State != authoring.StateEditing {
		t.Fatalf("expected editing, got %s", s.State)
	}
}

func TestController_Reset(t *testing.T) {
	t.Parallel()

	c, _, geo := setup(t)
	geo.EXPECT().ReverseGeocode(gomock.Any(), gomock.Any(), gomock.Any()).Return("Somewhere")

	_ = c.OpenCreate()
	_ = c.HandleMapClick(context.Background(), domain.LatLng{Lat: 10, Lng: 120})
	_, _ = c.Update(context.Background(), authoring.FormPatch{Title: strPtr("x")})

	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	s := c.Snapshot()
	if s.State != authoring.StateAwaitingMapClick || s.Form.Title != "" || s.Form.Latitude != nil || s.Form.LocationName != "" {
		t.Fatalf("expected cleared form awaiting click, got %+v", s)
	}

	_ = c.OpenEdit(domain.Pin{ID: uuid.New(), Type: domain.PinFire, Title: "t", LocationName: "l"})
	if err := c.Reset(); !errors.Is(err, e.ErrInvalidState) {
		t.Fatalf("reset in edit mode must be refused, got %v", err)
	}
}

func TestController_CloseDuringSave(t *testing.T) {
	t.Parallel()

	c, store, _ := setup(t)
	_ = c.OpenFromReport(domain.ReportPrefill{
		ReportID: "RPT-2", Type: domain.PinFire, Title: "t",
		Latitude: f64ptr(1), Longitude: f64ptr(1), LocationName: "l",
	})

	started := make(chan struct{})
	release := make(chan struct{})
	store.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, domain.CreatePinData, domain.Operator) (uuid.UUID, error) {
			close(started)
			<-release
			return uuid.Nil, e.ErrPersistence
		})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = c.Save(context.Background(), operator)
	}()

	<-started
	if s := c.Snapshot(); s.State != authoring.StateSaving {
		t.Errorf("expected saving, got %s", s.State)
	}
	if err := c.OpenCreate(); !errors.Is(err, e.ErrInvalidState) {
		t.Errorf("open during save must be refused, got %v", err)
	}
	c.Close()
	close(release)
	wg.Wait()

	if s := c.Snapshot(); s.State != authoring.StateIdle || s.Error != "" {
		t.Fatalf("late save result must not reopen the flow, got %+v", s)
	}
}

func TestController_OnChange(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var states []authoring.State
	c := authoring.NewController(mock_authoring.NewMockPinWriter(ctrl), mock_authoring.NewMockGeocoder(ctrl), newTestLogger(),
		func(s authoring.Snapshot) { states = append(states, s.State) })

	_ = c.OpenCreate()
	c.Close()

	if len(states) != 2 || states[0] != authoring.StateAwaitingMapClick || states[1] != authoring.StateIdle {
		t.Fatalf("unexpected transitions %v", states)
	}
}
