package console

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"accizard/internal/authoring"
	"accizard/internal/domain"
	"accizard/internal/filter"
	"accizard/internal/mapview"
	"accizard/internal/service"
	"accizard/internal/storage/memory"
	"accizard/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func f64ptr(v float64) *float64 { return &v }
func strPtr(s string) *string    { return &s }

var operator = domain.Operator{ID: "op-1", Name: "Dispatcher One"}

type fakeGeocoder struct {
	mu      sync.Mutex
	noRoute bool
}

func (f *fakeGeocoder) Search(_ context.Context, q string) []domain.Suggestion {
	return []domain.Suggestion{{ID: "1", Label: q}}
}

func (f *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) string {
	return "Lucban, Quezon"
}

func (f *fakeGeocoder) TravelInfo(_ context.Context, origin *domain.LatLng, _ domain.LatLng) domain.TravelInfo {
	return domain.TravelInfo{Available: origin != nil}
}

func (f *fakeGeocoder) ComputeRoute(_ context.Context, origin, dest domain.LatLng) *domain.Route {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noRoute {
		return nil
	}
	return &domain.Route{
		Geometry:       orb.LineString{{origin.Lng, origin.Lat}, {dest.Lng, dest.Lat}},
		DurationLabel:  "12 m",
		DistanceKm:     4.2,
		DistanceMeters: 4200,
	}
}

func (f *fakeGeocoder) Online() bool { return true }

type fixture struct {
	feed  *memory.Feed
	store *service.PinStore
	geo   *fakeGeocoder
}

func newFixture() *fixture {
	feed := memory.NewFeed()
	return &fixture{
		feed:  feed,
		store: service.NewPinStore(memory.NewPinStore(), feed, newTestLogger()),
		geo:   &fakeGeocoder{},
	}
}

func (fx *fixture) seed(t *testing.T, typ domain.PinType, title string) uuid.UUID {
	t.Helper()

	id, err := fx.store.Create(context.Background(), domain.CreatePinData{
		Type:         typ,
		Title:        title,
		Latitude:     f64ptr(14.1),
		Longitude:    f64ptr(121.5),
		LocationName: "Lucban, Quezon",
	}, operator)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return id
}

func (fx *fixture) session(t *testing.T) *Session {
	t.Helper()

	s := NewSession(context.Background(), fx.store, fx.geo, Options{
		Map:      mapview.Config{Center: mapview.DefaultReference, Zoom: 12, InitTimeout: time.Minute},
		Debounce: 10 * time.Millisecond,
	}, newTestLogger())
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func loaded(t *testing.T, s *Session) {
	t.Helper()
	if err := s.HandleMapEvent(MapEvent{Kind: MapEventLoaded}); err != nil {
		t.Fatalf("loaded: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func markerKinds(s *Session) map[string]int {
	out := map[string]int{}
	for _, f := range s.Scene().State().Markers.Features {
		out[f.Properties["kind"].(string)]++
	}
	return out
}

func TestSession_Filters_SingleSubscriptionAndCeiling(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.seed(t, domain.PinFire, "Warehouse fire")
	fx.seed(t, domain.PinFlooding, "Flooded road")

	s := fx.session(t)
	eventually(t, "initial pins", func() bool { return len(s.Pins()) == 2 })

	if _, err := s.Toggle(filter.GroupHazard, domain.PinFire); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	eventually(t, "filtered pins", func() bool {
		pins := s.Pins()
		return len(pins) == 1 && pins[0].Type == domain.PinFire
	})
	if n := fx.store.LiveSubscriptions(); n != 1 {
		t.Fatalf("expected one live subscription, got %d", n)
	}
	if n := fx.feed.Subscribers(); n != 1 {
		t.Fatalf("expected one feed subscriber, got %d", n)
	}

	snap, err := s.SelectAll(filter.GroupHazard, true)
	if !errors.Is(err, e.ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if snap.Active != 1 {
		t.Fatalf("selection must be unchanged, got %d active", snap.Active)
	}

	added := 0
	for _, k := range domain.HazardTypes {
		if k == domain.PinFire || added == 9 {
			continue
		}
		if _, err := s.Toggle(filter.GroupHazard, k); err != nil {
			t.Fatalf("Toggle %s: %v", k, err)
		}
		added++
	}
	snap, err = s.Toggle(filter.GroupFacility, domain.PinPoliceStation)
	if !errors.Is(err, e.ErrLimitExceeded) {
		t.Fatalf("expected 11th toggle rejected, got %v", err)
	}
	if snap.Active != filter.MaxActive {
		t.Fatalf("expected %d active, got %d", filter.MaxActive, snap.Active)
	}
	if n := fx.store.LiveSubscriptions(); n != 1 {
		t.Fatalf("expected one live subscription after filter changes, got %d", n)
	}
}

func TestSession_ClickToCreate(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	s := fx.session(t)
	loaded(t, s)

	if err := s.HandleMapEvent(MapEvent{Kind: MapEventClick, Lat: f64ptr(14.1122), Lng: f64ptr(121.5569)}); err != nil {
		t.Fatalf("click: %v", err)
	}

	auth := s.Authoring().Snapshot()
	if auth.State != authoring.StateEditing || auth.Form.LocationName != "Lucban, Quezon" {
		t.Fatalf("expected editing with label, got %+v", auth)
	}
	if k := markerKinds(s); k["preview"] != 1 || k["pin"] != 0 {
		t.Fatalf("expected preview only, got %v", k)
	}

	typ := domain.PinLandslide
	if _, err := s.Authoring().Update(context.Background(), authoring.FormPatch{Type: &typ, Title: strPtr("Slope failure")}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	id, err := s.SaveAuthoring(context.Background(), operator)
	if err != nil {
		t.Fatalf("SaveAuthoring: %v", err)
	}

	eventually(t, "new pin delivered", func() bool {
		pins := s.Pins()
		return len(pins) == 1 && pins[0].ID == id
	})
	eventually(t, "pin marker drawn", func() bool {
		k := markerKinds(s)
		return k["pin"] == 1 && k["preview"] == 0
	})
}

func TestSession_SaveInvalid_NoNotice(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	s := fx.session(t)

	_ = s.OpenCreate()
	if _, err := s.SaveAuthoring(context.Background(), operator); !errors.Is(err, e.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if snap := s.Snapshot(); snap.Notice != "" || snap.Authoring.FieldErrors["latitude"] == "" {
		t.Fatalf("expected inline field errors only, got %+v", snap)
	}
}

func TestSession_EditAndDeleteFromMarker(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	id := fx.seed(t, domain.PinFire, "Warehouse fire")

	s := fx.session(t)
	loaded(t, s)
	eventually(t, "pin marker", func() bool { return markerKinds(s)["pin"] == 1 })

	marker := mapview.PinMarkerID(id.String())
	if err := s.HandleMapEvent(MapEvent{Kind: MapEventEdit, MarkerID: marker}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	auth := s.Authoring().Snapshot()
	if auth.Mode != authoring.ModeEdit || auth.PinID == nil || *auth.PinID != id {
		t.Fatalf("expected edit flow for the pin, got %+v", auth)
	}
	s.Authoring().Close()

	if _, err := s.ConfirmDelete(context.Background(), operator); !errors.Is(err, e.ErrInvalidState) {
		t.Fatalf("delete without request must be refused, got %v", err)
	}

	if err := s.HandleMapEvent(MapEvent{Kind: MapEventDelete, MarkerID: marker}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if p := s.Snapshot().PendingDelete; p == nil || *p != id {
		t.Fatalf("expected pending delete of %s, got %v", id, p)
	}
	eventually(t, "pin listed", func() bool { return len(s.Pins()) == 1 })

	deleted, err := s.ConfirmDelete(context.Background(), operator)
	if err != nil || deleted != id {
		t.Fatalf("ConfirmDelete: %v %s", err, deleted)
	}
	eventually(t, "pin removed", func() bool { return len(s.Pins()) == 0 })
	if s.Snapshot().PendingDelete != nil {
		t.Fatalf("pending delete not cleared")
	}
}

func TestSession_PreviewAndClickedLocation(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.seed(t, domain.PinFire, "Warehouse fire")

	s := fx.session(t)
	loaded(t, s)

	err := s.SetMapOptions(context.Background(), MapOptions{
		Preview: &Preview{Coordinates: "120.9842,14.5995", Title: "Reported incident"},
	})
	if err != nil {
		t.Fatalf("SetMapOptions: %v", err)
	}
	k := markerKinds(s)
	if k["preview"] != 1 || k["pin"] != 0 {
		t.Fatalf("expected preview only, got %v", k)
	}
	feats := s.Scene().State().Markers.Features
	if pt := feats[0].Geometry.(orb.Point); pt != (orb.Point{120.9842, 14.5995}) {
		t.Fatalf("expected swapped coordinates corrected, got %v", pt)
	}

	if err := s.HandleMapEvent(MapEvent{Kind: MapEventClick, Lat: f64ptr(14.6), Lng: f64ptr(120.99)}); err != nil {
		t.Fatalf("click: %v", err)
	}
	if st := s.Authoring().Snapshot().State; st != authoring.StateIdle {
		t.Fatalf("click while viewing a preview must not open authoring, got %s", st)
	}
	if k := markerKinds(s); k["clicked_location"] != 1 {
		t.Fatalf("expected clicked marker, got %v", k)
	}

	_ = s.SetMapOptions(context.Background(), MapOptions{ClearPreview: true})
	eventually(t, "pins back", func() bool { return markerKinds(s)["pin"] == 1 })
}

func TestSession_Route(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	s := fx.session(t)
	loaded(t, s)

	dest := domain.LatLng{Lat: 14.1, Lng: 121.5}
	if _, err := s.ShowRoute(context.Background(), nil, dest); !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without origin, got %v", err)
	}

	_ = s.HandleMapEvent(MapEvent{Kind: MapEventGeolocate, Lat: f64ptr(14.2), Lng: f64ptr(121.6)})
	route, err := s.ShowRoute(context.Background(), nil, dest)
	if err != nil || route == nil {
		t.Fatalf("ShowRoute: %v %v", route, err)
	}
	if _, ok := s.Scene().State().Sources["route"]; !ok {
		t.Fatalf("expected route drawn")
	}

	fx.geo.mu.Lock()
	fx.geo.noRoute = true
	fx.geo.mu.Unlock()

	route, err = s.ShowRoute(context.Background(), nil, dest)
	if err != nil || route != nil {
		t.Fatalf("expected unavailable route, got %v %v", route, err)
	}
	if s.Snapshot().Notice != "route unavailable" {
		t.Fatalf("expected notice")
	}
}

func TestSession_Heatmap(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.seed(t, domain.PinFire, "a")
	fx.seed(t, domain.PinPoliceStation, "b")

	s := fx.session(t)
	loaded(t, s)
	_, _ = s.Toggle(filter.GroupHazard, domain.PinFire)

	on := true
	if err := s.SetMapOptions(context.Background(), MapOptions{Heatmap: &on}); err != nil {
		t.Fatalf("SetMapOptions: %v", err)
	}
	src := s.Scene().State().Sources["heatmap"]
	if src == nil || len(src.Features) != 2 {
		t.Fatalf("heatmap must use the unfiltered coordinate set")
	}

	off := false
	_ = s.SetMapOptions(context.Background(), MapOptions{Heatmap: &off})
	st := s.Scene().State()
	if len(st.Layers) != 1 || !st.Layers[0].Hidden || st.Sources["heatmap"] != src {
		t.Fatalf("expected the heatmap layer hidden with its source kept, got %+v", st.Layers)
	}
}

func TestSession_Heatmap_RebuiltOnlyWhenStale(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	fx.seed(t, domain.PinFire, "a")
	fx.seed(t, domain.PinFlooding, "b")

	r := NewRegistry(context.Background(), fx.store, fx.geo, Options{
		Map:      mapview.Config{Center: mapview.DefaultReference, Zoom: 12, InitTimeout: time.Minute},
		Debounce: 10 * time.Millisecond,
	}, time.Hour, newTestLogger())
	defer r.Close()

	s, err := r.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	loaded(t, s)
	eventually(t, "initial pins", func() bool { return len(s.Pins()) == 2 })

	on := true
	if err := s.SetMapOptions(context.Background(), MapOptions{Heatmap: &on}); err != nil {
		t.Fatalf("SetMapOptions: %v", err)
	}
	if n, err := r.RefreshHeatmaps(context.Background()); err != nil || n != 0 {
		t.Fatalf("fresh heatmap must not reload, got %d %v", n, err)
	}
	src := s.Scene().State().Sources["heatmap"]

	fx.seed(t, domain.PinLandslide, "c")
	eventually(t, "pin delivery", func() bool { return len(s.Pins()) == 3 })
	if got := s.Scene().State().Sources["heatmap"]; got != src || len(got.Features) != 2 {
		t.Fatalf("a pin delivery must not rebuild the heatmap")
	}

	n, err := r.RefreshHeatmaps(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected one reload, got %d %v", n, err)
	}
	if got := s.Scene().State().Sources["heatmap"]; len(got.Features) != 3 {
		t.Fatalf("expected 3 heat points after refresh, got %d", len(got.Features))
	}
	if n, _ := r.RefreshHeatmaps(context.Background()); n != 0 {
		t.Fatalf("expected no reload without changes, got %d", n)
	}
}

func TestSession_BadInput(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	s := fx.session(t)

	if err := s.HandleMapEvent(MapEvent{Kind: MapEventClick}); !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	bad := "north of here"
	if err := s.SetMapOptions(context.Background(), MapOptions{Center: &bad}); !errors.Is(err, e.ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
	from := time.Now()
	to := from.Add(-time.Hour)
	if err := s.SetQuery(Query{DateFrom: &from, DateTo: &to}); !errors.Is(err, e.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSession_Search(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	s := fx.session(t)

	s.Search("Lu")
	if r := s.SearchResult(); r.Open || len(r.Suggestions) != 0 {
		t.Fatalf("short query must close suggestions, got %+v", r)
	}
	s.Search("Lucb")
	s.Search("Lucban")
	eventually(t, "suggestions", func() bool {
		r := s.SearchResult()
		return r.Open && r.Query == "Lucban"
	})
}

func TestRegistry_Lifecycle(t *testing.T) {
	t.Parallel()

	fx := newFixture()
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	r := NewRegistry(context.Background(), fx.store, fx.geo, Options{}, 10*time.Minute, newTestLogger())
	r.now = func() time.Time { return now }
	defer r.Close()

	a, err := r.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err := r.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if got, err := r.Get(a.ID); err != nil || got != a {
		t.Fatalf("Get: %v", err)
	}
	if _, err := r.Get(uuid.New()); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	now = now.Add(8 * time.Minute)
	_, _ = r.Get(b.ID)
	now = now.Add(5 * time.Minute)

	n, err := r.Sweep(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected one idle session swept, got %d %v", n, err)
	}
	if _, err := r.Get(a.ID); !errors.Is(err, e.ErrNotFound) {
		t.Fatalf("swept session still reachable")
	}

	if err := r.Remove(b.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected no sessions, got %d", r.Len())
	}
	if n := fx.store.LiveSubscriptions(); n != 0 {
		t.Fatalf("expected subscriptions released, got %d", n)
	}
}
