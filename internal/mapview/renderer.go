package mapview

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"accizard/internal/domain"
	"accizard/internal/events"
	"accizard/internal/geocode"
	"accizard/pkg/e"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateError         State = "error"
)

const (
	routeSource   = "route"
	routeLayer    = "route-line"
	heatmapSource = "heatmap"
	heatmapLayer  = "heatmap-layer"
)

var styles = []string{"streets", "satellite"}

// Geocoder is what popups need from the geocoding client.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) string
	TravelInfo(ctx context.Context, origin *domain.LatLng, dest domain.LatLng) domain.TravelInfo
}

type Config struct {
	Center         orb.Point
	Zoom           float64
	Style          string
	InitTimeout    time.Duration
	SearchControl  bool
	RoutePaddingPx int
}

// Inputs is everything marker reconciliation draws from.
type Inputs struct {
	Pins         []domain.Pin
	ActiveTypes  []domain.PinType
	Preview      *Marker
	UserLocation *domain.LatLng
	Clicked      *ClickedLocation
}

type ClickedLocation struct {
	Position domain.LatLng
	Label    string
}

// Renderer owns one map instance and everything drawn on it.
type Renderer struct {
	surface Surface
	bus     *events.Bus
	geo     Geocoder
	cfg     Config
	logger  *slog.Logger

	mu         sync.Mutex
	state      State
	lastErr    error
	gen        uint64
	initTimer  *time.Timer
	controls   []ControlKind
	markers    map[string]Marker
	inputs     Inputs
	route      *domain.Route
	heatOn     bool
	heatLoaded bool
	heat       []domain.HeatPoint
	style      string
	view       View
}

func NewRenderer(surface Surface, bus *events.Bus, geo Geocoder, cfg Config, logger *slog.Logger) *Renderer {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 10 * time.Second
	}
	if cfg.RoutePaddingPx <= 0 {
		cfg.RoutePaddingPx = 50
	}
	if !slices.Contains(styles, cfg.Style) {
		cfg.Style = styles[0]
	}
	return &Renderer{
		surface: surface,
		bus:     bus,
		geo:     geo,
		cfg:     cfg,
		logger:  logger,
		state:   StateUninitialized,
		markers: make(map[string]Marker),
		style:   cfg.Style,
		view:    View{Center: cfg.Center, Zoom: cfg.Zoom, Style: cfg.Style},
	}
}

func (r *Renderer) State() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.lastErr
}

// Init creates the map instance and installs its controls. The renderer
// becomes Ready when the surface reports loaded, or Error after the init
// timeout.
func (r *Renderer) Init(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateInitializing || r.state == StateReady {
		r.mu.Unlock()
		return fmt.Errorf("mapview.Init: %w: already %s", e.ErrInvalidState, r.state)
	}
	if r.state == StateError {
		r.disposeLocked()
	}

	r.gen++
	gen := r.gen
	r.state = StateInitializing
	r.lastErr = nil

	if err := r.surface.Create(ctx, r.view); err != nil {
		ev := r.failLocked(err)
		r.mu.Unlock()
		r.bus.Publish(ev)
		return r.lastErrOf()
	}

	want := []ControlKind{ControlGeolocate, ControlZoom}
	if r.cfg.SearchControl {
		want = append(want, ControlSearch)
	}
	for _, c := range want {
		if err := r.surface.AddControl(c); err != nil {
			ev := r.failLocked(err)
			r.mu.Unlock()
			r.bus.Publish(ev)
			return r.lastErrOf()
		}
		r.controls = append(r.controls, c)
	}

	r.initTimer = time.AfterFunc(r.cfg.InitTimeout, func() { r.timeout(gen) })
	r.mu.Unlock()

	r.logger.Debug("map initializing", slog.Uint64("generation", gen))
	return nil
}

// Loaded handles the surface's loaded event.
func (r *Renderer) Loaded() {
	r.mu.Lock()
	if r.state != StateInitializing {
		r.mu.Unlock()
		return
	}
	r.stopTimerLocked()
	r.state = StateReady
	r.applyAllLocked()
	r.mu.Unlock()

	r.logger.Info("map ready")
	r.bus.Publish(events.Event{Kind: events.EventLoaded})
}

// Fail handles a provider error reported by the surface.
func (r *Renderer) Fail(err error) {
	r.mu.Lock()
	if r.state != StateInitializing && r.state != StateReady {
		r.mu.Unlock()
		return
	}
	ev := r.failLocked(err)
	r.mu.Unlock()
	r.bus.Publish(ev)
}

// Retry disposes the current instance and initializes a new one.
func (r *Renderer) Retry(ctx context.Context) error {
	r.Dispose()
	return r.Init(ctx)
}

// Dispose removes controls, markers, layers and the map instance.
func (r *Renderer) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposeLocked()
}

// Reconcile redraws every marker from in. Inputs are kept while the map is
// not ready and drawn on load.
func (r *Renderer) Reconcile(in Inputs) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.inputs = in
	if r.state == StateReady {
		r.drawMarkersLocked()
	}
}

// UpdateInputs applies fn to the current inputs and redraws.
func (r *Renderer) UpdateInputs(fn func(*Inputs)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(&r.inputs)
	if r.state == StateReady {
		r.drawMarkersLocked()
	}
}

func (r *Renderer) Inputs() Inputs {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inputs
}

// Markers returns the owned marker collection sorted by id.
func (r *Renderer) Markers() []Marker {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Marker, 0, len(r.markers))
	for _, m := range r.markers {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b Marker) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// OpenPopup builds the popup of a marker. The place label and travel time are
// fetched only here.
func (r *Renderer) OpenPopup(ctx context.Context, markerID string) (Popup, error) {
	r.mu.Lock()
	m, ok := r.markers[markerID]
	ref := r.inputs.UserLocation
	clicked := r.inputs.Clicked
	r.mu.Unlock()

	if !ok {
		return Popup{}, fmt.Errorf("mapview.OpenPopup: marker %q: %w", markerID, e.ErrNotFound)
	}

	p := Popup{MarkerID: markerID, Title: m.DisplayName()}
	if m.Kind == MarkerPin {
		p.Actions = []string{"edit", "delete"}
	}

	dest := toLatLng(m.Position)
	switch {
	case m.Kind == MarkerClicked && clicked != nil && clicked.Label != "":
		p.Label = clicked.Label
	case m.Kind != MarkerUser:
		label := r.geo.ReverseGeocode(ctx, dest.Lat, dest.Lng)
		if label == "" || label == geocode.UnknownLocation {
			label = m.DisplayName()
		}
		p.Label = label
	}
	if ref != nil && m.Kind != MarkerUser {
		info := r.geo.TravelInfo(ctx, ref, dest)
		p.Travel = &info
	}

	r.mu.Lock()
	_, still := r.markers[markerID]
	if still && r.state == StateReady {
		r.surface.ShowPopup(p)
	}
	r.mu.Unlock()

	if !still {
		return Popup{}, fmt.Errorf("mapview.OpenPopup: marker %q removed: %w", markerID, e.ErrNotFound)
	}
	r.bus.Publish(events.Event{Kind: events.EventPopupOpen, MarkerID: markerID, PinID: pinIDOf(m)})
	return p, nil
}

func (r *Renderer) ClosePopup(markerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateReady {
		r.surface.ClosePopup(markerID)
	}
}

// ShowRoute replaces the displayed route and fits the viewport to it. A nil
// route clears it.
func (r *Renderer) ShowRoute(route *domain.Route) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.route = route
	if r.state == StateReady {
		r.drawRouteLocked(true)
	}
}

func (r *Renderer) ClearRoute() {
	r.ShowRoute(nil)
}

func (r *Renderer) Route() *domain.Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.route
}

// LoadHeatmap replaces the heatmap coordinate set and rebuilds its source and
// layer. The layer keeps its current visibility.
func (r *Renderer) LoadHeatmap(points []domain.HeatPoint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.heat = points
	r.heatLoaded = true
	if r.state == StateReady {
		r.drawHeatmapLocked()
	}
}

// SetHeatmap shows or hides the heatmap layer. The layer is only built by
// LoadHeatmap; toggling never rebuilds it.
func (r *Renderer) SetHeatmap(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.heatOn == on {
		return
	}
	r.heatOn = on
	if r.state == StateReady && r.heatLoaded {
		r.surface.SetLayerVisible(heatmapLayer, on)
	}
}

func (r *Renderer) HeatmapOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heatOn
}

// HeatmapLoaded reports whether a coordinate set has been loaded.
func (r *Renderer) HeatmapLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.heatLoaded
}

// SetStyle switches the base style. Style changes drop custom layers on the
// map, so the route and heatmap are drawn again.
func (r *Renderer) SetStyle(style string) error {
	if !slices.Contains(styles, style) {
		return fmt.Errorf("mapview.SetStyle: %w: unknown style %q", e.ErrInvalidInput, style)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.style == style {
		return nil
	}
	r.style = style
	r.view.Style = style
	if r.state == StateReady {
		r.surface.SetStyle(style)
		r.drawHeatmapLocked()
		r.drawRouteLocked(false)
	}
	return nil
}

func (r *Renderer) SetView(center orb.Point, zoom float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.view.Center = center
	r.view.Zoom = zoom
	if r.state == StateReady {
		r.surface.SetView(center, zoom)
	}
}

// HandleClick publishes a map click at pos.
func (r *Renderer) HandleClick(pos domain.LatLng) {
	r.bus.Publish(events.Event{Kind: events.EventMapClick, Position: &pos})
}

// HandleGeolocated records the operator's position and publishes it.
func (r *Renderer) HandleGeolocated(pos domain.LatLng) {
	r.UpdateInputs(func(in *Inputs) { in.UserLocation = &pos })
	r.bus.Publish(events.Event{Kind: events.EventGeolocated, Position: &pos})
}

// RequestEdit and RequestDelete publish the popup affordances of a pin marker.
func (r *Renderer) RequestEdit(markerID string) error {
	return r.requestPin(events.EventEditPin, markerID)
}

func (r *Renderer) RequestDelete(markerID string) error {
	return r.requestPin(events.EventDeletePin, markerID)
}

func (r *Renderer) requestPin(kind events.Kind, markerID string) error {
	r.mu.Lock()
	m, ok := r.markers[markerID]
	r.mu.Unlock()

	if !ok || m.PinID == nil {
		return fmt.Errorf("mapview.%s: marker %q: %w", kind, markerID, e.ErrNotFound)
	}
	r.bus.Publish(events.Event{Kind: kind, MarkerID: markerID, PinID: *m.PinID})
	return nil
}

func (r *Renderer) timeout(gen uint64) {
	r.mu.Lock()
	if r.gen != gen || r.state != StateInitializing {
		r.mu.Unlock()
		return
	}
	ev := r.failLocked(fmt.Errorf("no loaded event within %s", r.cfg.InitTimeout))
	r.mu.Unlock()

	r.bus.Publish(ev)
}

func (r *Renderer) failLocked(cause error) events.Event {
	r.stopTimerLocked()
	r.state = StateError
	r.lastErr = fmt.Errorf("%w: %w", e.ErrMapInit, cause)
	r.logger.Error("map initialization failed", slog.Any("error", cause))
	return events.Event{Kind: events.EventMapError, Error: r.lastErr.Error()}
}

func (r *Renderer) lastErrOf() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

func (r *Renderer) stopTimerLocked() {
	if r.initTimer != nil {
		r.initTimer.Stop()
		r.initTimer = nil
	}
}

func (r *Renderer) disposeLocked() {
	r.stopTimerLocked()
	r.gen++
	if r.state == StateUninitialized {
		return
	}
	r.clearMarkersLocked()
	for _, c := range r.controls {
		r.surface.RemoveControl(c)
	}
	r.controls = nil
	r.surface.RemoveLayer(routeLayer)
	r.surface.RemoveSource(routeSource)
	r.surface.RemoveLayer(heatmapLayer)
	r.surface.RemoveSource(heatmapSource)
	r.surface.Remove()
	r.state = StateUninitialized
	r.lastErr = nil
}

func (r *Renderer) applyAllLocked() {
	r.surface.SetStyle(r.style)
	r.drawMarkersLocked()
	r.drawHeatmapLocked()
	r.drawRouteLocked(true)
}

func (r *Renderer) clearMarkersLocked() {
	for id := range r.markers {
		r.surface.RemoveMarker(id)
	}
	clear(r.markers)
}

// drawMarkersLocked tears down every owned marker and rebuilds the set.
func (r *Renderer) drawMarkersLocked() {
	r.clearMarkersLocked()

	in := r.inputs
	if in.Preview != nil {
		preview := *in.Preview
		preview.Kind = MarkerPreview
		if preview.ID == "" {
			preview.ID = "preview"
		}
		r.addMarkerLocked(preview)
	} else {
		for _, p := range in.Pins {
			if len(in.ActiveTypes) > 0 && !slices.Contains(in.ActiveTypes, p.Type) {
				continue
			}
			r.addMarkerLocked(pinMarker(p))
		}
	}

	if in.UserLocation != nil {
		r.addMarkerLocked(Marker{ID: "user-location", Kind: MarkerUser, Position: toPoint(*in.UserLocation), Title: "Your location"})
	}
	if in.Clicked != nil {
		m := Marker{ID: "clicked-location", Kind: MarkerClicked, Position: toPoint(in.Clicked.Position), LocationName: in.Clicked.Label}
		r.addMarkerLocked(m)
		r.surface.ShowPopup(Popup{MarkerID: m.ID, Title: m.DisplayName(), Label: in.Clicked.Label})
	}
}

func (r *Renderer) addMarkerLocked(m Marker) {
	r.markers[m.ID] = m
	r.surface.AddMarker(m)
}

func (r *Renderer) drawRouteLocked(fit bool) {
	r.surface.RemoveLayer(routeLayer)
	r.surface.RemoveSource(routeSource)
	if r.route == nil || len(r.route.Geometry) < 2 {
		return
	}

	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(r.route.Geometry)
	f.Properties["duration"] = r.route.DurationLabel
	f.Properties["distance_km"] = r.route.DistanceKm
	fc.Append(f)

	r.surface.AddSource(routeSource, fc)
	r.surface.AddLayer(Layer{ID: routeLayer, Kind: LayerLine, Source: routeSource})
	if fit {
		r.surface.FitBounds(r.route.Bound(), r.cfg.RoutePaddingPx)
	}
}

func (r *Renderer) drawHeatmapLocked() {
	r.surface.RemoveLayer(heatmapLayer)
	r.surface.RemoveSource(heatmapSource)
	if !r.heatLoaded {
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, p := range r.heat {
		f := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
		f.Properties["weight"] = p.Weight
		fc.Append(f)
	}
	r.surface.AddSource(heatmapSource, fc)
	r.surface.AddLayer(Layer{ID: heatmapLayer, Kind: LayerHeatmap, Source: heatmapSource, Hidden: !r.heatOn})
}

func pinMarker(p domain.Pin) Marker {
	p.Normalize()
	id := p.ID
	return Marker{
		ID:           PinMarkerID(p.ID.String()),
		Kind:         MarkerPin,
		Position:     orb.Point{p.Longitude, p.Latitude},
		Title:        p.Title,
		LocationName: p.LocationName,
		PinID:        &id,
		Type:         p.Type,
		Category:     p.Category,
	}
}

// PinMarkerID is the marker id of a pin.
func PinMarkerID(pinID string) string {
	return "pin:" + pinID
}

func pinIDOf(m Marker) uuid.UUID {
	if m.PinID != nil {
		return *m.PinID
	}
	return uuid.Nil
}
