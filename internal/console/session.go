// Package console holds the per-operator map console: filter selection, the
// live pin subscription, the map scene, the authoring flow and place search.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"accizard/internal/authoring"
	"accizard/internal/domain"
	"accizard/internal/events"
	"accizard/internal/filter"
	"accizard/internal/geocode"
	"accizard/internal/mapview"
	"accizard/internal/service"
	"accizard/pkg/e"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// PinStore is the part of service.PinStore a session uses.
type PinStore interface {
	authoring.PinWriter
	Get(ctx context.Context, id uuid.UUID) (*domain.Pin, error)
	Delete(ctx context.Context, id uuid.UUID, by domain.Operator) error
	Coordinates(ctx context.Context) ([]domain.HeatPoint, error)
	NewWatcher(ctx context.Context, onData func([]domain.Pin), onError func(error)) *service.Watcher
}

type Geocoder interface {
	geocode.Suggester
	mapview.Geocoder
	ComputeRoute(ctx context.Context, origin, dest domain.LatLng) *domain.Route
	Online() bool
}

type Options struct {
	Map      mapview.Config
	Debounce time.Duration
}

// Map event kinds posted by the host page.
const (
	MapEventLoaded         = "loaded"
	MapEventError          = "error"
	MapEventClick          = "click"
	MapEventGeolocate      = "geolocate"
	MapEventGeolocateError = "geolocate_error"
	MapEventEdit           = "edit"
	MapEventDelete         = "delete"
)

type MapEvent struct {
	Kind     string   `json:"kind" validate:"required,oneof=loaded error click geolocate geolocate_error edit delete"`
	Lat      *float64 `json:"lat,omitempty" validate:"omitempty,lat"`
	Lng      *float64 `json:"lng,omitempty" validate:"omitempty,lng"`
	MarkerID string   `json:"marker_id,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// MapOptions are the declarative map inputs; nil fields are left unchanged.
type MapOptions struct {
	Heatmap      *bool    `json:"heatmap,omitempty"`
	Style        *string  `json:"style,omitempty"`
	Center       *string  `json:"center,omitempty"`
	Zoom         *float64 `json:"zoom,omitempty" validate:"omitempty,min=0,max=22"`
	Preview      *Preview `json:"preview,omitempty"`
	ClearPreview bool     `json:"clear_preview,omitempty"`
}

// Preview is a single marker shown instead of the pin collection, for
// example the location of a report. Coordinates is "lat,lng".
type Preview struct {
	Coordinates  string `json:"coordinates"`
	Title        string `json:"title"`
	LocationName string `json:"location_name,omitempty"`
}

type Query struct {
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Search   string     `json:"search,omitempty"`
}

type MapStatus struct {
	State   mapview.State `json:"state"`
	Error   string        `json:"error,omitempty"`
	Heatmap bool          `json:"heatmap"`
	Route   *domain.Route `json:"route,omitempty"`
}

type Snapshot struct {
	ID            uuid.UUID            `json:"id"`
	Filters       filter.Snapshot      `json:"filters"`
	Query         Query                `json:"query"`
	Pins          int                  `json:"pins"`
	Map           MapStatus            `json:"map"`
	Authoring     authoring.Snapshot   `json:"authoring"`
	PendingDelete *uuid.UUID           `json:"pending_delete,omitempty"`
	Search        geocode.SearchResult `json:"search"`
	Online        bool                 `json:"online"`
	Notice        string               `json:"notice,omitempty"`
	LastSeen      time.Time            `json:"last_seen"`
}

// Session is one operator's console. Lock order: renderer, then mu, then the
// authoring controller; mu is never held while calling the renderer.
type Session struct {
	ID     uuid.UUID
	logger *slog.Logger
	store  PinStore
	geo    Geocoder

	ctx    context.Context
	cancel context.CancelFunc

	bus      *events.Bus
	scene    *mapview.Scene
	renderer *mapview.Renderer
	auth     *authoring.Controller
	searcher *geocode.Searcher
	watcher  *service.Watcher
	unsubs   []func()

	// filterMu serialises selection changes with the watcher swap.
	filterMu sync.Mutex

	mu            sync.Mutex
	selection     *filter.Selection
	query         Query
	pins          []domain.Pin
	extPreview    *mapview.Marker
	clicked       *mapview.ClickedLocation
	pendingDelete *uuid.UUID
	notice        string
	lastSeen      time.Time
	closed        bool
	// heatStale is set when pins change after the heatmap coordinates were
	// loaded.
	heatStale bool
}

func NewSession(ctx context.Context, store PinStore, geo Geocoder, opts Options, logger *slog.Logger) *Session {
	id := uuid.New()
	ctx, cancel := context.WithCancel(ctx)

	s := &Session{
		ID:        id,
		logger:    logger.With(slog.String("session", id.String())),
		store:     store,
		geo:       geo,
		ctx:       ctx,
		cancel:    cancel,
		bus:       events.NewBus(),
		scene:     mapview.NewScene(),
		selection: filter.NewSelection(),
		lastSeen:  time.Now(),
	}
	s.renderer = mapview.NewRenderer(s.scene, s.bus, geo, opts.Map, s.logger)
	s.auth = authoring.NewController(store, geo, s.logger, func(authoring.Snapshot) { s.refreshInputs() })
	s.searcher = geocode.NewSearcher(ctx, geo, opts.Debounce, nil)
	s.watcher = store.NewWatcher(ctx, s.setPins, s.storeFailed)

	s.unsubs = append(s.unsubs,
		s.bus.Subscribe(events.EventMapClick, s.onMapClick),
		s.bus.Subscribe(events.EventEditPin, s.onEditPin),
		s.bus.Subscribe(events.EventDeletePin, s.onDeletePin),
		s.bus.Subscribe(events.EventMapError, func(ev events.Event) { s.setNotice(ev.Error) }),
	)
	return s
}

// Start opens the pin subscription and initializes the map.
func (s *Session) Start() error {
	s.applyFilter()
	if err := s.renderer.Init(s.ctx); err != nil {
		return fmt.Errorf("console.Start: %w", err)
	}
	return nil
}

// Close releases the subscription, the map and pending searches.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	for _, unsub := range s.unsubs {
		unsub()
	}
	s.searcher.Close()
	s.watcher.Close()
	s.auth.Close()
	s.renderer.Dispose()
	s.cancel()
	s.logger.Info("console session closed")
}

func (s *Session) Bus() *events.Bus { return s.bus }

func (s *Session) Scene() *mapview.Scene { return s.scene }

func (s *Session) Authoring() *authoring.Controller { return s.auth }

// Touch records activity for idle expiry.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = now
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// --- filters ---

// Toggle flips one filter key and re-subscribes. The selection is unchanged
// when the key would exceed the filter ceiling.
func (s *Session) Toggle(g filter.Group, key domain.PinType) (filter.Snapshot, error) {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()

	s.mu.Lock()
	err := s.selection.Toggle(g, key)
	snap := s.selection.Snapshot()
	s.mu.Unlock()
	if err != nil {
		return snap, err
	}

	s.applyFilterLocked()
	return snap, nil
}

func (s *Session) SelectAll(g filter.Group, checked bool) (filter.Snapshot, error) {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()

	s.mu.Lock()
	err := s.selection.SelectAll(g, checked)
	snap := s.selection.Snapshot()
	s.mu.Unlock()
	if err != nil {
		return snap, err
	}

	s.applyFilterLocked()
	return snap, nil
}

func (s *Session) Filters() filter.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Snapshot()
}

// SetQuery replaces the date range and text search.
func (s *Session) SetQuery(q Query) error {
	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		return fmt.Errorf("console.SetQuery: date_to before date_from: %w", e.ErrInvalidInput)
	}
	q.Search = strings.TrimSpace(q.Search)

	s.filterMu.Lock()
	defer s.filterMu.Unlock()

	s.mu.Lock()
	s.query = q
	s.mu.Unlock()

	s.applyFilterLocked()
	return nil
}

// Pins returns the last delivered pin list.
func (s *Session) Pins() []domain.Pin {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Pin(nil), s.pins...)
}

func (s *Session) applyFilter() {
	s.filterMu.Lock()
	defer s.filterMu.Unlock()
	s.applyFilterLocked()
}

func (s *Session) applyFilterLocked() {
	s.mu.Lock()
	f := s.selection.Filter(domain.PinFilter{
		DateFrom:    s.query.DateFrom,
		DateTo:      s.query.DateTo,
		SearchQuery: s.query.Search,
	})
	s.mu.Unlock()

	s.watcher.SetFilter(f)
	s.refreshInputs()
}

func (s *Session) setPins(pins []domain.Pin) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pins = pins
	s.heatStale = true
	s.mu.Unlock()

	s.refreshInputs()
}

func (s *Session) storeFailed(err error) {
	s.logger.Error("pin subscription failed", slog.Any("error", err))
	s.setNotice(err.Error())
}

// --- map ---

// refreshInputs pushes the session state into the renderer. It runs under the
// renderer lock so concurrent refreshes apply in order.
func (s *Session) refreshInputs() {
	s.renderer.UpdateInputs(func(in *mapview.Inputs) {
		auth := s.auth.Snapshot()

		s.mu.Lock()
		defer s.mu.Unlock()

		in.Pins = s.pins
		in.ActiveTypes = s.selection.ActiveTypes()
		in.Preview = s.previewLocked(auth)
		in.Clicked = s.clicked
	})
}

// previewLocked is the authoring marker while a flow has a position, else the
// host supplied preview.
func (s *Session) previewLocked(auth authoring.Snapshot) *mapview.Marker {
	if auth.Open() {
		pos, ok := auth.Position()
		if !ok {
			return nil
		}
		title := auth.Form.Title
		if title == "" {
			title = "New pin"
		}
		return &mapview.Marker{
			ID:           "preview",
			Position:     orb.Point{pos.Lng, pos.Lat},
			Title:        title,
			LocationName: auth.Form.LocationName,
			Type:         auth.Form.Type,
			Category:     auth.Form.Type.Category(),
		}
	}
	if s.extPreview != nil {
		m := *s.extPreview
		return &m
	}
	return nil
}

// HandleMapEvent applies an interaction event reported by the host page.
func (s *Session) HandleMapEvent(ev MapEvent) error {
	const op = "console.HandleMapEvent"

	pos := func() (domain.LatLng, error) {
		if ev.Lat == nil || ev.Lng == nil {
			return domain.LatLng{}, fmt.Errorf("%s: %s needs lat and lng: %w", op, ev.Kind, e.ErrInvalidInput)
		}
		return domain.LatLng{Lat: *ev.Lat, Lng: *ev.Lng}, nil
	}

	switch ev.Kind {
	case MapEventLoaded:
		s.renderer.Loaded()
	case MapEventError:
		s.renderer.Fail(errors.New(ev.Error))
	case MapEventClick:
		p, err := pos()
		if err != nil {
			return err
		}
		s.renderer.HandleClick(p)
	case MapEventGeolocate:
		p, err := pos()
		if err != nil {
			return err
		}
		s.renderer.HandleGeolocated(p)
	case MapEventGeolocateError:
		s.logger.Warn("geolocation unavailable", slog.String("error", ev.Error))
	case MapEventEdit:
		return s.renderer.RequestEdit(ev.MarkerID)
	case MapEventDelete:
		return s.renderer.RequestDelete(ev.MarkerID)
	default:
		return fmt.Errorf("%s: unknown event %q: %w", op, ev.Kind, e.ErrInvalidInput)
	}
	return nil
}

// RetryMap disposes the map and initializes it again.
func (s *Session) RetryMap() error {
	if err := s.renderer.Retry(s.ctx); err != nil {
		return fmt.Errorf("console.RetryMap: %w", err)
	}
	s.setNotice("")
	return nil
}

// SetMapOptions applies the declarative map inputs.
func (s *Session) SetMapOptions(ctx context.Context, o MapOptions) error {
	const op = "console.SetMapOptions"

	if o.Style != nil {
		if err := s.renderer.SetStyle(*o.Style); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if o.Center != nil || o.Zoom != nil {
		view := s.scene.State().View
		center, zoom := view.Center, view.Zoom
		if o.Center != nil {
			pt, err := mapview.ParseCoordinatesStrict(*o.Center)
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			center = pt
		}
		if o.Zoom != nil {
			zoom = *o.Zoom
		}
		s.renderer.SetView(center, zoom)
	}
	if o.ClearPreview || o.Preview != nil {
		s.mu.Lock()
		s.extPreview = nil
		s.clicked = nil
		if o.Preview != nil {
			s.extPreview = &mapview.Marker{
				ID:           "preview",
				Position:     mapview.ParseCoordinates(o.Preview.Coordinates),
				Title:        o.Preview.Title,
				LocationName: o.Preview.LocationName,
			}
		}
		s.mu.Unlock()
		s.refreshInputs()
	}
	if o.Heatmap != nil {
		if *o.Heatmap && (!s.renderer.HeatmapLoaded() || s.heatmapStale()) {
			if err := s.reloadHeatmap(ctx); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
		}
		s.renderer.SetHeatmap(*o.Heatmap)
	}
	return nil
}

// RefreshHeatmap reloads the heatmap coordinates when the layer is shown and
// pins changed since the last load. It reports whether a reload happened.
func (s *Session) RefreshHeatmap(ctx context.Context) (bool, error) {
	if !s.renderer.HeatmapOn() || !s.heatmapStale() {
		return false, nil
	}
	if err := s.reloadHeatmap(ctx); err != nil {
		return false, fmt.Errorf("console.RefreshHeatmap: %w", err)
	}
	return true, nil
}

func (s *Session) heatmapStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heatStale
}

func (s *Session) reloadHeatmap(ctx context.Context) error {
	s.mu.Lock()
	s.heatStale = false
	s.mu.Unlock()

	points, err := s.store.Coordinates(ctx)
	if err != nil {
		s.mu.Lock()
		s.heatStale = true
		s.mu.Unlock()
		s.logger.Error("heatmap coordinates failed", slog.Any("error", err))
		return err
	}
	s.renderer.LoadHeatmap(points)
	return nil
}

// ShowRoute computes a driving route and draws it. from defaults to the
// operator's location. A nil route means no route is available.
func (s *Session) ShowRoute(ctx context.Context, from *domain.LatLng, to domain.LatLng) (*domain.Route, error) {
	if from == nil {
		from = s.renderer.Inputs().UserLocation
	}
	if from == nil {
		return nil, fmt.Errorf("console.ShowRoute: no origin and no known location: %w", e.ErrInvalidInput)
	}

	route := s.geo.ComputeRoute(ctx, *from, to)
	if route == nil {
		s.setNotice("route unavailable")
		return nil, nil
	}
	s.renderer.ShowRoute(route)
	return route, nil
}

func (s *Session) ClearRoute() {
	s.renderer.ClearRoute()
}

func (s *Session) OpenPopup(ctx context.Context, markerID string) (mapview.Popup, error) {
	return s.renderer.OpenPopup(ctx, markerID)
}

func (s *Session) ClosePopup(markerID string) {
	s.renderer.ClosePopup(markerID)
}

func (s *Session) onMapClick(ev events.Event) {
	if ev.Position == nil {
		return
	}
	pos := *ev.Position
	auth := s.auth.Snapshot()

	s.mu.Lock()
	viewing := s.extPreview != nil
	s.mu.Unlock()

	if viewing && !auth.Open() {
		label := s.geo.ReverseGeocode(s.ctx, pos.Lat, pos.Lng)
		s.mu.Lock()
		s.clicked = &mapview.ClickedLocation{Position: pos, Label: label}
		s.mu.Unlock()
		s.refreshInputs()
		return
	}

	if !auth.Open() {
		if err := s.auth.OpenCreate(); err != nil {
			s.setNotice(err.Error())
			return
		}
	}
	if err := s.auth.HandleMapClick(s.ctx, pos); err != nil {
		s.logger.Warn("map click not applied", slog.Any("error", err))
	}
}

func (s *Session) onEditPin(ev events.Event) {
	pin, err := s.store.Get(s.ctx, ev.PinID)
	if err != nil {
		s.logger.Error("load pin for edit failed", slog.String("id", ev.PinID.String()), slog.Any("error", err))
		s.setNotice(err.Error())
		return
	}
	if err := s.auth.OpenEdit(*pin); err != nil {
		s.setNotice(err.Error())
	}
}

func (s *Session) onDeletePin(ev events.Event) {
	id := ev.PinID
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete = &id
}

// ConfirmDelete deletes the pin whose delete affordance was used. Nothing is
// deleted without a pending request.
func (s *Session) ConfirmDelete(ctx context.Context, by domain.Operator) (uuid.UUID, error) {
	const op = "console.ConfirmDelete"

	s.mu.Lock()
	pending := s.pendingDelete
	s.mu.Unlock()
	if pending == nil {
		return uuid.Nil, fmt.Errorf("%s: no delete pending: %w", op, e.ErrInvalidState)
	}

	if err := s.store.Delete(ctx, *pending, by); err != nil {
		s.setNotice(err.Error())
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if s.pendingDelete != nil && *s.pendingDelete == *pending {
		s.pendingDelete = nil
	}
	s.mu.Unlock()
	return *pending, nil
}

func (s *Session) CancelDelete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingDelete = nil
}

// --- authoring ---

func (s *Session) OpenCreate() error {
	return s.auth.OpenCreate()
}

func (s *Session) OpenFromReport(prefill domain.ReportPrefill) error {
	return s.auth.OpenFromReport(prefill)
}

// OpenEdit loads a stored pin into the authoring form.
func (s *Session) OpenEdit(ctx context.Context, id uuid.UUID) error {
	pin, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("console.OpenEdit: %w", err)
	}
	return s.auth.OpenEdit(*pin)
}

func (s *Session) SaveAuthoring(ctx context.Context, by domain.Operator) (uuid.UUID, error) {
	id, err := s.auth.Save(ctx, by)
	if err != nil && !errors.Is(err, e.ErrValidation) {
		s.setNotice(err.Error())
	}
	return id, err
}

// --- search ---

// Search registers a keystroke of the place search box.
func (s *Session) Search(q string) {
	s.searcher.Input(q)
}

func (s *Session) SearchResult() geocode.SearchResult {
	return s.searcher.Latest()
}

// --- state ---

func (s *Session) setNotice(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = msg
}

// DismissNotice clears the transient notice.
func (s *Session) DismissNotice() {
	s.setNotice("")
}

func (s *Session) Snapshot() Snapshot {
	st, mapErr := s.renderer.State()
	status := MapStatus{State: st, Heatmap: s.renderer.HeatmapOn(), Route: s.renderer.Route()}
	if mapErr != nil {
		status.Error = mapErr.Error()
	}
	auth := s.auth.Snapshot()
	search := s.searcher.Latest()
	online := s.geo.Online()

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.ID,
		Filters:   s.selection.Snapshot(),
		Query:     s.query,
		Pins:      len(s.pins),
		Map:       status,
		Authoring: auth,
		Search:    search,
		Online:    online,
		Notice:    s.notice,
		LastSeen:  s.lastSeen,
	}
	if s.pendingDelete != nil {
		id := *s.pendingDelete
		snap.PendingDelete = &id
	}
	return snap
}
