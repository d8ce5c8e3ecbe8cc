package mapview

import (
	"context"
	"sort"
	"sync"

	"accizard/pkg/e"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Fit is the last viewport fit request.
type Fit struct {
	Bound     orb.Bound `json:"bound"`
	PaddingPx int       `json:"padding_px"`
}

// SceneState is the drawable state the host page renders.
type SceneState struct {
	Revision uint64                                `json:"revision"`
	Alive    bool                                  `json:"alive"`
	View     View                                  `json:"view"`
	Controls []ControlKind                         `json:"controls"`
	Markers  *geojson.FeatureCollection            `json:"markers"`
	Popups   []Popup                               `json:"popups"`
	Sources  map[string]*geojson.FeatureCollection `json:"sources"`
	Layers   []Layer                               `json:"layers"`
	Fit      *Fit                                  `json:"fit,omitempty"`
}

// Scene is an in-memory Surface. Every change bumps the revision and wakes
// watchers.
type Scene struct {
	mu       sync.Mutex
	revision uint64
	alive    bool
	view     View
	controls map[ControlKind]bool
	markers  map[string]Marker
	order    []string
	popups   map[string]Popup
	sources  map[string]*geojson.FeatureCollection
	layers   []Layer
	fit      *Fit

	// createErr makes the next Create fail; used to simulate provider errors.
	createErr error

	watchers map[int]chan uint64
	nextID   int
}

func NewScene() *Scene {
	s := &Scene{watchers: make(map[int]chan uint64)}
	s.reset()
	return s
}

func (s *Scene) reset() {
	s.controls = make(map[ControlKind]bool)
	s.markers = make(map[string]Marker)
	s.order = nil
	s.popups = make(map[string]Popup)
	s.sources = make(map[string]*geojson.FeatureCollection)
	s.layers = nil
	s.fit = nil
}

// FailNextCreate makes the next Create return err.
func (s *Scene) FailNextCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createErr = err
}

func (s *Scene) Create(_ context.Context, view View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		err := s.createErr
		s.createErr = nil
		return err
	}
	if s.alive {
		return e.ErrInvalidState
	}
	s.reset()
	s.alive = true
	s.view = view
	s.bumpLocked()
	return nil
}

func (s *Scene) Remove() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	s.alive = false
	s.bumpLocked()
}

func (s *Scene) AddControl(kind ControlKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.alive {
		return e.ErrInvalidState
	}
	s.controls[kind] = true
	s.bumpLocked()
	return nil
}

func (s *Scene) RemoveControl(kind ControlKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.controls, kind)
	s.bumpLocked()
}

func (s *Scene) AddMarker(m Marker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markers[m.ID]; !ok {
		s.order = append(s.order, m.ID)
	}
	s.markers[m.ID] = m
	s.bumpLocked()
}

func (s *Scene) RemoveMarker(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.markers[id]; !ok {
		return
	}
	delete(s.markers, id)
	delete(s.popups, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	s.bumpLocked()
}

func (s *Scene) ShowPopup(p Popup) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.popups[p.MarkerID] = p
	s.bumpLocked()
}

func (s *Scene) ClosePopup(markerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.popups, markerID)
	s.bumpLocked()
}

func (s *Scene) AddSource(id string, fc *geojson.FeatureCollection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources[id] = fc
	s.bumpLocked()
}

func (s *Scene) RemoveSource(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sources, id)
	s.bumpLocked()
}

func (s *Scene) AddLayer(l Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.layers = append(s.layers, l)
	s.bumpLocked()
}

func (s *Scene) RemoveLayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, l := range s.layers {
		if l.ID == id {
			s.layers = append(s.layers[:i:i], s.layers[i+1:]...)
			break
		}
	}
	s.bumpLocked()
}

// SetLayerVisible shows or hides a layer without touching its source.
func (s *Scene) SetLayerVisible(id string, visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.layers {
		if s.layers[i].ID == id && s.layers[i].Hidden == visible {
			s.layers[i].Hidden = !visible
			s.bumpLocked()
			return
		}
	}
}

func (s *Scene) FitBounds(b orb.Bound, paddingPx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fit = &Fit{Bound: b, PaddingPx: paddingPx}
	s.bumpLocked()
}

func (s *Scene) SetView(center orb.Point, zoom float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.Center = center
	s.view.Zoom = zoom
	s.bumpLocked()
}

func (s *Scene) SetStyle(style string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.Style = style
	s.bumpLocked()
}

// State returns a copy of the drawable state with markers as GeoJSON points.
func (s *Scene) State() SceneState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SceneState{
		Revision: s.revision,
		Alive:    s.alive,
		View:     s.view,
		Controls: make([]ControlKind, 0, len(s.controls)),
		Markers:  geojson.NewFeatureCollection(),
		Popups:   make([]Popup, 0, len(s.popups)),
		Sources:  make(map[string]*geojson.FeatureCollection, len(s.sources)),
		Layers:   append([]Layer{}, s.layers...),
		Fit:      s.fit,
	}
	for k := range s.controls {
		st.Controls = append(st.Controls, k)
	}
	sort.Slice(st.Controls, func(i, j int) bool { return st.Controls[i] < st.Controls[j] })

	for _, id := range s.order {
		st.Markers.Append(markerFeature(s.markers[id]))
	}
	for _, id := range s.order {
		if p, ok := s.popups[id]; ok {
			st.Popups = append(st.Popups, p)
		}
	}
	for id, fc := range s.sources {
		st.Sources[id] = fc
	}
	return st
}

// Revision is the current change counter.
func (s *Scene) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Watch returns a channel that receives the latest revision after changes.
// Intermediate revisions may be skipped.
func (s *Scene) Watch() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan uint64, 1)
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Scene) bumpLocked() {
	s.revision++
	for _, ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.revision:
		default:
		}
	}
}

func markerFeature(m Marker) *geojson.Feature {
	f := geojson.NewFeature(m.Position)
	f.ID = m.ID
	f.Properties["kind"] = string(m.Kind)
	if name := m.DisplayName(); name != "" {
		f.Properties["title"] = name
	}
	if m.PinID != nil {
		f.Properties["pin_id"] = m.PinID.String()
		f.Properties["type"] = string(m.Type)
		f.Properties["category"] = string(m.Category)
	}
	return f
}
