// Package authoring coordinates the create and edit flows of a pin: map
// click, form edits, validation and persistence.
package authoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"accizard/internal/domain"
	"accizard/pkg/e"
	"accizard/pkg/validator"

	"github.com/google/uuid"
)

type State string

const (
	StateIdle             State = "idle"
	StateAwaitingMapClick State = "awaiting_map_click"
	StateEditing          State = "editing"
	StateSaving           State = "saving"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

//go:generate mockgen -source=controller.go -destination=mocks/mock.go
type PinWriter interface {
	Create(ctx context.Context, data domain.CreatePinData, by domain.Operator) (uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.UpdatePinData, by domain.Operator) error
}

type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) string
}

// Form is the pin form as the operator sees it.
type Form struct {
	Type         domain.PinType `json:"type"`
	Title        string         `json:"title"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
	LocationName string         `json:"location_name"`
	ReportID     *string        `json:"report_id,omitempty"`
}

func (f Form) position() (domain.LatLng, bool) {
	if f.Latitude == nil || f.Longitude == nil {
		return domain.LatLng{}, false
	}
	return domain.LatLng{Lat: *f.Latitude, Lng: *f.Longitude}, true
}

// FormPatch carries the fields an operator changed. The location name is not
// editable: it always comes from reverse geocoding the form position.
type FormPatch struct {
	Type      *domain.PinType `json:"type,omitempty"`
	Title     *string         `json:"title,omitempty"`
	Latitude  *float64        `json:"latitude,omitempty"`
	Longitude *float64        `json:"longitude,omitempty"`
}

type Snapshot struct {
	State       State             `json:"state"`
	Mode        Mode              `json:"mode,omitempty"`
	Form        Form              `json:"form"`
	PinID       *uuid.UUID        `json:"pin_id,omitempty"`
	TypeLocked  bool              `json:"type_locked"`
	Error       string            `json:"error,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

// Open reports whether the authoring modal is shown.
func (s Snapshot) Open() bool {
	return s.State != StateIdle
}

// Position is the form coordinates when both are set.
func (s Snapshot) Position() (domain.LatLng, bool) {
	return s.Form.position()
}

// Controller is the authoring state machine. Idle -> AwaitingMapClick ->
// Editing -> Saving -> Idle, or back to Editing when the save fails.
type Controller struct {
	store    PinWriter
	geo      Geocoder
	logger   *slog.Logger
	onChange func(Snapshot)

	mu          sync.Mutex
	state       State
	mode        Mode
	form        Form
	pinID       *uuid.UUID
	typeLocked  bool
	lastErr     error
	fieldErrors map[string]string
	// gen changes whenever the flow is opened, reset or closed; results of
	// calls started under an older generation are dropped.
	gen   uint64
	click uint64
}

// NewController builds a controller. onChange, when set, is called with the
// new snapshot after every transition, outside the controller lock.
func NewController(store PinWriter, geo Geocoder, logger *slog.Logger, onChange func(Snapshot)) *Controller {
	return &Controller{
		store:    store,
		geo:      geo,
		logger:   logger,
		onChange: onChange,
		state:    StateIdle,
	}
}

// OpenCreate starts a new pin with an empty form and waits for a map click.
func (c *Controller) OpenCreate() error {
	c.mu.Lock()
	if c.state == StateSaving {
		c.mu.Unlock()
		return fmt.Errorf("authoring.OpenCreate: %w: save in progress", e.ErrInvalidState)
	}
	c.startLocked(ModeCreate)
	c.state = StateAwaitingMapClick
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	return nil
}

// OpenFromReport starts a new pin prefilled from an incident report. Map click
// capture is skipped when the report carries coordinates, and the type is
// locked to the report's.
func (c *Controller) OpenFromReport(prefill domain.ReportPrefill) error {
	const op = "authoring.OpenFromReport"

	if err := validator.Validate(prefill); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.mu.Lock()
	if c.state == StateSaving {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w: save in progress", op, e.ErrInvalidState)
	}
	c.startLocked(ModeCreate)

	reportID := prefill.ReportID
	c.form = Form{
		Type:         prefill.Type,
		Title:        prefill.Title,
		Latitude:     copyFloat(prefill.Latitude),
		Longitude:    copyFloat(prefill.Longitude),
		LocationName: prefill.LocationName,
		ReportID:     &reportID,
	}
	c.typeLocked = true
	if prefill.HasCoordinates() {
		c.state = StateEditing
	} else {
		c.state = StateAwaitingMapClick
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug("authoring opened from report",
		slog.String("report_id", prefill.ReportID),
		slog.String("state", string(snap.State)),
	)
	c.changed(snap)
	return nil
}

// OpenEdit loads an existing pin into the form.
func (c *Controller) OpenEdit(pin domain.Pin) error {
	c.mu.Lock()
	if c.state == StateSaving {
		c.mu.Unlock()
		return fmt.Errorf("authoring.OpenEdit: %w: save in progress", e.ErrInvalidState)
	}
	c.startLocked(ModeEdit)

	id := pin.ID
	lat, lng := pin.Latitude, pin.Longitude
	c.pinID = &id
	c.form = Form{
		Type:         pin.Type,
		Title:        pin.Title,
		Latitude:     &lat,
		Longitude:    &lng,
		LocationName: pin.LocationName,
	}
	if pin.HasReport() {
		reportID := *pin.ReportID
		c.form.ReportID = &reportID
		c.typeLocked = true
	}
	c.state = StateEditing
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	return nil
}

// HandleMapClick captures the clicked position into the open form and fills
// the location name by reverse geocoding. A click while no flow is waiting
// for one is refused.
func (c *Controller) HandleMapClick(ctx context.Context, pos domain.LatLng) error {
	const op = "authoring.HandleMapClick"

	c.mu.Lock()
	if c.state != StateAwaitingMapClick && c.state != StateEditing {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%s: %w: %s", op, e.ErrInvalidState, st)
	}
	c.click++
	gen, click := c.gen, c.click
	c.mu.Unlock()

	label := c.geo.ReverseGeocode(ctx, pos.Lat, pos.Lng)

	c.mu.Lock()
	if c.gen != gen || c.click != click {
		c.mu.Unlock()
		c.logger.Debug("superseded map click dropped", slog.Float64("lat", pos.Lat), slog.Float64("lng", pos.Lng))
		return nil
	}
	if c.state != StateAwaitingMapClick && c.state != StateEditing {
		st := c.state
		c.mu.Unlock()
		return fmt.Errorf("%s: %w: %s", op, e.ErrInvalidState, st)
	}
	lat, lng := pos.Lat, pos.Lng
	c.form.Latitude = &lat
	c.form.Longitude = &lng
	c.form.LocationName = label
	c.state = StateEditing
	delete(c.fieldErrors, "latitude")
	delete(c.fieldErrors, "longitude")
	delete(c.fieldErrors, "locationname")
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	return nil
}

// Update applies form edits. A type change is ignored while the type is
// locked to a report. A coordinate change is handled like a map click at the
// new position, so the location name is re-derived by reverse geocoding.
func (c *Controller) Update(ctx context.Context, patch FormPatch) (Snapshot, error) {
	const op = "authoring.Update"

	c.mu.Lock()
	if c.state != StateEditing && c.state != StateAwaitingMapClick {
		st := c.state
		c.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%s: %w: %s", op, e.ErrInvalidState, st)
	}

	var (
		pos   domain.LatLng
		moved bool
	)
	if patch.Latitude != nil || patch.Longitude != nil {
		lat, lng := c.form.Latitude, c.form.Longitude
		if patch.Latitude != nil {
			lat = patch.Latitude
		}
		if patch.Longitude != nil {
			lng = patch.Longitude
		}
		fields := make(map[string]string)
		if lat == nil {
			fields["latitude"] = "required"
		} else if *lat < -90 || *lat > 90 {
			fields["latitude"] = "lat"
		}
		if lng == nil {
			fields["longitude"] = "required"
		} else if *lng < -180 || *lng > 180 {
			fields["longitude"] = "lng"
		}
		if len(fields) > 0 {
			c.mu.Unlock()
			return Snapshot{}, fmt.Errorf("%s: %w", op, e.NewValidationError(fields))
		}
		pos, moved = domain.LatLng{Lat: *lat, Lng: *lng}, true
	}

	if patch.Type != nil {
		if c.typeLocked && *patch.Type != c.form.Type {
			c.logger.Debug("type change ignored, type is locked to the report",
				slog.String("requested", string(*patch.Type)),
			)
		} else {
			c.form.Type = *patch.Type
		}
	}
	if patch.Title != nil {
		c.form.Title = *patch.Title
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if moved {
		if err := c.HandleMapClick(ctx, pos); err != nil {
			return Snapshot{}, fmt.Errorf("%s: %w", op, err)
		}
		return c.Snapshot(), nil
	}

	c.changed(snap)
	return snap, nil
}

// Save validates the form and persists it. An invalid form never reaches the
// store. On a store failure the flow returns to Editing with the form intact.
func (c *Controller) Save(ctx context.Context, by domain.Operator) (uuid.UUID, error) {
	const op = "authoring.Save"

	c.mu.Lock()
	if c.state != StateEditing && c.state != StateAwaitingMapClick {
		st := c.state
		c.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%s: %w: %s", op, e.ErrInvalidState, st)
	}

	data := c.createDataLocked()
	if err := validator.Validate(data); err != nil {
		var verr *e.ValidationError
		if errors.As(err, &verr) {
			c.fieldErrors = verr.Fields
		}
		c.lastErr = err
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.changed(snap)
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	mode, pinID, locked := c.mode, c.pinID, c.typeLocked
	c.state = StateSaving
	c.lastErr = nil
	c.fieldErrors = nil
	gen := c.gen
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.changed(snap)

	var (
		id  uuid.UUID
		err error
	)
	switch mode {
	case ModeEdit:
		id = *pinID
		err = c.store.Update(ctx, id, updateData(data, locked), by)
	default:
		id, err = c.store.Create(ctx, data, by)
	}

	c.mu.Lock()
	if c.gen != gen {
		// closed while saving; the write went through or failed on its own
		c.mu.Unlock()
		if err != nil {
			return uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}
		return id, nil
	}
	if err != nil {
		c.state = StateEditing
		c.lastErr = err
		snap = c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Error("pin save failed", slog.String("mode", string(mode)), slog.Any("error", err))
		c.changed(snap)
		return uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	c.resetLocked()
	snap = c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Info("pin saved", slog.String("mode", string(mode)), slog.String("id", id.String()))
	c.changed(snap)
	return id, nil
}

// Reset clears the form and waits for a new map click. Only the create flow
// can be reset.
func (c *Controller) Reset() error {
	c.mu.Lock()
	if c.mode != ModeCreate || (c.state != StateEditing && c.state != StateAwaitingMapClick) {
		st, mode := c.state, c.mode
		c.mu.Unlock()
		return fmt.Errorf("authoring.Reset: %w: %s %s", e.ErrInvalidState, mode, st)
	}
	c.startLocked(ModeCreate)
	c.state = StateAwaitingMapClick
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
	return nil
}

// Close abandons the flow. An in-flight save still completes but no longer
// affects the controller.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateIdle {
		c.mu.Unlock()
		return
	}
	c.resetLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.changed(snap)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) startLocked(mode Mode) {
	c.gen++
	c.mode = mode
	c.form = Form{}
	c.pinID = nil
	c.typeLocked = false
	c.lastErr = nil
	c.fieldErrors = nil
}

func (c *Controller) resetLocked() {
	c.startLocked("")
	c.state = StateIdle
}

func (c *Controller) createDataLocked() domain.CreatePinData {
	return domain.CreatePinData{
		Type:         c.form.Type,
		Title:        strings.TrimSpace(c.form.Title),
		Latitude:     copyFloat(c.form.Latitude),
		Longitude:    copyFloat(c.form.Longitude),
		LocationName: strings.TrimSpace(c.form.LocationName),
		ReportID:     copyString(c.form.ReportID),
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:      c.state,
		Mode:       c.mode,
		TypeLocked: c.typeLocked,
		Form: Form{
			Type:         c.form.Type,
			Title:        c.form.Title,
			Latitude:     copyFloat(c.form.Latitude),
			Longitude:    copyFloat(c.form.Longitude),
			LocationName: c.form.LocationName,
			ReportID:     copyString(c.form.ReportID),
		},
	}
	if c.pinID != nil {
		id := *c.pinID
		s.PinID = &id
	}
	if c.lastErr != nil {
		s.Error = c.lastErr.Error()
	}
	if len(c.fieldErrors) > 0 {
		s.FieldErrors = make(map[string]string, len(c.fieldErrors))
		for k, v := range c.fieldErrors {
			s.FieldErrors[k] = v
		}
	}
	return s
}

func (c *Controller) changed(s Snapshot) {
	if c.onChange != nil {
		c.onChange(s)
	}
}

// updateData turns a validated form into a full patch. A locked type is left
// out so the stored report type is kept.
func updateData(d domain.CreatePinData, typeLocked bool) domain.UpdatePinData {
	title, location := d.Title, d.LocationName
	patch := domain.UpdatePinData{
		Title:        &title,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		LocationName: &location,
	}
	if !typeLocked {
		t := d.Type
		patch.Type = &t
	}
	return patch
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
