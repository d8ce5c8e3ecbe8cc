package sessions

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"accizard/internal/api/handlers/http/respond"
	"accizard/internal/authoring"
	"accizard/internal/console"
	"accizard/internal/domain"
	"accizard/internal/filter"
	"accizard/internal/middleware"
	"accizard/pkg/e"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Sessions interface {
	Create() (*console.Session, error)
	Get(id uuid.UUID) (*console.Session, error)
	Remove(id uuid.UUID) error
}

type Handler struct {
	logger    *slog.Logger
	Sessions  Sessions
	heartbeat time.Duration
}

func NewHandler(logger *slog.Logger, sessions Sessions) *Handler {
	return &Handler{
		logger:    logger,
		Sessions:  sessions,
		heartbeat: 15 * time.Second,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	return respond.Logger(h.logger, r)
}

// session resolves {sid}; on failure the response is already written.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*console.Session, bool) {
	raw := chi.URLParam(r, "sid")
	id, err := uuid.Parse(raw)
	if err != nil {
		respond.Error(w, r, h.logger, fmt.Errorf("invalid session id %q: %w", raw, e.ErrInvalidInput))
		return nil, false
	}
	s, err := h.Sessions.Get(id)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return nil, false
	}
	return s, true
}

func (h *Handler) snapshot(w http.ResponseWriter, s *console.Session, code int) {
	respond.JSON(w, h.logger, code, s.Snapshot())
}

// --- lifecycle ---

func (h *Handler) SessionCreate(w http.ResponseWriter, r *http.Request) {
	s, err := h.Sessions.Create()
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.log(r).Info("session created", slog.String("session", s.ID.String()))
	h.snapshot(w, s, http.StatusCreated)
}

func (h *Handler) SessionGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.snapshot(w, s, http.StatusOK)
}

func (h *Handler) SessionDelete(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "sid")
	id, err := uuid.Parse(raw)
	if err != nil {
		respond.Error(w, r, h.logger, fmt.Errorf("invalid session id %q: %w", raw, e.ErrInvalidInput))
		return
	}
	if err := h.Sessions.Remove(id); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- filters ---

type toggleRequest struct {
	Key domain.PinType `json:"key" validate:"required,pin_type"`
}

type selectAllRequest struct {
	Checked bool `json:"checked"`
}

func (h *Handler) FiltersGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, s.Filters())
}

func (h *Handler) FilterToggle(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	group, err := filter.ParseGroup(chi.URLParam(r, "group"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var req toggleRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	snap, err := s.Toggle(group, req.Key)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, snap)
}

func (h *Handler) FilterSelectAll(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	group, err := filter.ParseGroup(chi.URLParam(r, "group"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	var req selectAllRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	snap, err := s.SelectAll(group, req.Checked)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, snap)
}

func (h *Handler) QuerySet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var q console.Query
	if err := middleware.BindJSON(r, &q); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := s.SetQuery(q); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.snapshot(w, s, http.StatusOK)
}

// PinsGet returns the pins currently delivered by the session's live
// subscription.
func (h *Handler) PinsGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	pins := s.Pins()
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{"pins": pins, "total": len(pins)})
}

// --- map ---

func (h *Handler) SceneGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, s.Scene().State())
}

// SceneStream pushes the drawable scene as server-sent events whenever it
// changes. Intermediate revisions may be skipped.
func (h *Handler) SceneStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.Error(w, r, h.logger, fmt.Errorf("streaming unsupported: %w", e.ErrInvalidState))
		return
	}
	l := h.log(r).With(slog.String("session", s.ID.String()))

	changes, stop := s.Scene().Watch()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, "scene", s.Scene().State()); err != nil {
		return
	}
	flusher.Flush()
	l.Info("scene stream opened")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			l.Info("scene stream closed")
			return
		case <-changes:
			s.Touch(time.Now())
			if err := writeEvent(w, "scene", s.Scene().State()); err != nil {
				l.Warn("scene stream write failed", slog.Any("error", err))
				return
			}
		case <-heartbeat.C:
			s.Touch(time.Now())
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func (h *Handler) MapEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var ev console.MapEvent
	if err := middleware.BindJSON(r, &ev); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.log(r).Debug("map event", slog.String("session", s.ID.String()), slog.String("kind", ev.Kind))

	if err := s.HandleMapEvent(ev); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.snapshot(w, s, http.StatusOK)
}

func (h *Handler) MapRetry(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.RetryMap(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.snapshot(w, s, http.StatusOK)
}

func (h *Handler) MapOptions(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var o console.MapOptions
	if err := middleware.BindJSON(r, &o); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if err := s.SetMapOptions(r.Context(), o); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.snapshot(w, s, http.StatusOK)
}

type routeRequest struct {
	From *domain.LatLng `json:"from,omitempty"`
	To   domain.LatLng  `json:"to"`
}

func (h *Handler) RouteShow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req routeRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	route, err := s.ShowRoute(r.Context(), req.From, req.To)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if route == nil {
		respond.JSON(w, h.logger, http.StatusOK, map[string]any{"available": false})
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{"available": true, "route": route})
}

func (h *Handler) RouteClear(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClearRoute()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PopupOpen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	popup, err := s.OpenPopup(r.Context(), chi.URLParam(r, "marker"))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, popup)
}

func (h *Handler) PopupClose(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.ClosePopup(chi.URLParam(r, "marker"))
	w.WriteHeader(http.StatusNoContent)
}

// --- authoring ---

const (
	openCreate = "create"
	openReport = "report"
	openEdit   = "edit"
)

type openRequest struct {
	Mode   string                `json:"mode" validate:"required,oneof=create report edit"`
	Report *domain.ReportPrefill `json:"report,omitempty"`
	PinID  *uuid.UUID            `json:"pin_id,omitempty"`
}

func (h *Handler) AuthoringGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, s.Authoring().Snapshot())
}

func (h *Handler) AuthoringOpen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req openRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	var err error
	switch req.Mode {
	case openCreate:
		err = s.OpenCreate()
	case openReport:
		if req.Report == nil {
			err = fmt.Errorf("report mode needs a report: %w", e.ErrInvalidInput)
			break
		}
		err = s.OpenFromReport(*req.Report)
	case openEdit:
		if req.PinID == nil {
			err = fmt.Errorf("edit mode needs pin_id: %w", e.ErrInvalidInput)
			break
		}
		err = s.OpenEdit(r.Context(), *req.PinID)
	}
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, s.Authoring().Snapshot())
}

func (h *Handler) AuthoringUpdate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch authoring.FormPatch
	if err := middleware.BindJSON(r, &patch); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	snap, err := s.Authoring().Update(r.Context(), patch)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, snap)
}

func (h *Handler) AuthoringSave(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	by := middleware.OperatorFrom(r.Context())

	id, err := s.SaveAuthoring(r.Context(), by)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	h.log(r).Info("pin saved from console", slog.String("session", s.ID.String()), slog.String("id", id.String()))
	respond.JSON(w, h.logger, http.StatusOK, map[string]string{"id": id.String()})
}

func (h *Handler) AuthoringReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Authoring().Reset(); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, s.Authoring().Snapshot())
}

func (h *Handler) AuthoringClose(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Authoring().Close()
	respond.JSON(w, h.logger, http.StatusOK, s.Authoring().Snapshot())
}

// --- delete confirmation ---

func (h *Handler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := s.ConfirmDelete(r.Context(), middleware.OperatorFrom(r.Context()))
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, map[string]string{"deleted": id.String()})
}

func (h *Handler) DeleteCancel(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.CancelDelete()
	w.WriteHeader(http.StatusNoContent)
}

// --- search ---

type searchRequest struct {
	Q string `json:"q"`
}

// SearchInput registers a keystroke; the result arrives on SearchGet once
// the debounce settles.
func (h *Handler) SearchInput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if err := middleware.BindJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	s.Search(req.Q)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) SearchGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respond.JSON(w, h.logger, http.StatusOK, s.SearchResult())
}

func (h *Handler) NoticeDismiss(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.DismissNotice()
	w.WriteHeader(http.StatusNoContent)
}

func writeEvent(w http.ResponseWriter, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
