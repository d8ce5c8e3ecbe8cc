package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"accizard/internal/api/handlers/http/respond"
	"accizard/internal/domain"
	"accizard/internal/middleware"
	"accizard/pkg/e"

	"github.com/google/uuid"
)

//go:generate mockgen -source=handlers.go -destination=mocks/mock.go
type Pins interface {
	Create(ctx context.Context, data domain.CreatePinData, by domain.Operator) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Pin, error)
	Update(ctx context.Context, id uuid.UUID, patch domain.UpdatePinData, by domain.Operator) error
	Delete(ctx context.Context, id uuid.UUID, by domain.Operator) error
	List(ctx context.Context, filter domain.PinFilter) ([]domain.Pin, error)
	Coordinates(ctx context.Context) ([]domain.HeatPoint, error)
	Subscribe(ctx context.Context, filter domain.PinFilter, onData func([]domain.Pin), onError func(error)) func()
}

type StatsGetter interface {
	GetStats(ctx context.Context, req domain.StatsRequest) (*domain.PinStats, error)
}

type Handler struct {
	logger    *slog.Logger
	Pins      Pins
	Stats     StatsGetter
	heartbeat time.Duration
}

func NewHandler(logger *slog.Logger, pins Pins, stats StatsGetter) *Handler {
	return &Handler{
		logger:    logger,
		Pins:      pins,
		Stats:     stats,
		heartbeat: 15 * time.Second,
	}
}

func (h *Handler) log(r *http.Request) *slog.Logger {
	return respond.Logger(h.logger, r)
}

func (h *Handler) PinCreate(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("PinCreate", slog.String("remote", r.RemoteAddr))

	var req domain.CreatePinData
	if err := middleware.BindJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	by := middleware.OperatorFrom(r.Context())
	id, err := h.Pins.Create(r.Context(), req, by)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	l.Info("pin created", slog.String("id", id.String()), slog.String("operator", by.ID))
	respond.JSON(w, h.logger, http.StatusCreated, map[string]string{"id": id.String()})
}

func (h *Handler) PinList(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("PinList", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	pins, err := h.Pins.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	l.Info("pins listed", slog.Int("count", len(pins)))
	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"pins":  presentPins(pins),
		"total": len(pins),
	})
}

func (h *Handler) PinGet(w http.ResponseWriter, r *http.Request) {
	h.log(r).Debug("PinGet", slog.String("remote", r.RemoteAddr))

	id, err := parseID(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	pin, err := h.Pins.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, presentPin(*pin))
}

func (h *Handler) PinUpdate(w http.ResponseWriter, r *http.Request) {
	h.log(r).Debug("PinUpdate", slog.String("remote", r.RemoteAddr))

	id, err := parseID(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	var req domain.UpdatePinData
	if err := middleware.BindJSON(r, &req); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	if err := h.Pins.Update(r.Context(), id, req, middleware.OperatorFrom(r.Context())); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PinDelete requires confirm=true; pins are never deleted implicitly.
func (h *Handler) PinDelete(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("PinDelete", slog.String("remote", r.RemoteAddr))

	id, err := parseID(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	if confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !confirmed {
		respond.Error(w, r, h.logger, fmt.Errorf("delete needs confirm=true: %w", e.ErrInvalidInput))
		return
	}

	by := middleware.OperatorFrom(r.Context())
	if err := h.Pins.Delete(r.Context(), id, by); err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	l.Info("pin deleted", slog.String("id", id.String()), slog.String("operator", by.ID))
	w.WriteHeader(http.StatusNoContent)
}

// PinHeatmap returns the full unfiltered coordinate set as GeoJSON points.
func (h *Handler) PinHeatmap(w http.ResponseWriter, r *http.Request) {
	h.log(r).Debug("PinHeatmap", slog.String("remote", r.RemoteAddr))

	points, err := h.Pins.Coordinates(r.Context())
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(presentHeatmap(points)); err != nil {
		h.logger.Error("json encode failed", slog.Any("error", err))
	}
}

// PinStream pushes the filtered pin list as server-sent events: once on
// connect, then after every change.
func (h *Handler) PinStream(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)

	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.Error(w, r, h.logger, fmt.Errorf("streaming unsupported: %w", e.ErrInvalidState))
		return
	}

	updates := make(chan []domain.Pin, 1)
	failures := make(chan error, 1)
	unsubscribe := h.Pins.Subscribe(r.Context(), filter,
		func(pins []domain.Pin) {
			select {
			case <-updates:
			default:
			}
			updates <- pins
		},
		func(err error) {
			select {
			case failures <- err:
			default:
			}
		},
	)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	l.Info("pin stream opened", slog.Int("types", len(filter.Types)))

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			l.Info("pin stream closed")
			return
		case pins := <-updates:
			if err := writeEvent(w, "pins", map[string]any{"pins": presentPins(pins), "total": len(pins)}); err != nil {
				l.Warn("pin stream write failed", slog.Any("error", err))
				return
			}
		case err := <-failures:
			if werr := writeEvent(w, "error", map[string]string{"error": err.Error()}); werr != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func (h *Handler) AdminStats(w http.ResponseWriter, r *http.Request) {
	l := h.log(r)
	l.Debug("AdminStats", slog.String("query", r.URL.RawQuery), slog.String("remote", r.RemoteAddr))

	minutes := 0
	if s := r.URL.Query().Get("minutes"); s != "" {
		m, err := strconv.Atoi(s)
		if err != nil {
			respond.Error(w, r, h.logger, fmt.Errorf("minutes %q: %w", s, e.ErrInvalidInput))
			return
		}
		minutes = m
	}

	stats, err := h.Stats.GetStats(r.Context(), domain.StatsRequest{Minutes: minutes})
	if err != nil {
		respond.Error(w, r, h.logger, err)
		return
	}

	l.Info("stats success", slog.Int("minutes", stats.Minutes))
	respond.JSON(w, h.logger, http.StatusOK, stats)
}

// ResponseTime computes the dispatch-to-arrival time of a report from two
// HH:MM clock times.
func (h *Handler) ResponseTime(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := domain.ComputeResponseTime(q.Get("dispatch"), q.Get("arrival"))
	if err != nil {
		respond.Error(w, r, h.logger, fmt.Errorf("%w: %w", e.ErrInvalidInput, err))
		return
	}

	respond.JSON(w, h.logger, http.StatusOK, map[string]any{
		"minutes": int(d.Minutes()),
		"label":   domain.FormatResponseTime(d),
	})
}
