package system

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"accizard/internal/api/handlers/http/respond"
)

//go:generate mockgen -source=health.go -destination=mocks/mock.go
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	logger  *slog.Logger
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHandler takes the backing services to probe by name; nil entries are
// skipped.
func NewHandler(logger *slog.Logger, checks map[string]Pinger) *Handler {
	live := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			live[name] = p
		}
	}
	return &Handler{logger: logger, checks: live, timeout: 2 * time.Second}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// SystemHealth answers 200 when every dependency answers a ping and 503
// otherwise.
func (h *Handler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			respond.Logger(h.logger, r).Warn("health check failed", slog.String("check", name), slog.Any("error", err))
			resp.Status = "degraded"
			resp.Checks[name] = err.Error()
			continue
		}
		resp.Checks[name] = "ok"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respond.JSON(w, h.logger, code, resp)
}
