// Package respond holds the JSON and error helpers shared by the HTTP
// handlers.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"accizard/pkg/e"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Logger returns base annotated with the chi request id.
func Logger(base *slog.Logger, r *http.Request) *slog.Logger {
	reqID := chimw.GetReqID(r.Context())
	if reqID == "" {
		return base
	}
	return base.With(slog.String("request_id", reqID))
}

func JSON(w http.ResponseWriter, logger *slog.Logger, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("json encode failed", slog.Any("error", err))
	}
}

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Error maps an error kind to its status and writes {"error": ...}.
func Error(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	l := Logger(logger, r)
	status := Status(err)

	attrs := []any{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Any("error", err),
	}
	if status >= http.StatusInternalServerError {
		l.Error("handler error", attrs...)
	} else {
		l.Warn("request rejected", attrs...)
	}

	body := errorBody{Error: message(err, status)}
	var verr *e.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	JSON(w, logger, status, body)
}

func Status(err error) int {
	switch {
	case errors.Is(err, e.ErrValidation), errors.Is(err, e.ErrInvalidInput), errors.Is(err, e.ErrInvalidCoordinates):
		return http.StatusBadRequest
	case errors.Is(err, e.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, e.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, e.ErrConflict), errors.Is(err, e.ErrLimitExceeded), errors.Is(err, e.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, e.ErrDeadline):
		return http.StatusGatewayTimeout
	case errors.Is(err, e.ErrCanceled):
		return 499
	case errors.Is(err, e.ErrPersistence), errors.Is(err, e.ErrGeocodeUnavailable), errors.Is(err, e.ErrMapInit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func message(err error, status int) string {
	switch {
	case errors.Is(err, e.ErrValidation):
		return e.ErrValidation.Error()
	case errors.Is(err, e.ErrLimitExceeded):
		return "at most 10 pin types can be selected"
	case status == http.StatusInternalServerError:
		return "internal error"
	case errors.Is(err, e.ErrPersistence):
		return "pin store unavailable, try again"
	default:
		return err.Error()
	}
}
