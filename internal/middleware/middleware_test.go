package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"accizard/internal/domain"
	"accizard/internal/middleware"
	"accizard/pkg/e"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	h := middleware.APIKeyMiddleware("s3cret")(ok)

	cases := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusUnauthorized},
		{"s3cret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/pins", nil)
		if tc.key != "" {
			req.Header.Set(middleware.HeaderAPIKey, tc.key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tc.want {
			t.Fatalf("key %q: expected %d got %d", tc.key, tc.want, rr.Code)
		}
	}
}

func TestOperator(t *testing.T) {
	t.Parallel()

	var got domain.Operator
	h := middleware.Operator(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = middleware.OperatorFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderOperatorID, "op-9")
	req.Header.Set(middleware.HeaderOperatorName, "Nine")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got.ID != "op-9" || got.Name != "Nine" {
		t.Fatalf("unexpected operator %+v", got)
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if got.ID != "anonymous" {
		t.Fatalf("expected anonymous operator, got %+v", got)
	}
}

func TestLimit(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := middleware.Limit(ctx, 1, 2, time.Minute, newTestLogger())(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.HeaderOperatorID, "op-1")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.HeaderOperatorID, "op-2")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("other operator must have its own budget, got %d", rr.Code)
	}
}

func TestBindJSON(t *testing.T) {
	t.Parallel()

	var dst domain.StatsRequest
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"minutes":30}`))
	if err := middleware.BindJSON(req, &dst); err != nil || dst.Minutes != 30 {
		t.Fatalf("BindJSON: %v %+v", err, dst)
	}

	for _, body := range []string{`{bad`, `{"minutes":30}{}`, `{"minutes":30,"extra":1}`} {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		if err := middleware.BindJSON(req, &domain.StatsRequest{}); !errors.Is(err, e.ErrInvalidInput) {
			t.Fatalf("body %q: expected ErrInvalidInput, got %v", body, err)
		}
	}

	req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"minutes":99999}`))
	if err := middleware.BindJSON(req, &domain.StatsRequest{}); !errors.Is(err, e.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
