package system_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"accizard/internal/api/handlers/http/system"
	mock_system "accizard/internal/api/handlers/http/system/mocks"

	"github.com/golang/mock/gomock"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSystemHealth_AllOK(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mock_system.NewMockPinger(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)

	h := system.NewHandler(newTestLogger(), map[string]system.Pinger{"postgres": pg, "redis": nil})

	rr := httptest.NewRecorder()
	h.SystemHealth(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected %d got %d", http.StatusOK, rr.Code)
	}
	var got struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != "ok" || got.Checks["postgres"] != "ok" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
	if _, ok := got.Checks["redis"]; ok {
		t.Fatal("nil checker should be skipped")
	}
}

func TestSystemHealth_Degraded(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	pg := mock_system.NewMockPinger(ctrl)
	rd := mock_system.NewMockPinger(ctrl)
	pg.EXPECT().Ping(gomock.Any()).Return(nil)
	rd.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	h := system.NewHandler(newTestLogger(), map[string]system.Pinger{"postgres": pg, "redis": rd})

	rr := httptest.NewRecorder()
	h.SystemHealth(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected %d got %d", http.StatusServiceUnavailable, rr.Code)
	}
}
