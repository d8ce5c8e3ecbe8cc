package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"accizard/internal/config"
	"accizard/internal/domain"
	"accizard/pkg/e"
)

type ActivitySource interface {
	BRPop(ctx context.Context, timeout time.Duration) (domain.ActivityEvent, error)
}

// ActivitySender drains the activity queue into the external activity-log
// webhook.
type ActivitySender struct {
	logger  *slog.Logger
	cfg     config.ActivityConfig
	queue   ActivitySource
	http    *http.Client
	backoff time.Duration
}

func NewActivitySender(logger *slog.Logger, cfg config.ActivityConfig, q ActivitySource) *ActivitySender {
	return &ActivitySender{
		logger:  logger,
		cfg:     cfg,
		queue:   q,
		http:    &http.Client{Timeout: 5 * time.Second},
		backoff: time.Second,
	}
}

func (s *ActivitySender) Run(ctx context.Context) {
	s.logger.Info("activity sender started", slog.String("url", s.cfg.URL))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("activity sender stopped", slog.String("reason", ctx.Err().Error()))
			return
		default:
		}

		ev, err := s.queue.BRPop(ctx, 5*time.Second)
		if err != nil {
			if errors.Is(err, e.ErrActivityQueueEmpty) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			s.logger.Error("activity BRPop failed", slog.Any("error", err))
			sleepCtx(ctx, 500*time.Millisecond)
			continue
		}

		s.logger.Debug("sending activity",
			slog.String("action", string(ev.Action)),
			slog.String("pin_id", ev.PinID.String()),
		)
		s.Send(ctx, ev)
	}
}

// Send posts one event, retrying up to three times. It reports whether the
// webhook accepted it.
func (s *ActivitySender) Send(ctx context.Context, ev domain.ActivityEvent) bool {
	const maxRetries = 3

	body, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal activity event failed", slog.String("error", err.Error()))
		return false
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			s.logger.Info("stop retries due to context cancel")
			return false
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
		if err != nil {
			s.logger.Error("create activity request failed", slog.String("error", err.Error()))
			return false
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.http.Do(req)
		if err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_ = resp.Body.Close()
			return true
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		reason := "unknown"
		if err != nil {
			reason = err.Error()
		} else if resp != nil {
			reason = resp.Status
		}

		s.logger.Warn("activity webhook failed",
			slog.Int("attempt", attempt),
			slog.String("url", s.cfg.URL),
			slog.String("reason", reason),
		)

		if attempt < maxRetries {
			sleepCtx(ctx, time.Duration(attempt)*s.backoff)
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
