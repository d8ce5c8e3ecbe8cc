package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"accizard/internal/domain"
	"accizard/pkg/e"
)

// Subscribe streams the pins matching filter. onData receives the initial
// result and a fresh result after every change on the feed; bursts of changes
// are coalesced into one re-query. The returned function cancels the
// subscription and waits for its goroutine to exit, so it must not be called
// from inside onData or onError.
func (s *PinStore) Subscribe(ctx context.Context, filter domain.PinFilter, onData func([]domain.Pin), onError func(error)) func() {
	const op = "service.PinStore.Subscribe"

	subCtx, cancel := context.WithCancel(ctx)
	changes, stop, err := s.feed.Subscribe(subCtx)
	if err != nil {
		cancel()
		s.logger.Error("feed subscribe failed", slog.String("op", op), slog.Any("error", err))
		if onError != nil {
			onError(storeErr(op, err))
		}
		return func() {}
	}

	var active atomic.Bool
	active.Store(true)
	done := make(chan struct{})
	s.live.Add(1)

	deliver := func() {
		pins, err := s.List(subCtx, filter)
		if subCtx.Err() != nil || !active.Load() {
			return
		}
		if err != nil {
			if errors.Is(err, e.ErrPermissionDenied) {
				s.logger.Warn("subscription query denied, delivering empty result",
					slog.String("op", op),
					slog.Any("error", err),
				)
				onData([]domain.Pin{})
				return
			}
			if onError != nil {
				onError(err)
			}
			return
		}
		onData(pins)
	}

	go func() {
		defer close(done)
		defer s.live.Add(-1)
		defer stop()

		deliver()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if !drain(changes) {
					return
				}
				deliver()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			active.Store(false)
			cancel()
			<-done
		})
	}
}

// LiveSubscriptions reports how many subscriptions are currently running.
func (s *PinStore) LiveSubscriptions() int64 {
	return s.live.Load()
}

// drain empties the pending events; false means the feed closed.
func drain(ch <-chan domain.PinChange) bool {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return false
			}
		default:
			return true
		}
	}
}

// Watcher holds the single live subscription of one view and swaps it when
// the filter changes.
type Watcher struct {
	store   *PinStore
	ctx     context.Context
	onData  func([]domain.Pin)
	onError func(error)

	mu     sync.Mutex
	filter domain.PinFilter
	unsub  func()
	closed bool
}

func (s *PinStore) NewWatcher(ctx context.Context, onData func([]domain.Pin), onError func(error)) *Watcher {
	return &Watcher{store: s, ctx: ctx, onData: onData, onError: onError}
}

// SetFilter disposes the previous subscription before opening the new one.
// An equal filter keeps the current subscription.
func (w *Watcher) SetFilter(filter domain.PinFilter) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if w.unsub != nil && w.filter.Equal(filter) {
		return
	}
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
	}
	w.filter = filter
	w.unsub = w.store.Subscribe(w.ctx, filter, w.onData, w.onError)
}

// Filter returns the filter of the live subscription.
func (w *Watcher) Filter() (domain.PinFilter, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.filter, w.unsub != nil
}

func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closed = true
	if w.unsub != nil {
		w.unsub()
		w.unsub = nil
	}
}
