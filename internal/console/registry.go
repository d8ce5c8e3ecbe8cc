package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"accizard/pkg/e"

	"github.com/google/uuid"
)

// Registry owns the live console sessions.
type Registry struct {
	base    context.Context
	store   PinStore
	geo     Geocoder
	opts    Options
	idleTTL time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(ctx context.Context, store PinStore, geo Geocoder, opts Options, idleTTL time.Duration, logger *slog.Logger) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		base:     ctx,
		store:    store,
		geo:      geo,
		opts:     opts,
		idleTTL:  idleTTL,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Create starts a new session. Sessions outlive the request that opened
// them, so they run under the registry's context.
func (r *Registry) Create() (*Session, error) {
	s := NewSession(r.base, r.store, r.geo, r.opts, r.logger)
	if err := s.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("console.Registry.Create: %w", err)
	}
	s.Touch(r.now())

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("console session opened", slog.String("session", s.ID.String()), slog.Int("live", n))
	return s, nil
}

// Get returns a live session and marks it active.
func (r *Registry) Get(id uuid.UUID) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("console.Registry.Get: session %s: %w", id, e.ErrNotFound)
	}
	s.Touch(r.now())
	return s, nil
}

func (r *Registry) Remove(id uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("console.Registry.Remove: session %s: %w", id, e.ErrNotFound)
	}
	s.Close()
	return nil
}

// Sweep closes sessions idle for longer than the idle TTL.
func (r *Registry) Sweep(_ context.Context) (int, error) {
	cutoff := r.now().Add(-r.idleTTL)

	var stale []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.LastSeen().Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		r.logger.Info("idle console sessions closed", slog.Int("count", len(stale)))
	}
	return len(stale), nil
}

// RefreshHeatmaps reloads the heatmap of every session that shows one built
// from coordinates older than its latest pin change.
func (r *Registry) RefreshHeatmaps(ctx context.Context) (int, error) {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	var (
		n    int
		errs []error
	)
	for _, s := range all {
		reloaded, err := s.RefreshHeatmap(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if reloaded {
			n++
		}
	}
	return n, errors.Join(errs...)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}
