// Package memory is an in-process pin store and change feed used when
// STORE_DRIVER=memory and in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"accizard/internal/domain"
	"accizard/pkg/e"

	"github.com/google/uuid"
)

type PinStore struct {
	mu   sync.RWMutex
	pins map[uuid.UUID]domain.Pin
	now  func() time.Time
}

func NewPinStore() *PinStore {
	return &PinStore{
		pins: make(map[uuid.UUID]domain.Pin),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *PinStore) Create(_ context.Context, pin *domain.Pin) error {
	const op = "memory.Pin.Create"

	if pin.Title == "" || pin.LocationName == "" {
		return fmt.Errorf("%s: %w", op, e.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pin.ID == uuid.Nil {
		pin.ID = uuid.New()
	}
	if _, exists := s.pins[pin.ID]; exists {
		return fmt.Errorf("%s: %w", op, e.ErrConflict)
	}
	now := s.now()
	if pin.CreatedAt.IsZero() {
		pin.CreatedAt = now
	}
	pin.UpdatedAt = now
	pin.Normalize()

	s.pins[pin.ID] = clonePin(*pin)
	return nil
}

func (s *PinStore) Get(_ context.Context, id uuid.UUID) (*domain.Pin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pin, ok := s.pins[id]
	if !ok {
		return nil, fmt.Errorf("memory.Pin.Get: %w", e.ErrNotFound)
	}
	out := clonePin(pin)
	return &out, nil
}

func (s *PinStore) Update(_ context.Context, pin *domain.Pin) error {
	const op = "memory.Pin.Update"

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.pins[pin.ID]
	if !ok {
		return fmt.Errorf("%s: %w", op, e.ErrNotFound)
	}
	pin.UpdatedAt = s.now()
	pin.Normalize()

	cur.Type = pin.Type
	cur.Category = pin.Category
	cur.Title = pin.Title
	cur.Latitude = pin.Latitude
	cur.Longitude = pin.Longitude
	cur.LocationName = pin.LocationName
	cur.UpdatedAt = pin.UpdatedAt
	s.pins[pin.ID] = cur
	return nil
}

func (s *PinStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pins[id]; !ok {
		return fmt.Errorf("memory.Pin.Delete: %w", e.ErrNotFound)
	}
	delete(s.pins, id)
	return nil
}

func (s *PinStore) Query(ctx context.Context, q domain.PinQuery) ([]domain.Pin, error) {
	if err := ctx.Err(); err != nil {
		return nil, e.WrapError(ctx, "memory.Pin.Query", err)
	}

	s.mu.RLock()
	out := make([]domain.Pin, 0, len(s.pins))
	for _, pin := range s.pins {
		if q.Matches(pin) {
			out = append(out, clonePin(pin))
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *PinStore) Coordinates(_ context.Context) ([]domain.HeatPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.HeatPoint, 0, len(s.pins))
	for _, pin := range s.pins {
		out = append(out, domain.HeatPoint{Lat: pin.Latitude, Lng: pin.Longitude, Weight: 1})
	}
	return out, nil
}

func (s *PinStore) CountByType(_ context.Context, since time.Time) (map[domain.PinType]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[domain.PinType]int64)
	for _, pin := range s.pins {
		if !pin.CreatedAt.Before(since) {
			counts[pin.Type]++
		}
	}
	return counts, nil
}

func clonePin(p domain.Pin) domain.Pin {
	if p.ReportID != nil {
		id := *p.ReportID
		p.ReportID = &id
	}
	return p
}
