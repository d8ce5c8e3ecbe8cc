// Package events carries map interaction events from the renderer to the
// authoring and CRUD layers.
package events

import (
	"sync"
	"time"

	"accizard/internal/domain"

	"github.com/google/uuid"
)

type Kind string

const (
	EventLoaded     Kind = "loaded"
	EventMapError   Kind = "map_error"
	EventMapClick   Kind = "map_click"
	EventGeolocated Kind = "geolocated"
	EventPopupOpen  Kind = "popup_open"
	EventEditPin    Kind = "edit_pin"
	EventDeletePin  Kind = "delete_pin"
)

type Event struct {
	Kind     Kind           `json:"kind"`
	Position *domain.LatLng `json:"position,omitempty"`
	PinID    uuid.UUID      `json:"pin_id,omitempty"`
	MarkerID string         `json:"marker_id,omitempty"`
	Error    string         `json:"error,omitempty"`
	At       time.Time      `json:"at"`
}

type Handler func(Event)

// Bus delivers events synchronously, in subscription order, on the
// publisher's goroutine. Handlers may publish and subscribe.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]entry
	next     int
}

type entry struct {
	id int
	h  Handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]entry)}
}

func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	b.handlers[kind] = append(b.handlers[kind], entry{id: id, h: h})

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.handlers[kind]
			for i, en := range list {
				if en.id == id {
					b.handlers[kind] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	list := append([]entry(nil), b.handlers[ev.Kind]...)
	b.mu.RUnlock()

	for _, en := range list {
		en.h(ev)
	}
}
