package memory

import (
	"context"
	"sync"

	"accizard/internal/domain"
)

// Feed fans change events out to every live subscriber. A slow subscriber
// drops events rather than blocking publishers; since subscribers re-query on
// every event a dropped one is covered by the next.
type Feed struct {
	mu   sync.Mutex
	subs map[int]chan domain.PinChange
	next int
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan domain.PinChange)}
}

func (f *Feed) Publish(_ context.Context, change domain.PinChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case ch <- change:
		default:
		}
	}
	return nil
}

func (f *Feed) Subscribe(_ context.Context) (<-chan domain.PinChange, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan domain.PinChange, 16)
	f.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			close(ch)
			f.mu.Unlock()
		})
	}
	return ch, cancel, nil
}

// Subscribers reports how many subscriptions are live.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
