package geocode

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type labelItem struct {
	value     string
	expiresAt time.Time
}

// MemoryLabelCache is the in-process LabelCache used when Redis is not
// configured.
type MemoryLabelCache struct {
	items map[string]labelItem
	mu    sync.RWMutex
	ttl   time.Duration
	stop  chan struct{}
	once  sync.Once
}

func NewMemoryLabelCache(ttl time.Duration) *MemoryLabelCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &MemoryLabelCache{
		items: make(map[string]labelItem),
		ttl:   ttl,
		stop:  make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func memoryKey(lat, lng float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lng)
}

func (c *MemoryLabelCache) GetLabel(_ context.Context, lat, lng float64) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[memoryKey(lat, lng)]
	if !ok || time.Now().After(item.expiresAt) {
		return "", false, nil
	}
	return item.value, true, nil
}

func (c *MemoryLabelCache) SetLabel(_ context.Context, lat, lng float64, label string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[memoryKey(lat, lng)] = labelItem{value: label, expiresAt: time.Now().Add(c.ttl)}
	return nil
}

// Close stops the cleanup goroutine.
func (c *MemoryLabelCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryLabelCache) cleanup() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for k, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}
