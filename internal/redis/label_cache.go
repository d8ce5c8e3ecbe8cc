package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// LabelCache stores reverse-geocoded place labels keyed by a rounded position.
type LabelCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewLabelCache(r *Redis, ttl time.Duration) *LabelCache {
	return &LabelCache{client: r.Client, ttl: ttl}
}

func labelKey(lat, lng float64) string {
	// 5 decimals is about one metre
	return fmt.Sprintf("geocode:rev:%.5f,%.5f", lat, lng)
}

func (c *LabelCache) GetLabel(ctx context.Context, lat, lng float64) (string, bool, error) {
	v, err := c.client.Get(ctx, labelKey(lat, lng)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return v, true, nil
}

func (c *LabelCache) SetLabel(ctx context.Context, lat, lng float64, label string) error {
	return c.client.Set(ctx, labelKey(lat, lng), label, c.ttl).Err()
}
