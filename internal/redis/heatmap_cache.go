package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accizard/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

const heatmapKey = "pins:heatmap"

// HeatmapCache holds the full, unfiltered pin coordinate set under a single
// key shared by every session and the heatmap endpoint. Any pin mutation
// changes that set, so the whole key is dropped on Invalidate; there is no
// per-pin or per-filter entry.
type HeatmapCache struct {
	client *goredis.Client
	key    string
}

func NewHeatmapCache(r *Redis) *HeatmapCache {
	return &HeatmapCache{
		client: r.Client,
		key:    heatmapKey,
	}
}

// heatTuple is one point stored as [lng, lat, weight], the order the heatmap
// source uses.
type heatTuple [3]float64

// GetPoints returns nil, nil on a cache miss. An empty set that was cached is
// returned as a non-nil empty slice.
func (c *HeatmapCache) GetPoints(ctx context.Context) ([]domain.HeatPoint, error) {
	const op = "redis.HeatmapCache.GetPoints"

	data, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var tuples []heatTuple
	if err := json.Unmarshal(data, &tuples); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	points := make([]domain.HeatPoint, len(tuples))
	for i, t := range tuples {
		points[i] = domain.HeatPoint{Lng: t[0], Lat: t[1], Weight: t[2]}
	}
	return points, nil
}

// SetPoints replaces the cached set. The ttl bounds staleness when a mutation
// fails to invalidate.
func (c *HeatmapCache) SetPoints(ctx context.Context, points []domain.HeatPoint, ttl time.Duration) error {
	const op = "redis.HeatmapCache.SetPoints"

	tuples := make([]heatTuple, len(points))
	for i, p := range points {
		tuples[i] = heatTuple{p.Lng, p.Lat, p.Weight}
	}
	b, err := json.Marshal(tuples)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", op, err)
	}
	if err := c.client.Set(ctx, c.key, b, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate drops the whole coordinate set after a pin was created, moved or
// deleted. The next read falls through to the repository.
func (c *HeatmapCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis.HeatmapCache.Invalidate: %w", err)
	}
	return nil
}
