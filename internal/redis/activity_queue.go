package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"accizard/internal/domain"
	"accizard/pkg/e"

	"github.com/redis/go-redis/v9"
)

type ActivityQueue struct {
	client *redis.Client
	key    string
}

func NewActivityQueue(client *redis.Client, key string) *ActivityQueue {
	return &ActivityQueue{client: client, key: key}
}

func (q *ActivityQueue) Enqueue(ctx context.Context, event domain.ActivityEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, b).Err()
}

func (q *ActivityQueue) BRPop(ctx context.Context, timeout time.Duration) (domain.ActivityEvent, error) {
	var ev domain.ActivityEvent

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ev, e.ErrActivityQueueEmpty
		}
		return ev, err
	}
	if len(res) < 2 {
		return ev, e.ErrActivityQueueEmpty
	}
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return ev, err
	}
	return ev, nil
}
