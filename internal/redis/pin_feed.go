package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"accizard/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// PinFeed carries pin change events between service instances over pub/sub.
type PinFeed struct {
	client  *goredis.Client
	channel string
	logger  *slog.Logger
}

func NewPinFeed(client *goredis.Client, channel string, logger *slog.Logger) *PinFeed {
	return &PinFeed{client: client, channel: channel, logger: logger}
}

func (f *PinFeed) Publish(ctx context.Context, change domain.PinChange) error {
	b, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return f.client.Publish(ctx, f.channel, b).Err()
}

// Subscribe returns a channel of decoded events. The subscription is confirmed
// before returning; cancel closes it and the returned channel.
func (f *PinFeed) Subscribe(ctx context.Context) (<-chan domain.PinChange, func(), error) {
	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("redis.PinFeed.Subscribe: %w", err)
	}

	out := make(chan domain.PinChange, 16)
	done := make(chan struct{})
	msgs := ps.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change domain.PinChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					f.logger.Warn("bad pin change payload", slog.String("channel", f.channel), slog.Any("error", err))
					continue
				}
				select {
				case out <- change:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := ps.Close(); err != nil {
				f.logger.Warn("pubsub close failed", slog.Any("error", err))
			}
		})
	}
	return out, cancel, nil
}
