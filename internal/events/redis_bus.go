package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"stylist/internal/entity"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type RedisBus struct {
	rdb     goredis.UniversalClient
	channel string
}

func NewRedisBus(rdb goredis.UniversalClient, channel string) (*RedisBus, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "stylist:job-events"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisBus{rdb: rdb, channel: channel}, nil
}

func (b *RedisBus) Publish(ctx context.Context, event entity.JobEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialised")
	}
	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) StartForwarder(ctx context.Context, onEvent func(entity.JobEvent)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis event bus not initialised")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	// 确认订阅已经建立
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var event entity.JobEvent
				if err := json.Unmarshal([]byte(m.Payload), &event); err != nil {
					logrus.WithError(err).Warn("bad redis job event payload")
					continue
				}
				onEvent(event)
			}
		}
	}()
	return nil
}

// Close is a no-op; the redis client is owned by the caller.
func (b *RedisBus) Close() error {
	return nil
}

var _ Bus = (*RedisBus)(nil)
