package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// EventBus fans session-change events out to every subscriber, across
// instances when backed by Redis.
type EventBus interface {
	Publish(ctx context.Context, evt AuthEvent) error
	Subscribe(ctx context.Context, handler func(AuthEvent)) error
	Close() error
}

// MemoryBus delivers events to subscribers of this process only
type MemoryBus struct {
	mu       sync.RWMutex
	handlers []func(AuthEvent)
}

// NewMemoryBus creates an in-process event bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

// Publish calls every subscriber synchronously
func (b *MemoryBus) Publish(ctx context.Context, evt AuthEvent) error {
	b.mu.RLock()
	handlers := append([]func(AuthEvent){}, b.handlers...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
	return nil
}

// Subscribe registers handler for all future events
func (b *MemoryBus) Subscribe(ctx context.Context, handler func(AuthEvent)) error {
	if handler == nil {
		return fmt.Errorf("handler required")
	}
	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
	return nil
}

// Close is a no-op
func (b *MemoryBus) Close() error { return nil }

// RedisBus publishes events on a Redis pub/sub channel
type RedisBus struct {
	rdb     *goredis.Client
	channel string
}

// NewRedisBus connects to addr and verifies the connection
func NewRedisBus(ctx context.Context, addr, channel string) (*RedisBus, error) {
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	if channel == "" {
		channel = "tnepic-auth-events"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisBus{rdb: rdb, channel: channel}, nil
}

// Publish sends evt to every instance subscribed to the channel
func (b *RedisBus) Publish(ctx context.Context, evt AuthEvent) error {
	raw, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe forwards channel messages to handler until ctx is cancelled
func (b *RedisBus) Subscribe(ctx context.Context, handler func(AuthEvent)) error {
	if handler == nil {
		return fmt.Errorf("handler required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
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
				var evt AuthEvent
				if err := json.Unmarshal([]byte(m.Payload), &evt); err != nil {
					log.Warn().Err(err).Msg("Bad auth event payload")
					continue
				}
				handler(evt)
			}
		}
	}()

	return nil
}

// Close closes the Redis client
func (b *RedisBus) Close() error {
	return b.rdb.Close()
}
