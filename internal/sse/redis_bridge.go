package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/domainscout/core/internal/platform/logger"
)

// RedisBridge republishes every Hub.Publish call on a Redis pub/sub channel
// and forwards whatever other processes publish back into this Hub, so a
// job's batches running on one process still reach a /stream client
// connected to another (SPEC_FULL.md §6). Optional: nil when REDIS_URL is
// unset, in which case the Hub only fans out within its own process.
type RedisBridge struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	hub     *Hub
}

// NewRedisBridge dials redisURL and pings it; a failure here is Fatal at
// startup (the operator asked for cross-process fan-out and it's broken),
// not something the caller should silently downgrade from.
func NewRedisBridge(log *logger.Logger, redisURL, channel string, hub *Hub) (*RedisBridge, error) {
	if channel == "" {
		channel = "domainscout:sse"
	}
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("sse: parse REDIS_URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("sse: redis ping: %w", err)
	}

	return &RedisBridge{
		log:     log.With("component", "sse.RedisBridge"),
		rdb:     rdb,
		channel: channel,
		hub:     hub,
	}, nil
}

// PublishRemote is called by Hub.Publish in addition to the in-process
// fan-out, so every process sharing this Redis channel sees the update.
func (b *RedisBridge) PublishRemote(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes to the shared channel and replays every
// message it receives into the local Hub's subscriber set, so clients
// connected to this process see updates produced by batches running
// elsewhere.
func (b *RedisBridge) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("sse: redis subscribe: %w", err)
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
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.Warn("bad redis sse payload", "error", err.Error())
					continue
				}
				b.hub.localBroadcast(msg)
			}
		}
	}()
	return nil
}

func (b *RedisBridge) Close() error {
	if b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
