package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

const DefaultChannel = "illumyn:sse"

// envelope is the pub/sub wire form. Data stays raw so the forwarder never
// needs to know the payload type.
type envelope struct {
	Channel string            `json:"channel"`
	Event   realtime.SSEEvent `json:"event"`
	Data    json.RawMessage   `json:"data,omitempty"`
	SentAt  time.Time         `json:"sent_at"`
}

type redisBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

// NewRedisBus publishes on channel through rdb. The caller owns rdb and must
// close it; the lease manager shares the same client.
func NewRedisBus(ctx context.Context, baseLog *logger.Logger, rdb goredis.UniversalClient, channel string) (Bus, error) {
	if baseLog == nil || rdb == nil {
		return nil, fmt.Errorf("redis bus: logger and client required")
	}
	if channel = strings.TrimSpace(channel); channel == "" {
		channel = DefaultChannel
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisBus{
		log:     baseLog.With("component", "RedisSSEBus", "channel", channel),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, msg realtime.SSEMessage) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return fmt.Errorf("encode %s data: %w", msg.Event, err)
	}
	raw, err := json.Marshal(envelope{Channel: msg.Channel, Event: msg.Event, Data: data, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes before returning, so nothing published after it
// returns is missed. Delivery continues in the background until ctx ends.
func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error {
	if onMsg == nil {
		return fmt.Errorf("redis bus: onMsg required")
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}
	go b.forward(ctx, sub, onMsg)
	return nil
}

func (b *redisBus) forward(ctx context.Context, sub *goredis.PubSub, onMsg func(m realtime.SSEMessage)) {
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			msg, err := decode(m.Payload)
			if err != nil {
				b.log.Warn("Dropping bad SSE bus payload", "error", err)
				continue
			}
			onMsg(msg)
		}
	}
}

func decode(payload string) (realtime.SSEMessage, error) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return realtime.SSEMessage{}, err
	}
	if env.Channel == "" {
		return realtime.SSEMessage{}, fmt.Errorf("payload without channel")
	}
	msg := realtime.SSEMessage{Channel: env.Channel, Event: env.Event}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		msg.Data = env.Data
	}
	return msg, nil
}

func (b *redisBus) Close() error { return nil }
