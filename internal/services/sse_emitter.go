package services

import (
	"context"

	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/realtime"
	"github.com/yungbote/illumyn-backend/internal/realtime/bus"
)

// SSEEmitter delivers one dashboard message. Delivery is best effort.
type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

// NewSSEEmitter publishes through b when it is set. Every instance's
// forwarder then broadcasts to its own hub, this one included, so the hub is
// not written directly in that mode.
func NewSSEEmitter(baseLog *logger.Logger, hub *realtime.SSEHub, b bus.Bus) SSEEmitter {
	if b != nil {
		return &busEmitter{bus: b, log: baseLog.With("component", "SSEEmitter")}
	}
	return hubEmitter{hub: hub}
}

type hubEmitter struct{ hub *realtime.SSEHub }

func (e hubEmitter) Emit(_ context.Context, msg realtime.SSEMessage) {
	e.hub.Broadcast(msg)
}

type busEmitter struct {
	bus bus.Bus
	log *logger.Logger
}

func (e *busEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	if err := e.bus.Publish(ctx, msg); err != nil {
		e.log.Warn("SSE bus publish failed", "channel", msg.Channel, "event", msg.Event, "error", err)
	}
}
