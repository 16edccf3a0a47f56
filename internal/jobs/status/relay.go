package status

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

// ChannelPrefix marks bus messages that carry job-state events rather than
// dashboard notifications.
const ChannelPrefix = "job:"

const (
	eventJobState realtime.SSEEvent = "JobState"
	relayTimeout                    = 2 * time.Second
)

// Relay carries events to the brokers of other instances. The Redis bus
// satisfies it.
type Relay interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
}

type Option func(*Broker)

// WithRelay forwards every published event through r, so a stream held open on
// one instance follows a job running on another.
func WithRelay(r Relay) Option {
	return func(b *Broker) { b.relay = r }
}

func (b *Broker) forward(ev jobs.StateEvent) {
	if b.relay == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	msg := realtime.SSEMessage{Channel: ChannelPrefix + ev.JobID, Event: eventJobState, Data: ev}
	if err := b.relay.Publish(ctx, msg); err != nil {
		b.log.Warn("relay job event failed", "job_id", ev.JobID, "version", ev.Version, "error", err)
	}
}

// Deliver hands a relayed event to this instance's subscribers. It reports
// false for bus messages that are not job-state events. Echoes of events
// already published here are dropped by each subscriber's version check.
func (b *Broker) Deliver(msg realtime.SSEMessage) bool {
	if !strings.HasPrefix(msg.Channel, ChannelPrefix) {
		return false
	}
	ev, err := decodeEvent(msg.Data)
	if err != nil || ev.JobID == "" {
		b.log.Warn("dropping bad relayed job event", "channel", msg.Channel, "error", err)
		return true
	}
	b.publishLocal(ev)
	return true
}

func decodeEvent(data any) (jobs.StateEvent, error) {
	var ev jobs.StateEvent
	switch d := data.(type) {
	case jobs.StateEvent:
		return d, nil
	case json.RawMessage:
		err := json.Unmarshal(d, &ev)
		return ev, err
	default:
		raw, err := json.Marshal(d)
		if err != nil {
			return ev, err
		}
		err = json.Unmarshal(raw, &ev)
		return ev, err
	}
}
