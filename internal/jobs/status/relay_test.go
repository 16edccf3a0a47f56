package status

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

// wireRelay keeps what a bus would carry: the data re-encoded as raw JSON.
type wireRelay struct {
	mu   sync.Mutex
	msgs []realtime.SSEMessage
}

func (r *wireRelay) Publish(_ context.Context, msg realtime.SSEMessage) error {
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, realtime.SSEMessage{Channel: msg.Channel, Event: msg.Event, Data: json.RawMessage(raw)})
	return nil
}

func (r *wireRelay) drain() []realtime.SSEMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

func TestRelayedEventsReachOtherInstance(t *testing.T) {
	relay := &wireRelay{}
	running := NewBroker(logger.Nop(), WithRelay(relay))
	watching := NewBroker(logger.Nop(), WithRelay(relay))

	s := watching.Subscribe(context.Background(), ev(1, jobs.StateQueued))
	running.Publish(ev(2, jobs.StateRunning))
	running.Publish(ev(3, jobs.StateSucceeded))

	for _, m := range relay.drain() {
		if !watching.Deliver(m) {
			t.Fatalf("job message on %q not recognised", m.Channel)
		}
		// The publishing instance sees its own echo; it must be harmless.
		running.Deliver(m)
	}
	got := collect(t, s)
	if len(got) != 3 || got[2].State != jobs.StateSucceeded || got[2].Version != 3 {
		t.Fatalf("watching instance got %v", got)
	}
}

func TestDeliverIgnoresDashboardMessages(t *testing.T) {
	b := NewBroker(logger.Nop())
	if b.Deliver(realtime.SSEMessage{Channel: "user-1", Event: realtime.SSEEventJobDone}) {
		t.Fatalf("dashboard message must be left to the hub")
	}
	if !b.Deliver(realtime.SSEMessage{Channel: ChannelPrefix + "job", Data: json.RawMessage(`{`)}) {
		t.Fatalf("malformed job message should still be claimed")
	}
}
