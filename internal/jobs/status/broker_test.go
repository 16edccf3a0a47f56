package status

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

func ev(version int64, state jobs.State) jobs.StateEvent {
	return jobs.StateEvent{JobID: "job", State: state, Version: version}
}

func collect(t *testing.T, s *Subscription) []jobs.StateEvent {
	t.Helper()
	var out []jobs.StateEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-s.C:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("subscription did not close; got %v", out)
		}
	}
}

func TestSubscribeReplaysThenStreamsUntilTerminal(t *testing.T) {
	b := NewBroker(logger.Nop())
	s := b.Subscribe(context.Background(), ev(1, jobs.StateQueued))

	b.Publish(ev(2, jobs.StateRunning))
	b.Publish(ev(2, jobs.StateRunning)) // duplicate
	b.Publish(ev(4, jobs.StateSucceeded))
	b.Publish(ev(5, jobs.StateQueued)) // after terminal: never delivered

	got := collect(t, s)
	want := []jobs.State{jobs.StateQueued, jobs.StateRunning, jobs.StateSucceeded}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i, st := range want {
		if got[i].State != st {
			t.Fatalf("event %d = %s, want %s", i, got[i].State, st)
		}
	}
	if n := b.Subscribers("job"); n != 0 {
		t.Fatalf("subscribers left: %d", n)
	}
}

func TestSlowSubscriberNeverBlocksPublisher(t *testing.T) {
	b := NewBroker(logger.Nop())
	slow := b.Subscribe(context.Background(), ev(1, jobs.StateQueued))
	fast := b.Subscribe(context.Background(), ev(1, jobs.StateQueued))

	done := make(chan struct{})
	go func() {
		for v := int64(2); v < 500; v++ {
			b.Publish(ev(v, jobs.StateRunning))
		}
		b.Publish(ev(500, jobs.StateFailed))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher blocked by unread subscribers")
	}

	if got := collect(t, fast); got[len(got)-1].State != jobs.StateFailed || len(got) != 500 {
		t.Fatalf("fast subscriber got %d events, last %v", len(got), got[len(got)-1])
	}
	if got := collect(t, slow); got[len(got)-1].Version != 500 {
		t.Fatalf("slow subscriber lost the terminal event")
	}
}

func TestSubscribeToTerminalJobReplaysOnce(t *testing.T) {
	b := NewBroker(logger.Nop())
	got := collect(t, b.Subscribe(context.Background(), ev(7, jobs.StateCancelled)))
	if len(got) != 1 || got[0].State != jobs.StateCancelled {
		t.Fatalf("got %v", got)
	}
}

func TestCloseAndContextEndSubscription(t *testing.T) {
	b := NewBroker(logger.Nop())
	s := b.Subscribe(context.Background(), ev(1, jobs.StateQueued))
	<-s.C
	s.Close()
	collect(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	s2 := b.Subscribe(ctx, ev(1, jobs.StateQueued))
	<-s2.C
	cancel()
	collect(t, s2)

	deadline := time.Now().Add(time.Second)
	for b.Subscribers("job") != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := b.Subscribers("job"); n != 0 {
		t.Fatalf("closed subscriptions still registered: %d", n)
	}
}
