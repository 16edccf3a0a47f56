package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

func TestLaneIsFIFOWithCeiling(t *testing.T) {
	ls := NewLanes(2, 2)
	if err := ls.Enqueue(jobs.LaneFast, "a"); err != nil {
		t.Fatal(err)
	}
	if err := ls.Enqueue(jobs.LaneFast, "b"); err != nil {
		t.Fatal(err)
	}
	if err := ls.Enqueue(jobs.LaneFast, "c"); !errors.Is(err, apperrors.ErrOverloaded) {
		t.Fatalf("expected overloaded, got %v", err)
	}
	if err := ls.Enqueue(jobs.LaneHeavy, "h"); err != nil {
		t.Fatalf("heavy lane has its own ceiling: %v", err)
	}
	ls.EnqueueAfter(jobs.LaneFast, "retry", 0)
	if ls.Len(jobs.LaneFast) != 3 {
		t.Fatalf("redelivery should bypass the ceiling, len=%d", ls.Len(jobs.LaneFast))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, want := range []string{"a", "b", "retry"} {
		got, ok := ls.Next(ctx, jobs.LaneFast)
		if !ok || got != want {
			t.Fatalf("Next = %q %v, want %q", got, ok, want)
		}
	}
}

func TestEnqueueAfterDelaysDelivery(t *testing.T) {
	ls := NewLanes(0, 0)
	defer ls.Close()
	ls.EnqueueAfter(jobs.LaneHeavy, "later", 20*time.Millisecond)
	if ls.Len(jobs.LaneHeavy) != 0 || ls.Pending() != 1 {
		t.Fatalf("delayed id should not be visible yet")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, ok := ls.Next(ctx, jobs.LaneHeavy)
	if !ok || got != "later" {
		t.Fatalf("Next = %q %v", got, ok)
	}
}

func TestNextStopsOnContext(t *testing.T) {
	ls := NewLanes(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := ls.Next(ctx, jobs.LaneFast); ok {
		t.Fatalf("Next should give up on a cancelled context")
	}
}

func TestCloseDropsScheduledRedeliveries(t *testing.T) {
	ls := NewLanes(0, 0)
	ls.EnqueueAfter(jobs.LaneFast, "x", time.Hour)
	ls.Close()
	if ls.Pending() != 0 {
		t.Fatalf("timers should be stopped")
	}
	ls.EnqueueAfter(jobs.LaneFast, "y", time.Millisecond)
	if ls.Pending() != 0 {
		t.Fatalf("closed lanes must not schedule")
	}
}
