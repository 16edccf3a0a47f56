package lease

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTableIsExclusiveUntilRelease(t *testing.T) {
	ctx := context.Background()
	tbl := NewTable()
	l, err := tbl.Acquire(ctx, "fp", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := tbl.Acquire(ctx, "fp", time.Minute); !errors.Is(err, ErrHeld) {
		t.Fatalf("second acquire should fail with ErrHeld, got %v", err)
	}
	if _, err := tbl.Acquire(ctx, "other", time.Minute); err != nil {
		t.Fatalf("distinct keys must not conflict: %v", err)
	}
	if err := l.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if tbl.Held("fp") {
		t.Fatalf("released lease still held")
	}
	if _, err := tbl.Acquire(ctx, "fp", time.Minute); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestTableLeaseExpiresAndIsLost(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := NewTable()
	tbl.now = func() time.Time { return now }

	first, _ := tbl.Acquire(ctx, "fp", time.Second)
	now = now.Add(500 * time.Millisecond)
	if err := first.Renew(ctx); err != nil {
		t.Fatalf("renew before expiry: %v", err)
	}
	now = now.Add(2 * time.Second)
	second, err := tbl.Acquire(ctx, "fp", time.Second)
	if err != nil {
		t.Fatalf("expired lease should be takeable: %v", err)
	}
	if err := first.Renew(ctx); !errors.Is(err, ErrLost) {
		t.Fatalf("stale owner renew should be lost, got %v", err)
	}
	_ = first.Release(ctx)
	if !tbl.Held("fp") {
		t.Fatalf("stale release must not drop the new owner's lease")
	}
	_ = second.Release(ctx)
}
