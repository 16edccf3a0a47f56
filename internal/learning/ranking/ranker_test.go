package ranking

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/illumyn-backend/internal/data/repos/blocks"
	"github.com/yungbote/illumyn-backend/internal/data/repos/testutil"
	"github.com/yungbote/illumyn-backend/internal/data/repos/trending"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

var now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func block(id string, age time.Duration, views, completions int64) *learning.Block {
	b := testutil.Block(now.Add(-age))
	b.ID = uuid.MustParse(id)
	b.Views = views
	b.Completions = completions
	return b
}

func TestScoreFormula(t *testing.T) {
	b := block("00000000-0000-0000-0000-000000000001", 24*time.Hour, 1, 1)
	got := Score(b, now, 24*time.Hour, 4)
	want := 0.5 * math.Log(5) / math.Log(5)
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("score = %v, want %v", got, want)
	}
	if Score(b, now, 24*time.Hour, 0) != 0 {
		t.Fatalf("all-zero engagement must score 0")
	}
}

func TestCompletionsOutweighViews(t *testing.T) {
	viewed := block("00000000-0000-0000-0000-000000000001", time.Hour, learning.CompletionWeight-1, 0)
	finished := block("00000000-0000-0000-0000-000000000002", time.Hour, 0, 1)
	if finished.Engagement() != learning.CompletionWeight {
		t.Fatalf("engagement = %d", finished.Engagement())
	}
	got := Rank([]*learning.Block{viewed, finished}, now, 24*time.Hour)
	if got[0].BlockID != finished.ID {
		t.Fatalf("one completion should outrank %d views", learning.CompletionWeight-1)
	}
}

func TestRankTieBreaks(t *testing.T) {
	in := []*learning.Block{
		block("00000000-0000-0000-0000-00000000000b", time.Hour, 0, 0),
		block("00000000-0000-0000-0000-00000000000a", time.Hour, 0, 0),
		block("00000000-0000-0000-0000-00000000000c", time.Minute, 0, 0),
		block("00000000-0000-0000-0000-00000000000d", 2*time.Hour, 5, 0),
	}
	got := Rank(in, now, 24*time.Hour)
	order := []string{"d", "c", "a", "b"}
	for i, suffix := range order {
		if last := got[i].BlockID.String(); last[len(last)-1:] != suffix {
			t.Fatalf("position %d = %s, want suffix %s", i, last, suffix)
		}
		if got[i].Rank != i+1 {
			t.Fatalf("rank %d = %d", i, got[i].Rank)
		}
	}
}

func TestRankIsDeterministic(t *testing.T) {
	in := []*learning.Block{
		block("00000000-0000-0000-0000-000000000003", 3*time.Hour, 10, 2),
		block("00000000-0000-0000-0000-000000000001", 3*time.Hour, 10, 2),
		block("00000000-0000-0000-0000-000000000002", 30*time.Hour, 40, 1),
	}
	first := Rank(in, now, 24*time.Hour)
	rev := []*learning.Block{in[2], in[1], in[0]}
	for i := 0; i < 5; i++ {
		if got := Rank(rev, now, 24*time.Hour); !reflect.DeepEqual(got, first) {
			t.Fatalf("ranking changed with input order")
		}
	}
}

func TestRecomputePersistsAndSwaps(t *testing.T) {
	ctx := context.Background()
	repo := blocks.NewMemoryRepo()
	store := trending.NewMemoryRepo()
	dbc := dbctx.New(ctx)
	fresh := block("00000000-0000-0000-0000-000000000001", time.Hour, 3, 0)
	old := block("00000000-0000-0000-0000-000000000002", 9*24*time.Hour, 100, 100)
	for _, b := range []*learning.Block{fresh, old} {
		if _, err := repo.Put(dbc, b); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	r := New(logger.Nop(), repo, store, DefaultConfig(), WithClock(func() time.Time { return now }))
	if len(r.Trending(10)) != 0 {
		t.Fatalf("empty before first recompute")
	}
	snap, err := r.Recompute(ctx)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if snap.Version != 1 || len(snap.Entries) != 1 || snap.Entries[0].BlockID != fresh.ID {
		t.Fatalf("blocks outside the window must be ignored, got %+v", snap)
	}
	persisted, _ := store.List(dbc, 0)
	if !reflect.DeepEqual(persisted, snap.Entries) {
		t.Fatalf("persisted ranking differs from snapshot")
	}

	again, _ := r.Recompute(ctx)
	if again.Version != 2 || !reflect.DeepEqual(again.Entries, snap.Entries) {
		t.Fatalf("second recompute should be identical apart from version")
	}
	if snap.Entries[0].Rank != 1 {
		t.Fatalf("old snapshot must stay untouched")
	}
}

func TestWarmLoadsPersistedRanking(t *testing.T) {
	ctx := context.Background()
	store := trending.NewMemoryRepo()
	entries := []learning.TrendingEntry{{BlockID: uuid.New(), Rank: 1, Score: 0.9, ComputedAt: now}}
	if err := store.ReplaceAll(dbctx.New(ctx), entries); err != nil {
		t.Fatal(err)
	}
	r := New(logger.Nop(), blocks.NewMemoryRepo(), store, DefaultConfig())
	if err := r.Warm(ctx); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if got := r.Trending(5); len(got) != 1 || got[0].BlockID != entries[0].BlockID {
		t.Fatalf("warm snapshot = %+v", got)
	}
}
