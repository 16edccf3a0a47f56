package blocks

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/illumyn-backend/internal/data/repos/testutil"
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

func exerciseRepo(t *testing.T, r Repo, dbc dbctx.Context) {
	t.Helper()
	base := time.Now().UTC().Truncate(time.Microsecond)

	// Five blocks, two sharing a timestamp so the id tie-break matters.
	var all []*learning.Block
	for i := 0; i < 5; i++ {
		b := testutil.Block(base.Add(time.Duration(i/2) * time.Second))
		all = append(all, b)
		created, err := r.Put(dbc, b)
		if err != nil || !created {
			t.Fatalf("Put: created=%v err=%v", created, err)
		}
	}

	again := all[0].Clone()
	again.Payload = datatypes.JSON(`{"different":true}`)
	created, err := r.Put(dbc, again)
	if err != nil || created {
		t.Fatalf("repeat Put: created=%v err=%v", created, err)
	}
	got, err := r.Get(dbc, all[0].ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got.Payload, all[0].Payload) {
		t.Fatalf("payload changed: %s", got.Payload)
	}

	page1, err := r.ListRecent(dbc, 2, "")
	if err != nil || len(page1.Blocks) != 2 || page1.NextCursor == "" {
		t.Fatalf("page1 = %+v, %v", page1, err)
	}

	// A block inserted ahead of the cursor must not shift later pages.
	if _, err := r.Put(dbc, testutil.Block(base.Add(time.Hour))); err != nil {
		t.Fatalf("Put newer: %v", err)
	}

	seen := map[uuid.UUID]bool{}
	for _, b := range page1.Blocks {
		seen[b.ID] = true
	}
	cursor := page1.NextCursor
	for cursor != "" {
		p, err := r.ListRecent(dbc, 2, cursor)
		if err != nil {
			t.Fatalf("ListRecent: %v", err)
		}
		for _, b := range p.Blocks {
			if seen[b.ID] {
				t.Fatalf("block %s returned twice", b.ID)
			}
			seen[b.ID] = true
		}
		cursor = p.NextCursor
	}
	for _, b := range all {
		if !seen[b.ID] {
			t.Fatalf("block %s skipped", b.ID)
		}
	}

	if _, err := r.ListRecent(dbc, 10, "!!"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("bad cursor = %v", err)
	}

	if _, err := r.IncrementEngagement(dbc, all[0].ID, learning.EngagementCompletion); err != nil {
		t.Fatalf("IncrementEngagement: %v", err)
	}
	if _, err := r.IncrementEngagement(dbc, uuid.New(), learning.EngagementView); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("missing block = %v", err)
	}
	if _, err := r.IncrementEngagement(dbc, all[0].ID, "like"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("bad kind = %v", err)
	}

	since, err := r.ListSince(dbc, base.Add(time.Second))
	if err != nil || len(since) != 4 {
		t.Fatalf("ListSince = %d, %v", len(since), err)
	}
}

func TestMemoryRepo(t *testing.T) {
	exerciseRepo(t, NewMemoryRepo(), dbctx.New(context.Background()))
}

func TestMemoryRepoConcurrentIncrements(t *testing.T) {
	r := NewMemoryRepo()
	dbc := dbctx.New(context.Background())
	b := testutil.Block(time.Now())
	if _, err := r.Put(dbc, b); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := learning.EngagementView
			if i%5 == 0 {
				kind = learning.EngagementCompletion
			}
			_, _ = r.IncrementEngagement(dbc, b.ID, kind)
		}(i)
	}
	wg.Wait()
	got, _ := r.Get(dbc, b.ID)
	if got.Views != 40 || got.Completions != 10 {
		t.Fatalf("views=%d completions=%d", got.Views, got.Completions)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := Cursor{CreatedAt: time.Unix(0, 1712345678901234567).UTC(), ID: uuid.New()}
	got, err := ParseCursor(c.Encode())
	if err != nil {
		t.Fatalf("ParseCursor: %v", err)
	}
	if !got.CreatedAt.Equal(c.CreatedAt) || got.ID != c.ID {
		t.Fatalf("got %+v want %+v", got, c)
	}
	if cur, err := ParseCursor(""); err != nil || cur != nil {
		t.Fatalf("empty cursor = %v, %v", cur, err)
	}
}

func TestClampLimit(t *testing.T) {
	for in, want := range map[int]int{0: 20, -3: 20, 1: 1, 50: 50, 101: 100} {
		if got := ClampLimit(in); got != want {
			t.Fatalf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestGormRepo(t *testing.T) {
	db, dbc := testutil.Postgres(t)
	exerciseRepo(t, NewGormRepo(db, testutil.Logger(t)), dbc)
}
