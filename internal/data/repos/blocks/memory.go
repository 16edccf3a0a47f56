package blocks

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

// MemoryRepo keeps blocks sorted in feed order so listing is a binary search.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*learning.Block
	sorted []*learning.Block
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: map[uuid.UUID]*learning.Block{}}
}

func (r *MemoryRepo) Put(_ dbctx.Context, b *learning.Block) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[b.ID]; ok {
		return false, nil
	}
	c := b.Clone()
	r.byID[c.ID] = c
	cur := &Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	i := sort.Search(len(r.sorted), func(i int) bool {
		return cur.after(r.sorted[i].CreatedAt, r.sorted[i].ID)
	})
	r.sorted = append(r.sorted, nil)
	copy(r.sorted[i+1:], r.sorted[i:])
	r.sorted[i] = c
	return true, nil
}

func (r *MemoryRepo) Get(_ dbctx.Context, id uuid.UUID) (*learning.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return b.Clone(), nil
}

func (r *MemoryRepo) GetByIDs(_ dbctx.Context, ids []uuid.UUID) ([]*learning.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*learning.Block, 0, len(ids))
	for _, id := range ids {
		if b, ok := r.byID[id]; ok {
			out = append(out, b.Clone())
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListRecent(_ dbctx.Context, limit int, cursor string) (Page, error) {
	cur, err := ParseCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	limit = ClampLimit(limit)

	r.mu.RLock()
	defer r.mu.RUnlock()
	start := sort.Search(len(r.sorted), func(i int) bool {
		return cur.after(r.sorted[i].CreatedAt, r.sorted[i].ID)
	})
	end := start + limit
	more := end < len(r.sorted)
	if !more {
		end = len(r.sorted)
	}
	out := make([]*learning.Block, 0, end-start)
	for _, b := range r.sorted[start:end] {
		out = append(out, b.Clone())
	}
	return Page{Blocks: out, NextCursor: nextCursor(out, more)}, nil
}

func (r *MemoryRepo) IncrementEngagement(_ dbctx.Context, id uuid.UUID, kind learning.EngagementKind) (*learning.Block, error) {
	if !validKind(kind) {
		return nil, apperrors.Invalid("unknown engagement kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.byID[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if kind == learning.EngagementView {
		b.Views++
	} else {
		b.Completions++
	}
	return b.Clone(), nil
}

func (r *MemoryRepo) ListSince(_ dbctx.Context, since time.Time) ([]*learning.Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*learning.Block, 0)
	for _, b := range r.sorted {
		if b.CreatedAt.Before(since) {
			break
		}
		out = append(out, b.Clone())
	}
	return out, nil
}
