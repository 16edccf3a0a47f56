package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

// MemoryStore keeps jobs in process. Values are cloned on the way in and out.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: map[string]*jobs.Job{}}
}

func (s *MemoryStore) Get(_ dbctx.Context, id string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return j.Clone(), nil
}

func (s *MemoryStore) Create(_ dbctx.Context, j *jobs.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return apperrors.ErrConflict
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) Update(_ dbctx.Context, j *jobs.Job, expectVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[j.ID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if cur.Version != expectVersion {
		return apperrors.ErrConflict
	}
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemoryStore) Delete(_ dbctx.Context, id string, expectVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if cur.Version != expectVersion {
		return apperrors.ErrConflict
	}
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) ListActive(_ dbctx.Context) ([]*jobs.Job, error) {
	return s.filter(func(j *jobs.Job) bool {
		return j.State == jobs.StateQueued || j.State == jobs.StateRetrying
	}, 0), nil
}

func (s *MemoryStore) ListExpiredLeases(_ dbctx.Context, now time.Time) ([]*jobs.Job, error) {
	return s.filter(func(j *jobs.Job) bool {
		return j.State == jobs.StateRunning && j.LeaseExpiresAt != nil && j.LeaseExpiresAt.Before(now)
	}, 0), nil
}

func (s *MemoryStore) ListFinishedBefore(_ dbctx.Context, cutoff time.Time, limit int) ([]*jobs.Job, error) {
	return s.filter(func(j *jobs.Job) bool {
		return j.State.Terminal() && j.FinishedAt != nil && j.FinishedAt.Before(cutoff)
	}, limit), nil
}

func (s *MemoryStore) filter(keep func(*jobs.Job) bool, limit int) []*jobs.Job {
	s.mu.RLock()
	out := make([]*jobs.Job, 0)
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, j.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool {
		if !out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].CreatedAt.Before(out[b].CreatedAt)
		}
		return out[a].ID < out[b].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
