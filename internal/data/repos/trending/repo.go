// Package trending persists the latest ranking. The table is replaced
// wholesale on every recompute and never edited row by row.
package trending

import (
	"sort"
	"sync"

	"gorm.io/gorm"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type Repo interface {
	ReplaceAll(dbc dbctx.Context, entries []learning.TrendingEntry) error
	List(dbc dbctx.Context, limit int) ([]learning.TrendingEntry, error)
}

type gormRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &gormRepo{db: db, log: baseLog.With("repo", "TrendingRepo")}
}

func (r *gormRepo) ReplaceAll(dbc dbctx.Context, entries []learning.TrendingEntry) error {
	return dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&learning.TrendingEntry{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.CreateInBatches(entries, 200).Error
	})
}

func (r *gormRepo) List(dbc dbctx.Context, limit int) ([]learning.TrendingEntry, error) {
	var out []learning.TrendingEntry
	q := dbc.DB(r.db).Order("rank ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

type MemoryRepo struct {
	mu      sync.RWMutex
	entries []learning.TrendingEntry
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ReplaceAll(_ dbctx.Context, entries []learning.TrendingEntry) error {
	next := append([]learning.TrendingEntry(nil), entries...)
	sort.SliceStable(next, func(i, j int) bool { return next[i].Rank < next[j].Rank })
	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepo) List(_ dbctx.Context, limit int) ([]learning.TrendingEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]learning.TrendingEntry(nil), r.entries[:n]...), nil
}
