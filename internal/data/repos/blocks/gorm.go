package blocks

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type gormRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &gormRepo{db: db, log: baseLog.With("repo", "BlockRepo")}
}

func (r *gormRepo) Put(dbc dbctx.Context, b *learning.Block) (bool, error) {
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(b)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepo) Get(dbc dbctx.Context, id uuid.UUID) (*learning.Block, error) {
	var b learning.Block
	err := dbc.DB(r.db).Where("id = ?", id).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *gormRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*learning.Block, error) {
	var out []*learning.Block
	if len(ids) == 0 {
		return out, nil
	}
	err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error
	return out, err
}

func (r *gormRepo) ListRecent(dbc dbctx.Context, limit int, cursor string) (Page, error) {
	cur, err := ParseCursor(cursor)
	if err != nil {
		return Page{}, err
	}
	limit = ClampLimit(limit)

	q := dbc.DB(r.db).Order("created_at DESC, id DESC").Limit(limit + 1)
	if cur != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", cur.CreatedAt, cur.CreatedAt, cur.ID)
	}
	var rows []*learning.Block
	if err := q.Find(&rows).Error; err != nil {
		return Page{}, err
	}
	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}
	return Page{Blocks: rows, NextCursor: nextCursor(rows, more)}, nil
}

func (r *gormRepo) IncrementEngagement(dbc dbctx.Context, id uuid.UUID, kind learning.EngagementKind) (*learning.Block, error) {
	if !validKind(kind) {
		return nil, apperrors.Invalid("unknown engagement kind %q", kind)
	}
	col := "views"
	if kind == learning.EngagementCompletion {
		col = "completions"
	}
	res := dbc.DB(r.db).Model(&learning.Block{}).Where("id = ?", id).
		UpdateColumn(col, gorm.Expr(col+" + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, apperrors.ErrNotFound
	}
	return r.Get(dbc, id)
}

func (r *gormRepo) ListSince(dbc dbctx.Context, since time.Time) ([]*learning.Block, error) {
	var out []*learning.Block
	err := dbc.DB(r.db).
		Where("created_at >= ?", since).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}
