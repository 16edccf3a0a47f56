package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

type gormStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGormStore(db *gorm.DB, baseLog *logger.Logger) Store {
	return &gormStore{db: db, log: baseLog.With("repo", "JobStore")}
}

func (r *gormStore) Get(dbc dbctx.Context, id string) (*jobs.Job, error) {
	var j jobs.Job
	err := dbc.DB(r.db).Where("id = ?", id).Take(&j).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *gormStore) Create(dbc dbctx.Context, j *jobs.Job) error {
	res := dbc.DB(r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(j)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConflict
	}
	return nil
}

func (r *gormStore) Update(dbc dbctx.Context, j *jobs.Job, expectVersion int64) error {
	res := dbc.DB(r.db).
		Model(&jobs.Job{}).
		Where("id = ? AND version = ?", j.ID, expectVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(j)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(dbc, j.ID)
	}
	return nil
}

func (r *gormStore) Delete(dbc dbctx.Context, id string, expectVersion int64) error {
	res := dbc.DB(r.db).Where("id = ? AND version = ?", id, expectVersion).Delete(&jobs.Job{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(dbc, id)
	}
	return nil
}

func (r *gormStore) missOrConflict(dbc dbctx.Context, id string) error {
	var n int64
	if err := dbc.DB(r.db).Model(&jobs.Job{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return apperrors.ErrConflict
}

func (r *gormStore) ListActive(dbc dbctx.Context) ([]*jobs.Job, error) {
	var out []*jobs.Job
	err := dbc.DB(r.db).
		Where("state IN ?", []jobs.State{jobs.StateQueued, jobs.StateRetrying}).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *gormStore) ListExpiredLeases(dbc dbctx.Context, now time.Time) ([]*jobs.Job, error) {
	var out []*jobs.Job
	err := dbc.DB(r.db).
		Where("state = ? AND lease_expires_at IS NOT NULL AND lease_expires_at < ?", jobs.StateRunning, now).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *gormStore) ListFinishedBefore(dbc dbctx.Context, cutoff time.Time, limit int) ([]*jobs.Job, error) {
	var out []*jobs.Job
	q := dbc.DB(r.db).
		Where("state IN ? AND finished_at IS NOT NULL AND finished_at < ?",
			[]jobs.State{jobs.StateSucceeded, jobs.StateFailed, jobs.StateCancelled}, cutoff).
		Order("finished_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
