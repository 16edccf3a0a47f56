// Package jobs persists generation jobs. Callers serialize read-modify-write
// per fingerprint; Update additionally compares versions so a stale writer
// fails instead of clobbering a newer state.
package jobs

import (
	"time"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/pkg/dbctx"
)

type Store interface {
	Get(dbc dbctx.Context, id string) (*jobs.Job, error)
	Create(dbc dbctx.Context, j *jobs.Job) error
	// Update writes j if the stored version still equals expectVersion.
	Update(dbc dbctx.Context, j *jobs.Job, expectVersion int64) error
	Delete(dbc dbctx.Context, id string, expectVersion int64) error
	// ListActive returns queued and retrying jobs, oldest first.
	ListActive(dbc dbctx.Context) ([]*jobs.Job, error)
	ListExpiredLeases(dbc dbctx.Context, now time.Time) ([]*jobs.Job, error)
	ListFinishedBefore(dbc dbctx.Context, cutoff time.Time, limit int) ([]*jobs.Job, error)
}
