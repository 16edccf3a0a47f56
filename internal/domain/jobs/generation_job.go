package jobs

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
)

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateRetrying  State = "retrying"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Active states hold the fingerprint: a submit joins the job instead of creating one.
func (s State) Active() bool {
	return s == StateQueued || s == StateRunning || s == StateRetrying
}

type Lane string

const (
	LaneFast  Lane = "fast"
	LaneHeavy Lane = "heavy"
)

// Waiter is one caller attached to a job. A requester may hold several waiters
// if they submitted the same request more than once.
type Waiter struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	AddedAt     time.Time `json:"added_at"`
}

// Job is keyed by request fingerprint. Only the coordinator mutates it.
type Job struct {
	ID              string                                         `gorm:"column:id;primaryKey" json:"id"`
	RunID           uuid.UUID                                      `gorm:"type:uuid;column:run_id;not null" json:"run_id"`
	RequesterID     string                                         `gorm:"column:requester_id;not null;index" json:"requester_id"`
	State           State                                          `gorm:"column:state;not null;index" json:"state"`
	Version         int64                                          `gorm:"column:version;not null;default:0" json:"version"`
	Lane            Lane                                           `gorm:"column:lane;not null" json:"lane"`
	Stage           string                                         `gorm:"column:stage" json:"stage,omitempty"`
	Progress        int                                            `gorm:"column:progress;not null;default:0" json:"progress"`
	Attempts        int                                            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError       string                                         `gorm:"column:last_error" json:"last_error,omitempty"`
	ErrorKind       string                                         `gorm:"column:error_kind" json:"error_kind,omitempty"`
	Waiters         datatypes.JSONSlice[Waiter]                    `gorm:"column:waiters;type:json" json:"waiters"`
	Watchers        datatypes.JSONSlice[string]                    `gorm:"column:watchers;type:json" json:"-"`
	CancelRequested bool                                           `gorm:"column:cancel_requested;not null;default:false" json:"cancel_requested"`
	Request         datatypes.JSONType[learning.GenerationRequest] `gorm:"column:request;type:json" json:"request"`
	NextAttemptAt   *time.Time                                     `gorm:"column:next_attempt_at" json:"next_attempt_at,omitempty"`
	LeaseExpiresAt  *time.Time                                     `gorm:"column:lease_expires_at;index" json:"-"`
	BlockID         *uuid.UUID                                     `gorm:"type:uuid;column:block_id" json:"block_id,omitempty"`
	FinishedAt      *time.Time                                     `gorm:"column:finished_at;index" json:"finished_at,omitempty"`
	CreatedAt       time.Time                                      `gorm:"not null;index;autoCreateTime:false" json:"created_at"`
	UpdatedAt       time.Time                                      `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Job) TableName() string { return "generation_job" }

// Clone returns a deep copy so store callers never share slices.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Waiters = append(datatypes.JSONSlice[Waiter](nil), j.Waiters...)
	out.Watchers = append(datatypes.JSONSlice[string](nil), j.Watchers...)
	out.NextAttemptAt = cloneTime(j.NextAttemptAt)
	out.LeaseExpiresAt = cloneTime(j.LeaseExpiresAt)
	out.FinishedAt = cloneTime(j.FinishedAt)
	if j.BlockID != nil {
		id := *j.BlockID
		out.BlockID = &id
	}
	return &out
}

// HasWaiter reports whether requesterID currently waits on the job.
func (j *Job) HasWaiter(requesterID string) bool {
	for _, w := range j.Waiters {
		if w.RequesterID == requesterID {
			return true
		}
	}
	return false
}

// Visible reports whether requesterID may read the job: current waiters and
// anyone who ever waited on it.
func (j *Job) Visible(requesterID string) bool {
	if j.RequesterID == requesterID || j.HasWaiter(requesterID) {
		return true
	}
	for _, w := range j.Watchers {
		if w == requesterID {
			return true
		}
	}
	return false
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
