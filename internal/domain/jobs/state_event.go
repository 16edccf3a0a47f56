package jobs

import (
	"time"

	"github.com/google/uuid"
)

// StateEvent is one job-state report. Version increases with every transition;
// consumers drop anything at or below the last version they saw.
type StateEvent struct {
	JobID     string     `json:"job_id"`
	State     State      `json:"state"`
	Version   int64      `json:"version"`
	Stage     string     `json:"stage,omitempty"`
	Progress  int        `json:"progress"`
	Attempts  int        `json:"attempts"`
	Error     string     `json:"error,omitempty"`
	ErrorKind string     `json:"error_kind,omitempty"`
	BlockID   *uuid.UUID `json:"block_id,omitempty"`
	At        time.Time  `json:"at"`
}

func EventFromJob(j *Job) StateEvent {
	ev := StateEvent{
		JobID:     j.ID,
		State:     j.State,
		Version:   j.Version,
		Stage:     j.Stage,
		Progress:  j.Progress,
		Attempts:  j.Attempts,
		Error:     j.LastError,
		ErrorKind: j.ErrorKind,
		At:        j.UpdatedAt,
	}
	if j.BlockID != nil {
		id := *j.BlockID
		ev.BlockID = &id
	}
	return ev
}
