package coordinator

import (
	"fmt"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

var allowed = map[jobs.State][]jobs.State{
	jobs.StateQueued:   {jobs.StateRunning, jobs.StateCancelled},
	jobs.StateRunning:  {jobs.StateSucceeded, jobs.StateFailed, jobs.StateRetrying, jobs.StateCancelled},
	jobs.StateRetrying: {jobs.StateRunning, jobs.StateCancelled},
}

func canTransition(from, to jobs.State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to jobs.State) error {
	if !canTransition(from, to) {
		return fmt.Errorf("%w: illegal job transition %s -> %s", apperrors.ErrInternal, from, to)
	}
	return nil
}
