package services

import (
	"context"

	"github.com/yungbote/illumyn-backend/internal/domain/jobs"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

// JobNotifier fans job transitions out to each waiter's dashboard channel.
// It satisfies coordinator.Notifier.
type JobNotifier struct {
	emit SSEEmitter
}

func NewJobNotifier(emit SSEEmitter) *JobNotifier {
	return &JobNotifier{emit: emit}
}

func (n *JobNotifier) JobCreated(requesterID string, ev jobs.StateEvent) {
	n.send(requesterID, realtime.SSEEventJobCreated, map[string]any{"job": ev})
}

func (n *JobNotifier) JobProgress(requesterID string, ev jobs.StateEvent) {
	n.send(requesterID, realtime.SSEEventJobProgress, map[string]any{
		"job_id":   ev.JobID,
		"stage":    ev.Stage,
		"progress": ev.Progress,
		"job":      ev,
	})
}

func (n *JobNotifier) JobFailed(requesterID string, ev jobs.StateEvent) {
	n.send(requesterID, realtime.SSEEventJobFailed, map[string]any{
		"job_id": ev.JobID,
		"stage":  ev.Stage,
		"error":  ev.Error,
		"job":    ev,
	})
}

func (n *JobNotifier) JobDone(requesterID string, ev jobs.StateEvent) {
	n.send(requesterID, realtime.SSEEventJobDone, map[string]any{
		"job_id":   ev.JobID,
		"block_id": ev.BlockID,
		"job":      ev,
	})
}

func (n *JobNotifier) send(channel string, event realtime.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || channel == "" {
		return
	}
	// Notifications are emitted after the transition is stored; nothing is
	// left to cancel.
	n.emit.Emit(context.Background(), realtime.SSEMessage{Channel: channel, Event: event, Data: data})
}
