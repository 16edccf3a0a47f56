package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/illumyn-backend/internal/http/response"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	"github.com/yungbote/illumyn-backend/internal/realtime"
	"github.com/yungbote/illumyn-backend/internal/services"
)

const jobEventsHeartbeat = 15 * time.Second

type JobHandler struct {
	log  *logger.Logger
	jobs services.GenerationService
}

func NewJobHandler(log *logger.Logger, jobs services.GenerationService) *JobHandler {
	return &JobHandler{log: log.With("handler", "JobHandler"), jobs: jobs}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.GetForRequestUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// POST /api/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.CancelForRequestUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}

// GET /api/jobs/:id/events streams state events until the job is terminal.
func (h *JobHandler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	sub, err := h.jobs.SubscribeForRequestUser(ctx, c.Param("id"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	defer sub.Close()

	flusher, ok := realtime.StartStream(c.Writer)
	if !ok {
		response.RespondError(c, http.StatusInternalServerError, "streaming_unsupported", nil)
		return
	}
	heartbeat := time.NewTicker(jobEventsHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			realtime.Ping(c.Writer)
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := realtime.WriteEvent(c.Writer, string(ev.State), ev); err != nil {
				h.log.Warn("Failed to write job event", "job_id", ev.JobID, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}
