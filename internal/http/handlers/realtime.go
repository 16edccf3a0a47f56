package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/illumyn-backend/internal/http/response"
	"github.com/yungbote/illumyn-backend/internal/platform/ctxutil"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
	"github.com/yungbote/illumyn-backend/internal/realtime"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *realtime.SSEHub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.SSEHub) *RealtimeHandler {
	return &RealtimeHandler{Log: log.With("handler", "RealtimeHandler"), Hub: hub}
}

// GET /api/sse/stream subscribes the connection to the caller's own channel.
// Each tab gets its own client; all of them receive every notification.
func (h *RealtimeHandler) SSEStream(c *gin.Context) {
	rid := ctxutil.RequesterID(c.Request.Context())
	if rid == "" {
		response.RespondAPIError(c, apperrors.ErrUnauthorized)
		return
	}
	client := h.Hub.NewSSEClient(rid)
	h.Hub.AddChannel(client, rid)
	h.Log.Debug("SSEStream open", "requester_id", rid, "client_id", client.ID)

	h.Hub.ServeHTTP(c.Writer, c.Request, client)
	h.Hub.CloseClient(client)
}
