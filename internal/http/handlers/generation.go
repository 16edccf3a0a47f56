package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/http/response"
	"github.com/yungbote/illumyn-backend/internal/services"
)

type GenerationHandler struct {
	gen services.GenerationService
}

func NewGenerationHandler(gen services.GenerationService) *GenerationHandler {
	return &GenerationHandler{gen: gen}
}

// POST /api/generations
func (h *GenerationHandler) Submit(c *gin.Context) {
	var raw learning.RawGenerationRequest
	if err := c.ShouldBindJSON(&raw); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	res, err := h.gen.Submit(c.Request.Context(), raw)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if res.Cached {
		response.RespondOK(c, gin.H{"job": res.Job, "block": res.Block, "cached": true})
		return
	}
	response.Respond(c, http.StatusAccepted, gin.H{"job": res.Job, "joined": res.Joined, "waiter_id": res.WaiterID})
}
