package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/illumyn-backend/internal/http/response"
	"github.com/yungbote/illumyn-backend/internal/services"
)

type BlockHandler struct {
	blocks services.BlockService
}

func NewBlockHandler(blocks services.BlockService) *BlockHandler {
	return &BlockHandler{blocks: blocks}
}

// GET /api/blocks?limit&cursor
func (h *BlockHandler) ListBlocks(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	page, err := h.blocks.List(c.Request.Context(), limit, c.Query("cursor"))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"blocks": page.Blocks, "next_cursor": page.NextCursor})
}

// GET /api/blocks/:id
func (h *BlockHandler) GetBlock(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_block_id", err)
		return
	}
	b, err := h.blocks.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"block": b})
}

// POST /api/blocks/:id/engagement {"kind": "view"|"completion"}
func (h *BlockHandler) RecordEngagement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_block_id", err)
		return
	}
	var req struct {
		Kind string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	b, err := h.blocks.RecordEngagement(c.Request.Context(), id, req.Kind)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"block": b})
}
