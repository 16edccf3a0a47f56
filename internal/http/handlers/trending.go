package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/illumyn-backend/internal/http/response"
	"github.com/yungbote/illumyn-backend/internal/services"
)

type TrendingHandler struct {
	trending services.TrendingService
}

func NewTrendingHandler(trending services.TrendingService) *TrendingHandler {
	return &TrendingHandler{trending: trending}
}

// GET /api/trending?limit
func (h *TrendingHandler) ListTrending(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.trending.Trending(c.Request.Context(), limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"entries": items})
}
