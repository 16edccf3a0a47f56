package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/illumyn-backend/internal/http/response"
	"github.com/yungbote/illumyn-backend/internal/services"
)

type DocumentHandler struct {
	docs services.DocumentService
}

func NewDocumentHandler(docs services.DocumentService) *DocumentHandler {
	return &DocumentHandler{docs: docs}
}

// POST /api/documents (multipart field "file")
func (h *DocumentHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()

	meta, err := h.docs.Upload(c.Request.Context(), fh.Filename, f)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.Respond(c, http.StatusCreated, gin.H{"document": meta})
}
