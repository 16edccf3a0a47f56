package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/illumyn-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// RespondError writes the error envelope with an explicit status and code,
// for request-shape problems caught before a service is called.
func RespondError(c *gin.Context, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// RespondAPIError classifies a service error. The raw error is attached to
// the gin context for the request log; internal messages never reach clients.
func RespondAPIError(c *gin.Context, err error) {
	_ = c.Error(err)
	ae := apierr.From(err)
	RespondError(c, ae.Status, ae.Code, ae)
}

func Respond(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

func RespondOK(c *gin.Context, payload any) {
	Respond(c, http.StatusOK, payload)
}
