package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/illumyn-backend/internal/platform/ctxutil"
)

const (
	headerTraceID   = "X-Trace-Id"
	headerRequestID = "X-Request-Id"
	maxRequestIDLen = 128
)

// AttachTraceContext must run after otelgin: an active span's trace id wins
// over the client header, which wins over the request id.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		rd := &ctxutil.RequestData{RequestID: clientRequestID(c)}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			rd.TraceID = sc.TraceID().String()
		}
		for _, candidate := range []string{strings.TrimSpace(c.GetHeader(headerTraceID)), rd.RequestID} {
			if rd.TraceID == "" {
				rd.TraceID = candidate
			}
		}
		c.Request = c.Request.WithContext(ctxutil.WithRequestData(c.Request.Context(), rd))
		h := c.Writer.Header()
		h.Set(headerTraceID, rd.TraceID)
		h.Set(headerRequestID, rd.RequestID)
		c.Next()
	}
}

func clientRequestID(c *gin.Context) string {
	id := strings.TrimSpace(c.GetHeader(headerRequestID))
	if id == "" || len(id) > maxRequestIDLen {
		return uuid.NewString()
	}
	return id
}
