package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/illumyn-backend/internal/platform/ctxutil"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Server errors log at error,
// client errors at warn, the rest at debug.
func RequestLogger(baseLog *logger.Logger) gin.HandlerFunc {
	if baseLog == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log := baseLog.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		kv := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			kv = append(kv, "trace_id", rd.TraceID, "request_id", rd.RequestID)
			if rd.RequesterID != "" {
				kv = append(kv, "requester_id", rd.RequesterID)
			}
		}
		if last := c.Errors.Last(); last != nil {
			kv = append(kv, "error", last.Error())
		}

		logAt := log.Debug
		if status >= 500 {
			logAt = log.Error
		} else if status >= 400 {
			logAt = log.Warn
		}
		logAt("HTTP request", kv...)
	}
}
