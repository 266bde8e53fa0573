package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/predictops/autoscaler/internal/logger"
)

// RequestLogger emits one structured line per request after the handler runs.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		fields := map[string]interface{}{
			"status":     status,
			"method":     c.Request.Method,
			"path":       path,
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
		}
		if query != "" {
			fields["query"] = query
		}
		if id := GetTraceID(c); id != "" {
			fields["trace_id"] = id
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		entry := logger.WithFields(fields)
		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("server error")
		case status >= http.StatusBadRequest:
			entry.Warn("client error")
		default:
			entry.Info("request completed")
		}
	}
}
