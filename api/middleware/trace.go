package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const TraceIDHeader = "X-Trace-ID"

const traceIDKey = "trace_id"

// TraceID propagates the caller's trace id, minting one when absent.
func TraceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(TraceIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Set(traceIDKey, id)
		c.Header(TraceIDHeader, id)

		c.Next()
	}
}

// GetTraceID returns the request's trace id, or "" outside a traced request.
func GetTraceID(c *gin.Context) string {
	id, _ := c.Get(traceIDKey)
	s, _ := id.(string)
	return s
}
