package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tablegate/tablegate/internal/pkg/logger"
)

const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware assigns every call an id and emits one structured
// access-log line when it finishes. This is transport-level observability;
// the operation-level audit trail is written by the executor.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Header(HeaderRequestID, reqID)

		c.Next()

		fields := []any{
			"request_id", reqID,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if id, ok := IdentityFrom(c); ok {
			fields = append(fields, "actor", id.Actor)
		}
		logger.Info("request", fields...)
	}
}
