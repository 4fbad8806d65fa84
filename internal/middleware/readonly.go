package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/pkg/apperrors"
)

// ReadOnlyMiddleware rejects mutating methods while the gateway runs in
// read-only mode (e.g. during maintenance on the backing database).
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		default:
			c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
			c.Abort()
			return
		}
	}
}
