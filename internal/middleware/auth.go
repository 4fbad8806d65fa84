package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/gate"
	"github.com/tablegate/tablegate/internal/identity"
	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/metrics"
)

const (
	ContextIdentityKey = "identity"
	ContextPassageKey  = "gate_passage"
)

// AuthMiddleware is Stage A of the security gate: it extracts the bearer
// credential, has the external verifier check it and attaches the verified
// identity to the call. Unauthenticated calls terminate here.
func AuthMiddleware(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		passage := gate.NewPassage()
		c.Set(ContextPassageKey, passage)
		c.Request = c.Request.WithContext(gate.WithPassage(c.Request.Context(), passage))

		token := bearerToken(c)
		if token == "" {
			passage.Reject()
			metrics.GateRejections.WithLabelValues("boundary").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			c.Abort()
			return
		}

		id, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			passage.Reject()
			metrics.GateRejections.WithLabelValues("boundary").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		if err := passage.Authenticate(id); err != nil {
			metrics.GateRejections.WithLabelValues("boundary").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		c.Set(ContextIdentityKey, id)
		c.Next()
	}
}

// IdentityFrom returns the identity Stage A attached, if any.
func IdentityFrom(c *gin.Context) (*model.Identity, bool) {
	val, ok := c.Get(ContextIdentityKey)
	if !ok {
		return nil, false
	}
	id, ok := val.(*model.Identity)
	return id, ok
}

// PassageFrom returns the gate passage for this request, if any.
func PassageFrom(c *gin.Context) (*gate.Passage, bool) {
	val, ok := c.Get(ContextPassageKey)
	if !ok {
		return nil, false
	}
	p, ok := val.(*gate.Passage)
	return p, ok
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
