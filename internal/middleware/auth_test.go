package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/gate"
	"github.com/tablegate/tablegate/internal/identity"
	"github.com/tablegate/tablegate/internal/model"
)

type fakeVerifier struct {
	identity *model.Identity
}

func (f *fakeVerifier) Verify(_ context.Context, token string) (*model.Identity, error) {
	if token == "good" && f.identity != nil {
		return f.identity, nil
	}
	return nil, identity.ErrInvalidToken
}

func authRouter(verifier identity.Verifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(verifier))
	r.GET("/probe", func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no identity"})
			return
		}
		passage, ok := PassageFrom(c)
		if !ok || passage.State() != gate.StateAuthenticated {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no passage"})
			return
		}
		if _, ok := gate.FromContext(c.Request.Context()); !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "passage missing from request context"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"actor": id.Actor})
	})
	return r
}

func TestAuthMiddlewareAttachesIdentityAndPassage(t *testing.T) {
	r := authRouter(&fakeVerifier{identity: &model.Identity{Actor: "alice", Authenticated: true}})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	r := authRouter(&fakeVerifier{identity: &model.Identity{Actor: "alice", Authenticated: true}})

	cases := map[string]string{
		"no header":   "",
		"bad scheme":  "Basic good",
		"bad token":   "Bearer evil",
		"empty token": "Bearer ",
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestAuthMiddlewareRejectsAnonymousIdentity(t *testing.T) {
	// A verifier that hands back the anonymous placeholder must still be
	// stopped at the gate.
	r := authRouter(&fakeVerifier{identity: model.Anonymous()})

	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
