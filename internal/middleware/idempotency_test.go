package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/model"
)

func idempotencyRouter(store IdempotencyStore, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(ContextIdentityKey, &model.Identity{Actor: "alice", Authenticated: true})
	})
	r.Use(IdempotencyMiddleware(store))
	r.POST("/do", handler)
	return r
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	calls := 0
	r := idempotencyRouter(NewInMemIdempotencyStore(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"key": "w-1", "calls": calls})
	})

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/do", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc")
	r.ServeHTTP(first, req)

	second := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPost, "/do", nil)
	req2.Header.Set(HeaderIdempotencyKey, "abc")
	r.ServeHTTP(second, req2)

	if calls != 1 {
		t.Fatalf("handler must run once, ran %d times", calls)
	}
	if second.Code != first.Code || second.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: %d %s vs %d %s", first.Code, first.Body.String(), second.Code, second.Body.String())
	}
}

func TestIdempotencyServerErrorStaysRetryable(t *testing.T) {
	calls := 0
	r := idempotencyRouter(NewInMemIdempotencyStore(), func(c *gin.Context) {
		calls++
		if calls == 1 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "down"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"key": "w-1"})
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/do", nil)
		req.Header.Set(HeaderIdempotencyKey, "abc")
		r.ServeHTTP(rec, req)
		if i == 1 && rec.Code != http.StatusCreated {
			t.Fatalf("retry after 5xx must re-execute, got %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls)
	}
}

func TestIdempotencyWithoutKeyPassesThrough(t *testing.T) {
	calls := 0
	r := idempotencyRouter(NewInMemIdempotencyStore(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/do", nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("without a key every call executes, ran %d times", calls)
	}
}

func TestIdempotencyKeysAreScopedPerActor(t *testing.T) {
	store := NewInMemIdempotencyStore()
	gin.SetMode(gin.TestMode)

	calls := 0
	r := gin.New()
	actor := "alice"
	r.Use(func(c *gin.Context) {
		c.Set(ContextIdentityKey, &model.Identity{Actor: actor, Authenticated: true})
	})
	r.Use(IdempotencyMiddleware(store))
	r.POST("/do", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/do", nil)
	req.Header.Set(HeaderIdempotencyKey, "abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	actor = "bob"
	req2 := httptest.NewRequest(http.MethodPost, "/do", nil)
	req2.Header.Set(HeaderIdempotencyKey, "abc")
	r.ServeHTTP(httptest.NewRecorder(), req2)

	if calls != 2 {
		t.Fatalf("same key from another actor must execute, ran %d times", calls)
	}
}
