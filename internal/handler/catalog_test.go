package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/catalog"
	"github.com/tablegate/tablegate/internal/middleware"
)

const catalogYAML = `
tables:
  - name: widgets
    primary_key: id
    columns:
      - name: id
        type: text
      - name: quantity
        type: integer
`

func newCatalogEnv(t *testing.T) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	cat, err := catalog.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	h := NewCatalogHandler(cat)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/v1/catalog", h.List)
	r.GET("/v1/catalog/:table", h.Describe)
	r.POST("/v1/catalog/reload", h.Reload)
	return r, path
}

func TestCatalogListAndDescribe(t *testing.T) {
	r, _ := newCatalogEnv(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/catalog", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var listResp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	tables := listResp["tables"].([]any)
	if len(tables) != 1 || tables[0] != "widgets" {
		t.Fatalf("unexpected tables %v", tables)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/catalog/widgets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("describe: expected 200, got %d", rec.Code)
	}
	var desc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &desc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if desc["primary_key"] != "id" {
		t.Fatalf("unexpected descriptor %v", desc)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/catalog/secrets", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("describe unknown: expected 404, got %d", rec.Code)
	}
}

func TestCatalogReload(t *testing.T) {
	r, path := newCatalogEnv(t)

	next := `
tables:
  - name: customers
    primary_key: id
    columns:
      - name: id
        type: text
`
	if err := os.WriteFile(path, []byte(next), 0o644); err != nil {
		t.Fatalf("overwrite catalog: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/catalog/reload", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("reload: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/catalog/customers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected customers after reload, got %d", rec.Code)
	}
}

func TestCatalogReloadRejectsBrokenFile(t *testing.T) {
	r, path := newCatalogEnv(t)

	if err := os.WriteFile(path, []byte("tables: [{name: broken}]"), 0o644); err != nil {
		t.Fatalf("overwrite catalog: %v", err)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/catalog/reload", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for broken catalog, got %d", rec.Code)
	}

	// Previous registry still serves.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/catalog/widgets", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected widgets to survive failed reload, got %d", rec.Code)
	}
}
