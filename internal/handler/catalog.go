package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/catalog"
	"github.com/tablegate/tablegate/internal/pkg/apperrors"
	"github.com/tablegate/tablegate/internal/pkg/logger"
)

// CatalogHandler exposes the table registry: which tables exist and the
// column shape of each. Reload is admin-only.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// List handles GET /v1/catalog.
func (h *CatalogHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tables": h.catalog.Tables()})
}

// Describe handles GET /v1/catalog/:table.
func (h *CatalogHandler) Describe(c *gin.Context) {
	name := c.Param("table")
	desc, ok := h.catalog.Describe(name)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrTableUnavailable, "table not available", nil))
		return
	}

	columns := make([]gin.H, 0, len(desc.Columns))
	for _, col := range desc.ColumnNames() {
		spec, _ := desc.Column(col)
		entry := gin.H{
			"name":     col,
			"type":     spec.Type,
			"nullable": spec.Nullable,
		}
		if spec.MaxLength > 0 {
			entry["max_length"] = spec.MaxLength
		}
		columns = append(columns, entry)
	}
	c.JSON(http.StatusOK, gin.H{
		"name":        desc.Name,
		"primary_key": desc.PrimaryKey,
		"columns":     columns,
	})
}

// Reload handles POST /v1/catalog/reload. A bad catalog file leaves the
// running registry untouched.
func (h *CatalogHandler) Reload(c *gin.Context) {
	if err := h.catalog.Reload(); err != nil {
		c.Error(apperrors.New(apperrors.ErrInvalidRequest, "catalog reload rejected: "+err.Error(), err))
		return
	}
	logger.Info("catalog reloaded", "tables", len(h.catalog.Tables()))
	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "tables": h.catalog.Tables()})
}
