package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/middleware"
	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/apperrors"
	"github.com/tablegate/tablegate/internal/service"
)

// DataHandler serves the dynamic table CRUD surface. Every request dispatches
// through the security passage attached by the auth middleware before it
// reaches the executor.
type DataHandler struct {
	exec *service.Executor
}

func NewDataHandler(exec *service.Executor) *DataHandler {
	return &DataHandler{exec: exec}
}

// List handles GET /v1/tables/:table.
func (h *DataHandler) List(c *gin.Context) {
	req := &model.CrudRequest{
		Table:     c.Param("table"),
		Operation: model.OpList,
	}
	if err := parseListQuery(c, req); err != nil {
		c.Error(err)
		return
	}
	h.run(c, req)
}

// Read handles GET /v1/tables/:table/:key.
func (h *DataHandler) Read(c *gin.Context) {
	h.run(c, &model.CrudRequest{
		Table:     c.Param("table"),
		Operation: model.OpRead,
		Key:       c.Param("key"),
	})
}

// Create handles POST /v1/tables/:table.
func (h *DataHandler) Create(c *gin.Context) {
	payload, err := bindPayload(c)
	if err != nil {
		c.Error(err)
		return
	}
	h.run(c, &model.CrudRequest{
		Table:     c.Param("table"),
		Operation: model.OpCreate,
		Payload:   payload,
	})
}

// Update handles PATCH /v1/tables/:table/:key.
func (h *DataHandler) Update(c *gin.Context) {
	payload, err := bindPayload(c)
	if err != nil {
		c.Error(err)
		return
	}
	h.run(c, &model.CrudRequest{
		Table:     c.Param("table"),
		Operation: model.OpUpdate,
		Key:       c.Param("key"),
		Payload:   payload,
	})
}

// Delete handles DELETE /v1/tables/:table/:key.
func (h *DataHandler) Delete(c *gin.Context) {
	h.run(c, &model.CrudRequest{
		Table:     c.Param("table"),
		Operation: model.OpDelete,
		Key:       c.Param("key"),
	})
}

func (h *DataHandler) run(c *gin.Context, req *model.CrudRequest) {
	passage, ok := middleware.PassageFrom(c)
	if !ok {
		c.Error(apperrors.NewAuthRequired("authentication required"))
		return
	}
	if err := passage.Dispatch(); err != nil {
		c.Error(err)
		return
	}
	req.Actor = passage.Identity().Actor

	result, err := h.exec.Execute(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	// A matched key is part of the contract for single-row operations;
	// zero rows touched surfaces as not found.
	if req.Operation != model.OpList && req.Operation != model.OpCreate && result.RowCount == 0 {
		c.Error(apperrors.New(apperrors.ErrNotFound, "row not found", nil))
		return
	}

	switch req.Operation {
	case model.OpList:
		c.JSON(http.StatusOK, gin.H{
			"rows":  result.Rows,
			"count": result.RowCount,
			"total": result.Total,
		})
	case model.OpCreate:
		c.JSON(http.StatusCreated, gin.H{"key": result.Key})
	case model.OpRead:
		c.JSON(http.StatusOK, gin.H{"row": result.Rows[0]})
	default:
		c.JSON(http.StatusOK, gin.H{"affected": result.RowCount})
	}
}

func bindPayload(c *gin.Context) (map[string]any, error) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		return nil, apperrors.NewInvalidRequest("request body must be a JSON object")
	}
	if len(payload) == 0 {
		return nil, apperrors.NewInvalidRequest("request body must not be empty")
	}
	return payload, nil
}

// parseListQuery decodes filter, sort and pagination parameters. Filters use
// the form filter=column:op:value and may repeat; sort takes a column name,
// prefixed with "-" for descending order.
func parseListQuery(c *gin.Context, req *model.CrudRequest) error {
	for _, raw := range c.QueryArray("filter") {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 || parts[0] == "" {
			return apperrors.NewValidation("filter", "filters use the form column:op:value")
		}
		req.Filters = append(req.Filters, model.Filter{
			Column: parts[0],
			Op:     model.FilterOp(parts[1]),
			Value:  parts[2],
		})
	}
	if sort := c.Query("sort"); sort != "" {
		s := model.Sort{Column: sort}
		if strings.HasPrefix(sort, "-") {
			s.Column = sort[1:]
			s.Desc = true
		}
		req.Sort = &s
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return apperrors.NewValidation("limit", "limit must be a non-negative integer")
		}
		req.Page.Limit = n
	}
	if offset := c.Query("offset"); offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return apperrors.NewValidation("offset", "offset must be a non-negative integer")
		}
		req.Page.Offset = n
	}
	return nil
}
