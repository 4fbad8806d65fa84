package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/model"
	"github.com/tablegate/tablegate/internal/pkg/apperrors"
	"github.com/tablegate/tablegate/internal/repository"
	"github.com/tablegate/tablegate/internal/service"
)

// AuditHandler serves read access to the audit trail and the login/session
// ledger. All its routes sit behind the admin key middleware.
type AuditHandler struct {
	audit  *service.AuditService
	ledger *service.LedgerService
}

func NewAuditHandler(audit *service.AuditService, ledger *service.LedgerService) *AuditHandler {
	return &AuditHandler{audit: audit, ledger: ledger}
}

// Records handles GET /v1/audit/records.
func (h *AuditHandler) Records(c *gin.Context) {
	filter := repository.ListFilter{
		Table: c.Query("table"),
		Actor: c.Query("actor"),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = model.AuditStatus(status)
	}
	if from, ok := parseTime(c.Query("from")); ok {
		filter.From = &from
	}
	if to, ok := parseTime(c.Query("to")); ok {
		filter.To = &to
	}
	filter.Limit = parseLimit(c.Query("limit"), 100)

	records, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrStorageFailure, "audit trail unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records, "count": len(records)})
}

// Logins handles GET /v1/audit/logins.
func (h *AuditHandler) Logins(c *gin.Context) {
	attempts, err := h.ledger.Attempts(c.Request.Context(), c.Query("username"), parseLimit(c.Query("limit"), 100))
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrStorageFailure, "login ledger unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "count": len(attempts)})
}

// Sessions handles GET /v1/audit/sessions.
func (h *AuditHandler) Sessions(c *gin.Context) {
	sessions, err := h.ledger.Sessions(c.Request.Context(), parseLimit(c.Query("limit"), 100))
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrStorageFailure, "session ledger unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// parseTime accepts RFC3339 or a unix epoch in seconds.
func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(epoch, 0).UTC(), true
	}
	return time.Time{}, false
}

func parseLimit(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
