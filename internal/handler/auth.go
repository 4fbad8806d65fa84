package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tablegate/tablegate/internal/pkg/apperrors"
	"github.com/tablegate/tablegate/internal/service"
)

type AuthHandler struct {
	accounts *service.AccountService
}

func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login handles POST /v1/auth/login. Success returns the one-time plaintext
// token; the server keeps only its hash.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("request body must be a JSON object with username and password"))
		return
	}

	token, sess, err := h.accounts.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

// Logout handles POST /v1/auth/logout, revoking the bearer token's session.
// Unknown tokens revoke to the same response as known ones.
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c.GetHeader("Authorization"))
	if err := h.accounts.Logout(c.Request.Context(), token); err != nil {
		c.Error(apperrors.New(apperrors.ErrStorageFailure, "logout unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged out"})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
