package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-gateway/internal/auth"
)

type AuthHandler struct {
	auth   *auth.Service
	logger *zap.Logger
}

func NewAuthHandler(svc *auth.Service, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: svc, logger: logger}
}

type LoginRequest struct {
	UserID string `json:"userId" binding:"required"`
	Name   string `json:"name"`
}

// Login issues a credential pair directly. The route is registered outside
// production only; real deployments front this service with the identity
// provider.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "Invalid user ID")
		return
	}

	pair, err := h.auth.IssuePair(c.Request.Context(), userID, req.Name)
	if err != nil {
		h.logger.Error("failed to issue token pair", zap.Error(err))
		internalError(c, "Failed to issue tokens")
		return
	}

	c.JSON(http.StatusOK, pair)
}

type RefreshRequest struct {
	UserID       string `json:"userId" binding:"required"`
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh exchanges a refresh token for a new access/refresh pair. The old
// refresh token is consumed on success.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		badRequest(c, "Invalid user ID")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), userID, req.RefreshToken)
	if err != nil {
		h.logger.Warn("refresh exchange rejected",
			zap.String("userId", req.UserID),
			zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   gin.H{"code": "UNAUTHORIZED", "message": "Invalid refresh token"},
		})
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Logout revokes the presented access token and every refresh token the user
// holds.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if token := c.GetString("token"); token != "" {
		if err := h.auth.Revoke(c.Request.Context(), token); err != nil {
			h.logger.Warn("failed to revoke access token", zap.Error(err))
		}
	}
	if err := h.auth.RevokeRefreshTokens(c.Request.Context(), userID); err != nil {
		h.logger.Error("failed to revoke refresh tokens", zap.Error(err))
		internalError(c, "Failed to log out")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
