package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-gateway/internal/presence"
)

type PresenceHandler struct {
	registry presence.Registry
	logger   *zap.Logger
}

func NewPresenceHandler(registry presence.Registry, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{registry: registry, logger: logger}
}

// GetUserStatus returns the presence record for one user. Users never seen by
// the registry read as offline.
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		badRequest(c, "Invalid user ID")
		return
	}

	status, err := h.registry.GetStatus(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to read status", zap.Error(err))
		internalError(c, "Failed to get status")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"userId":    userID.String(),
		"status":    status.Status,
		"changedAt": status.ChangedAt,
	})
}

// GetRoomMembers lists the users currently connected to a chat room.
func (h *PresenceHandler) GetRoomMembers(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}

	members, err := h.registry.ListRoomMembers(c.Request.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to list room members", zap.Error(err))
		internalError(c, "Failed to get room members")
		return
	}

	c.JSON(http.StatusOK, gin.H{"chatId": chatID.String(), "members": members})
}

// GetTyping lists the users typing in a chat right now.
func (h *PresenceHandler) GetTyping(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}

	typing, err := h.registry.ListTyping(c.Request.Context(), chatID)
	if err != nil {
		h.logger.Error("failed to list typing users", zap.Error(err))
		internalError(c, "Failed to get typing users")
		return
	}

	c.JSON(http.StatusOK, gin.H{"chatId": chatID.String(), "typing": typing})
}
