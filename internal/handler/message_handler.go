package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/gateway"
	"chat-gateway/internal/store"
)

type MessageHandler struct {
	store    store.Store
	pipeline *gateway.Pipeline
	logger   *zap.Logger
}

func NewMessageHandler(st store.Store, pipeline *gateway.Pipeline, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{store: st, pipeline: pipeline, logger: logger}
}

// GetMessages returns a page of chat history, newest first.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}

	isParticipant, err := h.store.IsParticipant(c.Request.Context(), chatID, userID)
	if err != nil || !isParticipant {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   gin.H{"code": "FORBIDDEN", "message": "Not a participant"},
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	messages, err := h.store.GetMessages(c.Request.Context(), chatID, limit, offset)
	if err != nil {
		h.logger.Error("failed to get messages",
			zap.String("chatId", chatID.String()),
			zap.Error(err))
		internalError(c, "Failed to get messages")
		return
	}

	c.JSON(http.StatusOK, messages)
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// EditMessage updates a message body. Only the author may edit; the room is
// notified over the realtime channel.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}
	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		badRequest(c, "Invalid message ID")
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	if err := h.pipeline.Edit(c.Request.Context(), chatID, messageID, userID, req.Content); err != nil {
		h.writePipelineError(c, err, "Failed to edit message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteMessage removes a message. Only the author may delete.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}
	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		badRequest(c, "Invalid message ID")
		return
	}

	if err := h.pipeline.Delete(c.Request.Context(), chatID, messageID, userID); err != nil {
		h.writePipelineError(c, err, "Failed to delete message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllAsRead marks every message in the chat read for the caller.
func (h *MessageHandler) MarkAllAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}

	if err := h.store.MarkAllAsRead(c.Request.Context(), chatID, userID); err != nil {
		h.logger.Error("failed to mark messages read", zap.Error(err))
		internalError(c, "Failed to mark messages as read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetUnreadCount returns how many messages in the chat the caller has not
// read yet.
func (h *MessageHandler) GetUnreadCount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}

	count, err := h.store.GetUnreadCount(c.Request.Context(), chatID, userID)
	if err != nil {
		h.logger.Error("failed to get unread count", zap.Error(err))
		internalError(c, "Failed to get unread count")
		return
	}

	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

func (h *MessageHandler) writePipelineError(c *gin.Context, err error, fallback string) {
	var authzErr *domain.AuthorizationError
	if errors.As(err, &authzErr) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   gin.H{"code": "FORBIDDEN", "message": "Not the message author"},
		})
		return
	}
	h.logger.Error("message operation failed", zap.Error(err))
	internalError(c, fallback)
}
