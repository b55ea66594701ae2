package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-gateway/internal/store"
)

type ChatHandler struct {
	store  store.Store
	logger *zap.Logger
}

func NewChatHandler(st store.Store, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{store: st, logger: logger}
}

type CreateChatRequest struct {
	ChatType       string   `json:"chatType" binding:"required,oneof=DM GROUP"`
	ChatName       string   `json:"chatName"`
	ParticipantIDs []string `json:"participantIds"`
}

// CreateChat creates a chat room with the caller as the first participant.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	participantIDs := make([]uuid.UUID, 0, len(req.ParticipantIDs))
	for _, idStr := range req.ParticipantIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			badRequest(c, "Invalid participant ID: "+idStr)
			return
		}
		participantIDs = append(participantIDs, id)
	}

	chat := &store.Chat{
		ChatType:  store.ChatType(req.ChatType),
		ChatName:  req.ChatName,
		CreatedBy: userID,
	}
	if err := h.store.CreateChat(c.Request.Context(), chat, participantIDs); err != nil {
		h.logger.Error("failed to create chat", zap.Error(err))
		internalError(c, "Failed to create chat")
		return
	}

	c.JSON(http.StatusCreated, chat)
}

// GetMyChats lists the chats the caller participates in, most recently
// active first.
func (h *ChatHandler) GetMyChats(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chats, err := h.store.GetUserChats(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to get user chats", zap.Error(err))
		internalError(c, "Failed to get chats")
		return
	}

	c.JSON(http.StatusOK, chats)
}

// GetChat returns one chat with its participant list; non-members get 403.
func (h *ChatHandler) GetChat(c *gin.Context) {
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
	if err != nil {
		internalError(c, "Failed to check membership")
		return
	}
	if !isParticipant {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   gin.H{"code": "FORBIDDEN", "message": "Not a participant"},
		})
		return
	}

	chat, err := h.store.GetChat(c.Request.Context(), chatID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   gin.H{"code": "NOT_FOUND", "message": "Chat not found"},
		})
		return
	}

	c.JSON(http.StatusOK, chat)
}

type AddParticipantsRequest struct {
	UserIDs []string `json:"userIds" binding:"required,min=1"`
}

// AddParticipants adds users to an existing chat.
func (h *ChatHandler) AddParticipants(c *gin.Context) {
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

	var req AddParticipantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	userIDs := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, idStr := range req.UserIDs {
		id, err := uuid.Parse(idStr)
		if err != nil {
			badRequest(c, "Invalid user ID: "+idStr)
			return
		}
		userIDs = append(userIDs, id)
	}

	if err := h.store.AddParticipants(c.Request.Context(), chatID, userIDs); err != nil {
		h.logger.Error("failed to add participants", zap.Error(err))
		internalError(c, "Failed to add participants")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RemoveParticipant removes a user from a chat. A user may always remove
// themselves; removing someone else requires membership too.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	callerID, ok := currentUserID(c)
	if !ok {
		return
	}

	chatID, err := uuid.Parse(c.Param("chatId"))
	if err != nil {
		badRequest(c, "Invalid chat ID")
		return
	}
	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		badRequest(c, "Invalid user ID")
		return
	}

	isParticipant, err := h.store.IsParticipant(c.Request.Context(), chatID, callerID)
	if err != nil || !isParticipant {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   gin.H{"code": "FORBIDDEN", "message": "Not a participant"},
		})
		return
	}

	if err := h.store.RemoveParticipant(c.Request.Context(), chatID, targetID); err != nil {
		h.logger.Error("failed to remove participant", zap.Error(err))
		internalError(c, "Failed to remove participant")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
