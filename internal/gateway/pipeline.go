package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-gateway/internal/domain"
	"chat-gateway/internal/protocol"
	"chat-gateway/internal/store"
)

// Pipeline turns a message submission into a durable message and fans the
// result out to the room. Within one room, broadcast order follows
// persistence completion order; clients render by the durable timestamp.
type Pipeline struct {
	hub    *Hub
	store  store.Store
	bridge *Bridge
	logger *zap.Logger
	now    func() time.Time
}

func NewPipeline(hub *Hub, st store.Store, bridge *Bridge, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		hub:    hub,
		store:  st,
		bridge: bridge,
		logger: logger,
		now:    time.Now,
	}
}

// Submit persists the envelope and broadcasts it to every connection in the
// room, including the sender's other tabs. A persistence failure is reported
// to the sender only and never broadcast.
func (p *Pipeline) Submit(ctx context.Context, s *Session, env *protocol.Envelope) error {
	chatID, err := uuid.Parse(env.ChatID)
	if err != nil {
		return &domain.ValidationError{Reason: "invalid chat id"}
	}
	if !s.InRoom(chatID) {
		return &domain.AuthorizationError{ChatID: env.ChatID, UserID: s.UserID.String()}
	}
	if env.Content == "" && len(env.Files) == 0 {
		return &domain.ValidationError{Reason: "empty message"}
	}

	msg := &store.Message{
		ChatID:      chatID,
		UserID:      s.UserID,
		UserName:    s.UserName,
		Content:     env.Content,
		MessageType: domain.MessageTypeText,
	}
	if len(env.Files) > 0 {
		msg.MessageType = domain.MessageTypeFile
		if files, err := json.Marshal(env.Files); err == nil {
			msg.Files = files
		}
	}
	if env.ReplyToID != "" {
		replyTo, err := uuid.Parse(env.ReplyToID)
		if err != nil {
			return &domain.ValidationError{Reason: "invalid reply id"}
		}
		msg.ReplyToID = &replyTo
	}

	if err := p.store.CreateMessage(ctx, msg); err != nil {
		deliveryFailuresTotal.Inc()
		p.logger.Error("failed to persist message",
			zap.String("chatId", env.ChatID),
			zap.String("tempId", env.TempID),
			zap.Error(err))
		s.SendEvent(&protocol.Envelope{
			Type:   protocol.EventMessageStatus,
			TempID: env.TempID,
			ChatID: env.ChatID,
			Status: protocol.DeliveryFailed,
		})
		return nil
	}

	// Acknowledge to the submitting connection, correlating the temporary id
	// with the durable id.
	s.SendEvent(&protocol.Envelope{
		Type:      protocol.EventMessageStatus,
		TempID:    env.TempID,
		ChatID:    env.ChatID,
		MessageID: msg.MessageID.String(),
		Status:    protocol.DeliveryDelivered,
		Timestamp: msg.CreatedAt,
	})

	payload := &protocol.MessagePayload{
		MessageID: msg.MessageID.String(),
		ChatID:    env.ChatID,
		UserID:    s.UserID.String(),
		UserName:  s.UserName,
		Content:   env.Content,
		ReplyToID: env.ReplyToID,
		Files:     env.Files,
		CreatedAt: msg.CreatedAt,
		TempID:    env.TempID,
	}
	data, _ := json.Marshal(protocol.Envelope{
		Type:    protocol.EventNewMessage,
		ChatID:  env.ChatID,
		Message: payload,
	})
	p.broadcastRoom(ctx, chatID, data)
	messagesSentTotal.Inc()

	// Best effort; a failure here does not fail the send.
	if err := p.store.UpdateLastActivity(ctx, chatID); err != nil {
		p.logger.Warn("failed to update last activity",
			zap.String("chatId", env.ChatID),
			zap.Error(err))
	}
	return nil
}

// Edit updates a message's content and announces it with an explicit event
// type instead of piggybacking on new-message.
func (p *Pipeline) Edit(ctx context.Context, chatID, messageID uuid.UUID, userID uuid.UUID, content string) error {
	msg, err := p.store.GetMessage(ctx, messageID)
	if err != nil {
		return &domain.PersistenceError{Op: "load message", Err: err}
	}
	if msg.UserID != userID {
		return &domain.AuthorizationError{ChatID: chatID.String(), UserID: userID.String()}
	}
	msg.Content = content
	if err := p.store.UpdateMessage(ctx, msg); err != nil {
		return &domain.PersistenceError{Op: "update message", Err: err}
	}

	data, _ := json.Marshal(protocol.Envelope{
		Type:      protocol.EventMessageEdited,
		ChatID:    chatID.String(),
		MessageID: messageID.String(),
		Content:   content,
		UserID:    userID.String(),
		Timestamp: p.now(),
	})
	p.broadcastRoom(ctx, chatID, data)
	return nil
}

// Delete removes a message and announces the removal.
func (p *Pipeline) Delete(ctx context.Context, chatID, messageID, userID uuid.UUID) error {
	msg, err := p.store.GetMessage(ctx, messageID)
	if err != nil {
		return &domain.PersistenceError{Op: "load message", Err: err}
	}
	if msg.UserID != userID {
		return &domain.AuthorizationError{ChatID: chatID.String(), UserID: userID.String()}
	}
	if err := p.store.DeleteMessage(ctx, messageID); err != nil {
		return &domain.PersistenceError{Op: "delete message", Err: err}
	}

	data, _ := json.Marshal(protocol.Envelope{
		Type:      protocol.EventMessageDeleted,
		ChatID:    chatID.String(),
		MessageID: messageID.String(),
		UserID:    userID.String(),
		Timestamp: p.now(),
	})
	p.broadcastRoom(ctx, chatID, data)
	return nil
}

func (p *Pipeline) broadcastRoom(ctx context.Context, chatID uuid.UUID, data []byte) {
	p.hub.BroadcastRoom(chatID, data, nil)
	if p.bridge != nil {
		p.bridge.PublishRoom(ctx, chatID, data)
	}
}
