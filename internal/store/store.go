// Package store is the persistence collaborator: chats, durable membership,
// messages, read receipts, and refresh tokens. The gateway and pipeline only
// see the Store interface; tests substitute fakes.
package store

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	// Chats and membership.
	CreateChat(ctx context.Context, chat *Chat, participantIDs []uuid.UUID) error
	GetChat(ctx context.Context, chatID uuid.UUID) (*Chat, error)
	GetUserChats(ctx context.Context, userID uuid.UUID) ([]Chat, error)
	AddParticipants(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error
	RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error
	IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error)
	UpdateLastActivity(ctx context.Context, chatID uuid.UUID) error

	// Messages.
	CreateMessage(ctx context.Context, message *Message) error
	GetMessage(ctx context.Context, messageID uuid.UUID) (*Message, error)
	GetMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]Message, error)
	UpdateMessage(ctx context.Context, message *Message) error
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error

	// Read receipts.
	MarkAsRead(ctx context.Context, messageID, userID uuid.UUID) error
	MarkAllAsRead(ctx context.Context, chatID, userID uuid.UUID) error
	GetUnreadCount(ctx context.Context, chatID, userID uuid.UUID) (int64, error)

	// Refresh tokens.
	SaveRefreshToken(ctx context.Context, token *RefreshToken) error
	ValidateRefreshToken(ctx context.Context, userID uuid.UUID, token string) (bool, error)
	DeleteRefreshToken(ctx context.Context, userID uuid.UUID, token string) error
	RevokeRefreshTokens(ctx context.Context, userID uuid.UUID) error
}
