// Package presence is the ephemeral key-value store for user status, per-chat
// typing sets, and per-chat online-member sets. It is the only mutable state
// shared between connections and is always accessed through the gateway.
package presence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chat-gateway/internal/domain"
)

// TypingTTL is how long a typing entry stays visible without a refresh.
const TypingTTL = 5 * time.Second

// Status is a user's presence record.
type Status struct {
	Status    domain.PresenceStatus `json:"status"`
	ChangedAt time.Time             `json:"changedAt"`
}

// Registry is the injectable presence abstraction. All operations are
// idempotent and safe for concurrent use; none may block the caller beyond a
// single in-memory access or one storage round trip. Typing entries
// self-expire after TypingTTL without an external sweep.
type Registry interface {
	SetStatus(ctx context.Context, userID uuid.UUID, status domain.PresenceStatus) error
	// GetStatus returns the user's record, defaulting to offline when the
	// user was never seen.
	GetStatus(ctx context.Context, userID uuid.UUID) (Status, error)

	SetTyping(ctx context.Context, chatID, userID uuid.UUID, isTyping bool) error
	// ListTyping returns users whose typing entry is younger than TypingTTL.
	ListTyping(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)

	AddToRoom(ctx context.Context, chatID, userID uuid.UUID) error
	RemoveFromRoom(ctx context.Context, chatID, userID uuid.UUID) error
	ListRoomMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)
}
