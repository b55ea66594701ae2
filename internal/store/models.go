package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chat-gateway/internal/domain"
)

// ChatType defines the kind of chat room.
type ChatType string

const (
	ChatTypeDM    ChatType = "DM"
	ChatTypeGroup ChatType = "GROUP"
)

// Chat represents a chat room.
type Chat struct {
	ChatID         uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"chatId"`
	ChatType       ChatType          `gorm:"type:varchar(20);not null" json:"chatType"`
	ChatName       string            `gorm:"type:varchar(100)" json:"chatName,omitempty"`
	CreatedBy      uuid.UUID         `gorm:"type:uuid;not null" json:"createdBy"`
	LastActivityAt time.Time         `gorm:"autoCreateTime" json:"lastActivityAt"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt      gorm.DeletedAt    `gorm:"index" json:"deletedAt,omitempty"`
	Participants   []ChatParticipant `gorm:"foreignKey:ChatID" json:"participants,omitempty"`
}

func (Chat) TableName() string { return "chats" }

// ChatParticipant is the durable membership record, distinct from the
// ephemeral online-member sets kept by the presence registry.
type ChatParticipant struct {
	ParticipantID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"participantId"`
	ChatID        uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_user" json:"chatId"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_user" json:"userId"`
	JoinedAt      time.Time `gorm:"autoCreateTime" json:"joinedAt"`
	LastReadAt    time.Time `gorm:"autoCreateTime" json:"lastReadAt"`
	IsActive      bool      `gorm:"default:true" json:"isActive"`
}

func (ChatParticipant) TableName() string { return "chat_participants" }

// Message is a durable chat message. Attachments are stored as a JSON blob;
// the wire envelope carries them structured.
type Message struct {
	MessageID   uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"messageId"`
	ChatID      uuid.UUID          `gorm:"type:uuid;not null;index:idx_chat_created" json:"chatId"`
	UserID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"userId"`
	UserName    string             `gorm:"type:varchar(100)" json:"userName,omitempty"`
	Content     string             `gorm:"type:text;not null" json:"content"`
	MessageType domain.MessageType `gorm:"type:varchar(20);default:'TEXT'" json:"messageType"`
	ReplyToID   *uuid.UUID         `gorm:"type:uuid;index" json:"replyToId,omitempty"`
	Files       []byte             `gorm:"type:jsonb" json:"files,omitempty"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt     `gorm:"index" json:"deletedAt,omitempty"`
	Reads       []MessageRead      `gorm:"foreignKey:MessageID" json:"reads,omitempty"`
}

func (Message) TableName() string { return "messages" }

// MessageRead records a per-user read receipt.
type MessageRead struct {
	ReadID    uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"readId"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index:idx_message_user" json:"messageId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_message_user" json:"userId"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"readAt"`
}

func (MessageRead) TableName() string { return "message_reads" }

// RefreshToken is the long-lived credential half. Rotated atomically with the
// access token on every refresh exchange.
type RefreshToken struct {
	TokenID   uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"tokenId"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"userId"`
	Token     string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }
