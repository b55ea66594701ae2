package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormStore struct {
	db *gorm.DB
}

// NewGormStore returns a Store backed by the given gorm connection.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateChat(ctx context.Context, chat *Chat, participantIDs []uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		seen := map[uuid.UUID]bool{}
		ids := append([]uuid.UUID{chat.CreatedBy}, participantIDs...)
		for _, userID := range ids {
			if seen[userID] {
				continue
			}
			seen[userID] = true
			participant := &ChatParticipant{
				ChatID:   chat.ChatID,
				UserID:   userID,
				IsActive: true,
			}
			if err := tx.Create(participant).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *gormStore) GetChat(ctx context.Context, chatID uuid.UUID) (*Chat, error) {
	var chat Chat
	err := s.db.WithContext(ctx).
		Preload("Participants", "is_active = true").
		First(&chat, "chat_id = ?", chatID).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *gormStore) GetUserChats(ctx context.Context, userID uuid.UUID) ([]Chat, error) {
	var chats []Chat
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_participants ON chat_participants.chat_id = chats.chat_id").
		Where("chat_participants.user_id = ? AND chat_participants.is_active = true", userID).
		Preload("Participants", "is_active = true").
		Order("chats.last_activity_at DESC").
		Find(&chats).Error
	return chats, err
}

func (s *gormStore) AddParticipants(ctx context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error {
	for _, userID := range userIDs {
		participant := &ChatParticipant{
			ChatID:   chatID,
			UserID:   userID,
			IsActive: true,
		}
		if err := s.db.WithContext(ctx).Create(participant).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *gormStore) RemoveParticipant(ctx context.Context, chatID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("is_active", false).Error
}

func (s *gormStore) IsParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ChatParticipant{}).
		Where("chat_id = ? AND user_id = ? AND is_active = true", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) UpdateLastActivity(ctx context.Context, chatID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&Chat{}).
		Where("chat_id = ?", chatID).
		Update("last_activity_at", time.Now()).Error
}

func (s *gormStore) CreateMessage(ctx context.Context, message *Message) error {
	return s.db.WithContext(ctx).Create(message).Error
}

func (s *gormStore) GetMessage(ctx context.Context, messageID uuid.UUID) (*Message, error) {
	var message Message
	err := s.db.WithContext(ctx).Preload("Reads").
		First(&message, "message_id = ?", messageID).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *gormStore) GetMessages(ctx context.Context, chatID uuid.UUID, limit, offset int) ([]Message, error) {
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Preload("Reads").
		Find(&messages).Error
	return messages, err
}

func (s *gormStore) UpdateMessage(ctx context.Context, message *Message) error {
	return s.db.WithContext(ctx).Save(message).Error
}

func (s *gormStore) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	return s.db.WithContext(ctx).Delete(&Message{}, "message_id = ?", messageID).Error
}

func (s *gormStore) MarkAsRead(ctx context.Context, messageID, userID uuid.UUID) error {
	read := &MessageRead{
		MessageID: messageID,
		UserID:    userID,
	}
	// A duplicate receipt is not an error; read-marking is idempotent.
	err := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		FirstOrCreate(read).Error
	return err
}

func (s *gormStore) MarkAllAsRead(ctx context.Context, chatID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Model(&ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("last_read_at", time.Now()).Error
}

func (s *gormStore) GetUnreadCount(ctx context.Context, chatID, userID uuid.UUID) (int64, error) {
	var participant ChatParticipant
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&participant).Error
	if err != nil {
		return 0, err
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&Message{}).
		Where("chat_id = ? AND created_at > ? AND user_id != ?", chatID, participant.LastReadAt, userID).
		Count(&count).Error
	return count, err
}

func (s *gormStore) SaveRefreshToken(ctx context.Context, token *RefreshToken) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *gormStore) ValidateRefreshToken(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("user_id = ? AND token = ? AND expires_at > ?", userID, token, time.Now()).
		Count(&count).Error
	return count > 0, err
}

func (s *gormStore) DeleteRefreshToken(ctx context.Context, userID uuid.UUID, token string) error {
	return s.db.WithContext(ctx).
		Delete(&RefreshToken{}, "user_id = ? AND token = ?", userID, token).Error
}

func (s *gormStore) RevokeRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).
		Delete(&RefreshToken{}, "user_id = ?", userID).Error
}
