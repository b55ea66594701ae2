package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chat-gateway/internal/domain"
)

// RedisRegistry backs the registry with Redis so presence survives a gateway
// restart and is shared across instances. Typing entries use a per-key TTL;
// Redis handles expiry, no sweep needed.
type RedisRegistry struct {
	rdb *redis.Client
}

func NewRedisRegistry(rdb *redis.Client) *RedisRegistry {
	return &RedisRegistry{rdb: rdb}
}

func statusKey(userID uuid.UUID) string {
	return "presence:user:" + userID.String()
}

func typingKey(chatID, userID uuid.UUID) string {
	return fmt.Sprintf("typing:%s:%s", chatID, userID)
}

func roomKey(chatID uuid.UUID) string {
	return "room:" + chatID.String()
}

func (r *RedisRegistry) SetStatus(ctx context.Context, userID uuid.UUID, status domain.PresenceStatus) error {
	data, err := json.Marshal(Status{Status: status, ChangedAt: time.Now()})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, statusKey(userID), data, 0).Err()
}

func (r *RedisRegistry) GetStatus(ctx context.Context, userID uuid.UUID) (Status, error) {
	data, err := r.rdb.Get(ctx, statusKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Status{Status: domain.StatusOffline}, nil
	}
	if err != nil {
		return Status{}, err
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return Status{Status: domain.StatusOffline}, nil
	}
	return st, nil
}

func (r *RedisRegistry) SetTyping(ctx context.Context, chatID, userID uuid.UUID, isTyping bool) error {
	if !isTyping {
		return r.rdb.Del(ctx, typingKey(chatID, userID)).Err()
	}
	return r.rdb.Set(ctx, typingKey(chatID, userID), "1", TypingTTL).Err()
}

func (r *RedisRegistry) ListTyping(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	keys, err := r.rdb.Keys(ctx, fmt.Sprintf("typing:%s:*", chatID)).Result()
	if err != nil {
		return nil, err
	}
	prefix := len(fmt.Sprintf("typing:%s:", chatID))
	users := make([]uuid.UUID, 0, len(keys))
	for _, key := range keys {
		if len(key) <= prefix {
			continue
		}
		userID, err := uuid.Parse(key[prefix:])
		if err != nil {
			continue
		}
		users = append(users, userID)
	}
	return users, nil
}

func (r *RedisRegistry) AddToRoom(ctx context.Context, chatID, userID uuid.UUID) error {
	return r.rdb.SAdd(ctx, roomKey(chatID), userID.String()).Err()
}

func (r *RedisRegistry) RemoveFromRoom(ctx context.Context, chatID, userID uuid.UUID) error {
	return r.rdb.SRem(ctx, roomKey(chatID), userID.String()).Err()
}

func (r *RedisRegistry) ListRoomMembers(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	raw, err := r.rdb.SMembers(ctx, roomKey(chatID)).Result()
	if err != nil {
		return nil, err
	}
	users := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		userID, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		users = append(users, userID)
	}
	return users, nil
}
