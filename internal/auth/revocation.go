package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList answers whether an access token has been revoked before its
// natural expiry.
type RevocationList interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// RedisRevocationList stores revoked tokens with a TTL matching the token's
// remaining lifetime, so the list cleans itself up.
type RedisRevocationList struct {
	rdb *redis.Client
}

func NewRedisRevocationList(rdb *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{rdb: rdb}
}

func revokedKey(token string) string { return "auth:revoked:" + token }

func (l *RedisRevocationList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return l.rdb.Set(ctx, revokedKey(token), "1", ttl).Err()
}

func (l *RedisRevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := l.rdb.Exists(ctx, revokedKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemoryRevocationList is the in-process equivalent used in tests and
// single-instance deployments without Redis.
type MemoryRevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryRevocationList() *MemoryRevocationList {
	return &MemoryRevocationList{revoked: make(map[string]time.Time)}
}

func (l *MemoryRevocationList) Revoke(_ context.Context, token string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[token] = time.Now().Add(ttl)
	return nil
}

func (l *MemoryRevocationList) IsRevoked(_ context.Context, token string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	until, ok := l.revoked[token]
	return ok && time.Now().Before(until), nil
}
