package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chat-gateway/internal/config"
)

// NewRedis connects to Redis and verifies the connection with a ping.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	url := cfg.Redis.URL
	if url == "" {
		url = "redis://localhost:6379/0"
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
