package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"chat-gateway/internal/config"
	"chat-gateway/internal/database"
	"chat-gateway/internal/router"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting chat gateway",
		zap.Int("port", cfg.Server.Port),
		zap.String("basePath", cfg.Server.BasePath),
		zap.String("env", cfg.Server.Env))

	db, err := database.NewDB(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("PostgreSQL connected")

	redisClient, err := database.NewRedis(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	logger.Info("Redis connected")

	r, bridge := router.Setup(cfg, db, redisClient, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go bridge.Run(ctx)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Chat gateway listening", zap.String("address", addr))
	if err := r.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if cfg.Server.Env == "production" {
		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(level)
		return zcfg.Build()
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}
