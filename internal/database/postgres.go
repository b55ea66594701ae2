package database

import (
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chat-gateway/internal/config"
	"chat-gateway/internal/store"
)

// NewDB opens the postgres connection and runs migrations.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Server.Env == "dev" || cfg.Server.Env == "development" {
		logLevel = logger.Info
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(
		&store.Chat{},
		&store.ChatParticipant{},
		&store.Message{},
		&store.MessageRead{},
		&store.RefreshToken{},
	); err != nil {
		return nil, err
	}

	createIndexes(db)

	return db, nil
}

func createIndexes(db *gorm.DB) {
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_participant_unique
		ON chat_participants (chat_id, user_id) WHERE is_active = true`)

	db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_chat_created
		ON messages (chat_id, created_at DESC)`)

	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_message_read_unique
		ON message_reads (message_id, user_id)`)
}
