package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"chat-gateway/internal/auth"
	"chat-gateway/internal/config"
	"chat-gateway/internal/gateway"
	"chat-gateway/internal/handler"
	"chat-gateway/internal/middleware"
	"chat-gateway/internal/presence"
	"chat-gateway/internal/store"
)

// Setup builds the full engine: middleware, collaborators, handlers, routes.
// The returned bridge must be run by the caller so remote broadcasts flow.
func Setup(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, logger *zap.Logger) (*gin.Engine, *gateway.Bridge) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	r.Use(middleware.Metrics())

	st := store.NewGormStore(db)
	registry := presence.NewRedisRegistry(redisClient)
	revocation := auth.NewRedisRevocationList(redisClient)
	authService := auth.NewService(st, revocation, cfg.Auth.SecretKey, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, logger)

	hub := gateway.NewHub(logger)
	bridge := gateway.NewBridge(redisClient, hub, logger)
	pipeline := gateway.NewPipeline(hub, st, bridge, logger)
	gw := gateway.New(hub, registry, st, authService, pipeline, bridge, logger)

	chatHandler := handler.NewChatHandler(st, logger)
	messageHandler := handler.NewMessageHandler(st, pipeline, logger)
	presenceHandler := handler.NewPresenceHandler(registry, logger)
	authHandler := handler.NewAuthHandler(authService, logger)
	healthHandler := handler.NewHealthHandler(db, redisClient)

	// Health endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.Server.BasePath)
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)

		// WebSocket handshake authenticates itself from the token query
		// parameter, so it sits outside the auth middleware.
		api.GET("/ws", gw.HandleWS)

		api.POST("/auth/refresh", authHandler.Refresh)
		if cfg.Server.Env != "production" {
			api.POST("/auth/login", authHandler.Login)
		}

		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware(authService))
		{
			authenticated.POST("/auth/logout", authHandler.Logout)

			// Chat routes
			authenticated.POST("", chatHandler.CreateChat)
			authenticated.GET("/my", chatHandler.GetMyChats)
			authenticated.GET("/:chatId", chatHandler.GetChat)
			authenticated.POST("/:chatId/participants", chatHandler.AddParticipants)
			authenticated.DELETE("/:chatId/participants/:userId", chatHandler.RemoveParticipant)

			// Message routes
			authenticated.GET("/messages/:chatId", messageHandler.GetMessages)
			authenticated.PUT("/messages/:chatId/:messageId", messageHandler.EditMessage)
			authenticated.DELETE("/messages/:chatId/:messageId", messageHandler.DeleteMessage)
			authenticated.POST("/messages/:chatId/read", messageHandler.MarkAllAsRead)
			authenticated.GET("/messages/:chatId/unread", messageHandler.GetUnreadCount)

			// Presence routes
			authenticated.GET("/presence/status/:userId", presenceHandler.GetUserStatus)
			authenticated.GET("/presence/room/:chatId", presenceHandler.GetRoomMembers)
			authenticated.GET("/presence/typing/:chatId", presenceHandler.GetTyping)
		}
	}

	return r, bridge
}
