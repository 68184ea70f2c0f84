package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinichat/config"
	"clinichat/internal/service"
	"clinichat/internal/storage"
	"clinichat/internal/transport/websocket"
	"clinichat/pkg/metrics"
)

type Handler struct {
	services    *service.Services
	logger      *zap.Logger
	config      *config.Config
	chatHub     *websocket.ChatHub
	fileStorage storage.FileStorage
}

func NewHandler(services *service.Services, logger *zap.Logger, config *config.Config, chatHub *websocket.ChatHub, fileStorage storage.FileStorage) *Handler {
	return &Handler{
		services:    services,
		logger:      logger,
		config:      config,
		chatHub:     chatHub,
		fileStorage: fileStorage,
	}
}

func (h *Handler) InitRoutes(router *gin.Engine) {
	router.Use(h.loggerMiddleware())

	router.Use(h.errorMiddleware())

	router.Use(h.corsMiddleware())

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.register)
			auth.POST("/login", h.login)

			me := auth.Group("", h.authMiddleware())
			{
				me.GET("/me", h.getProfile)
				me.PUT("/me", h.updateProfile)
				me.GET("/agents", h.listAgentAccounts)
			}
		}

		chat := api.Group("/chat")
		chat.Use(h.authMiddleware())
		{
			sessions := chat.Group("/sessions")
			{
				sessions.GET("/", h.listSessions)
				sessions.GET("/:id", h.getSession)
				sessions.GET("/:id/messages", h.getMessages)
				sessions.POST("/:id/assign", h.assignSession)
				sessions.POST("/:id/end", h.endSession)
			}

			chat.GET("/queue", h.getQueue)
			chat.GET("/agents", h.getAgents)
			chat.GET("/status", h.getOperatingStatus)

			chat.POST("/attachments", h.uploadAttachment)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"name":    h.config.Name,
			"version": h.config.Version,
		})
	})

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// WebSocket chat endpoint; the hub handles its own frame-level auth
	router.GET("/ws/chat", h.chatHub.HandleWebSocket)
}
