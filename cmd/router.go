package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/content"
	"go-topic-relay/internal/infrastructure/logger"
	"go-topic-relay/internal/interfaces/middleware"
	"go-topic-relay/internal/interfaces/rest/v1/handler"
	"go-topic-relay/internal/interfaces/sse"
	"go-topic-relay/internal/interfaces/websocket"
)

func InitRouter(cfg *config.Config, svc *relay.Service, store content.Store, log logger.Logger) http.Handler {
	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	rootGroup := router.Group("")

	rootGroup.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{})
	})

	rootGroup.GET("/hub/status", func(c *gin.Context) {
		stats := svc.Stats()
		c.JSON(http.StatusOK, gin.H{
			"status":        "healthy",
			"relay_running": stats.Running,
			"connections":   stats.Connections,
			"topics":        len(stats.Topics),
			"pending":       len(stats.Pending),
		})
	})

	topicHandler := handler.NewTopicHandler(svc, store, log)
	broadcastHandler := handler.NewBroadcastHandler(svc, log)

	apiGroup := rootGroup.Group("/api/v1")
	apiGroup.GET("/topics", topicHandler.ListTopics)
	apiGroup.GET("/connections", topicHandler.ListConnections)

	writes := apiGroup.Group("", middleware.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	{
		writes.POST("/topics/:topic/changed", topicHandler.MarkChanged)
		writes.PUT("/topics/:topic/content", topicHandler.PutContent)
		writes.POST("/broadcast", broadcastHandler.Broadcast)
	}

	sse.InitSSERouter(log, svc, cfg.SSE, cfg.Relay.Envelope, rootGroup)
	websocket.InitWebSocketRouter(log, svc, cfg.WebSocket, cfg.Relay.Envelope, rootGroup)

	return router
}
