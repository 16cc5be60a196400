package websocket

import (
	"github.com/gin-gonic/gin"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/logger"
)

// InitWebSocketRouter initializes WebSocket routes
func InitWebSocketRouter(
	logger logger.Logger,
	svc *relay.Service,
	cfg config.WebSocketConfig,
	envelope bool,
	rg *gin.RouterGroup,
) {
	wsHandler := NewWebSocketHandler(svc, cfg, envelope, logger)

	rg.GET("/ws", wsHandler.Connect)
	rg.GET("/tables", wsHandler.Connect)

	apiGroup := rg.Group("/api/v1/ws")
	apiGroup.GET("/connections", wsHandler.GetConnections)
}
