package sse

import (
	"github.com/gin-gonic/gin"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/logger"
)

func InitSSERouter(
	logger logger.Logger,
	svc *relay.Service,
	cfg config.SSEConfig,
	envelope bool,
	rg *gin.RouterGroup,
) {
	sseHandler := NewServerSentEventHandler(svc, cfg, envelope, logger)

	rg.GET("/sse", sseHandler.Connect)

	apiGroup := rg.Group("/api/v1/sse")
	apiGroup.GET("/connections", sseHandler.GetConnections)
}
