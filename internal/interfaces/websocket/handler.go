package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
)

// WebSocketHandler upgrades subscription requests and runs their sessions.
type WebSocketHandler struct {
	relay    *relay.Service
	opts     hub.WebSocketOptions
	logger   logger.Logger
	upgrader websocket.Upgrader
}

func NewWebSocketHandler(
	svc *relay.Service,
	cfg config.WebSocketConfig,
	envelope bool,
	logger logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		relay: svc,
		opts: hub.WebSocketOptions{
			WriteWait:  cfg.WriteWait,
			PongWait:   cfg.PongWait,
			PingPeriod: cfg.PingPeriod(),
			ReadLimit:  cfg.ReadLimit,
			Envelope:   envelope,
		},
		logger: logger.WithField("handler", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

// Connect subscribes the upgraded connection to the topic named by the
// "topic" query parameter ("id" on the /tables route) and blocks until the
// session ends.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	topic := topicParam(c)
	if topic == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "topic is required",
		})
		return
	}

	if !h.relay.IsRunning() {
		h.logger.Error("Relay is not running")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
		})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Errorf("Failed to upgrade connection: %v", err)
		return
	}

	wsConn := hub.NewWebSocketConnection("ws-"+uuid.NewString(), conn, h.opts, h.logger)
	h.logger.Infof("WebSocket connection %s subscribing to %s", wsConn.ID(), topic)

	if err := h.relay.Serve(c.Request.Context(), wsConn, topic); err != nil {
		h.logger.Errorf("Session %s failed: %v", wsConn.ID(), err)
		_ = wsConn.Close()
		return
	}
	h.logger.Infof("WebSocket connection %s disconnected", wsConn.ID())
}

// GetConnections returns information about WebSocket connections
func (h *WebSocketHandler) GetConnections(c *gin.Context) {
	connections := h.relay.ConnectionsByType("websocket")
	connectionInfo := make([]gin.H, len(connections))
	for i, conn := range connections {
		connectionInfo[i] = gin.H{
			"id":     conn.ID(),
			"type":   conn.Type(),
			"closed": conn.IsClosed(),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total_connections": len(connections),
		"connections":       connectionInfo,
		"relay_running":     h.relay.IsRunning(),
	})
}

func topicParam(c *gin.Context) string {
	if topic := c.Query("topic"); topic != "" {
		return topic
	}
	return c.Query("id")
}
