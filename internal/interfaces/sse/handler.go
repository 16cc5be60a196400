package sse

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/config"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
)

type ServerSentEventHandler struct {
	relay  *relay.Service
	opts   hub.SSEOptions
	logger logger.Logger
}

func NewServerSentEventHandler(
	svc *relay.Service,
	cfg config.SSEConfig,
	envelope bool,
	logger logger.Logger,
) *ServerSentEventHandler {
	return &ServerSentEventHandler{
		relay: svc,
		opts: hub.SSEOptions{
			KeepAlive: cfg.KeepAlive,
			Envelope:  envelope,
		},
		logger: logger.WithField("handler", "sse"),
	}
}

// Connect opens an event stream subscribed to the "topic" query parameter
// and blocks until the client goes away.
func (h *ServerSentEventHandler) Connect(c *gin.Context) {
	topic := c.Query("topic")
	if topic == "" {
		topic = c.Query("id")
	}
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

	// The server's write timeout would otherwise end the stream.
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debugf("Cannot clear write deadline: %v", err)
	}

	conn := hub.NewSSEConnection(c.Request.Context(), "sse-"+uuid.NewString(), c.Writer, h.opts, h.logger)
	c.Status(http.StatusOK)

	if err := conn.Send(c.Request.Context(), hub.ConnectedMessage(conn.ID(), topic)); err != nil {
		h.logger.Warnf("Failed to greet SSE connection %s: %v", conn.ID(), err)
		_ = conn.Close()
		return
	}

	h.logger.Infof("SSE connection %s subscribing to %s", conn.ID(), topic)
	if err := h.relay.Serve(c.Request.Context(), conn, topic); err != nil {
		h.logger.Errorf("Session %s failed: %v", conn.ID(), err)
		_ = conn.Close()
		return
	}
	h.logger.Infof("SSE connection %s disconnected", conn.ID())
}

// GetConnections returns information about SSE connections
func (h *ServerSentEventHandler) GetConnections(c *gin.Context) {
	connections := h.relay.ConnectionsByType("sse")
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
