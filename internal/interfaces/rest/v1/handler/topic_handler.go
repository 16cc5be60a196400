package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/changes"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
)

// TopicHandler lets producers mark topics changed over HTTP.
type TopicHandler struct {
	relay  *relay.Service
	store  changes.ContentWriter
	logger logger.Logger
}

func NewTopicHandler(svc *relay.Service, store changes.ContentWriter, logger logger.Logger) *TopicHandler {
	return &TopicHandler{
		relay:  svc,
		store:  store,
		logger: logger.WithField("handler", "topic"),
	}
}

// MarkChanged handles POST /api/v1/topics/:topic/changed.
func (h *TopicHandler) MarkChanged(c *gin.Context) {
	topic := c.Param("topic")
	h.relay.MarkChanged(topic)

	c.JSON(http.StatusAccepted, gin.H{
		"status": "marked",
		"topic":  topic,
	})
}

// PutContent handles PUT /api/v1/topics/:topic/content. The body is stored
// as the topic's content and the topic is marked changed.
func (h *TopicHandler) PutContent(c *gin.Context) {
	topic := c.Param("topic")

	var payload hub.Payload
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "body must be a JSON object",
		})
		return
	}

	if err := h.store.PutContent(c.Request.Context(), topic, payload); err != nil {
		h.logger.Errorf("Failed to store content for %s: %v", topic, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to store content",
		})
		return
	}
	h.relay.MarkChanged(topic)

	c.JSON(http.StatusOK, gin.H{
		"status": "stored",
		"topic":  topic,
	})
}

// ListTopics reports subscriber counts and pending marks.
func (h *TopicHandler) ListTopics(c *gin.Context) {
	stats := h.relay.Stats()
	c.JSON(http.StatusOK, gin.H{
		"topics":  stats.Topics,
		"pending": stats.Pending,
	})
}

// ListConnections returns every live connection regardless of transport.
func (h *TopicHandler) ListConnections(c *gin.Context) {
	connections := h.relay.Connections()
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
	})
}
