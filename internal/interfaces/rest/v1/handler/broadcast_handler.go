package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-topic-relay/internal/application/relay"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
)

// BroadcastHandler pushes an announcement to every connection, whatever
// topic it is subscribed to.
type BroadcastHandler struct {
	relay  *relay.Service
	logger logger.Logger
}

type BroadcastRequest struct {
	Type string `json:"type"`
	Data any    `json:"data" binding:"required"`
}

func NewBroadcastHandler(svc *relay.Service, logger logger.Logger) *BroadcastHandler {
	return &BroadcastHandler{
		relay:  svc,
		logger: logger.WithField("handler", "broadcast"),
	}
}

func (h *BroadcastHandler) Broadcast(c *gin.Context) {
	var req BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request format: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid message format",
		})
		return
	}

	msgType := hub.MessageType(req.Type)
	if msgType == "" {
		msgType = hub.MessageTypeAnnouncement
	}
	message := hub.NewMessageBuilder().
		WithType(msgType).
		WithData(req.Data).
		Build()

	delivered := h.relay.BroadcastAll(c.Request.Context(), message)
	h.logger.Infof("Broadcast %s delivered to %d connections", message.ID, delivered)

	c.JSON(http.StatusOK, gin.H{
		"status":      "sent",
		"message_id":  message.ID,
		"connections": delivered,
	})
}
