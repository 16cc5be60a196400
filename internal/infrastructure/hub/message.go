package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeConnected    MessageType = "connected"
	MessageTypeContent      MessageType = "content"
	MessageTypeKeepAlive    MessageType = "keepalive"
	MessageTypeError        MessageType = "error"
	MessageTypeAnnouncement MessageType = "announcement"
)

type MessageBuilder struct {
	message *Message
}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{
		message: &Message{
			Headers: make(map[string]string),
		},
	}
}

func (mb *MessageBuilder) WithID(id string) *MessageBuilder {
	mb.message.ID = id
	return mb
}

func (mb *MessageBuilder) WithType(msgType MessageType) *MessageBuilder {
	mb.message.Type = string(msgType)
	return mb
}

func (mb *MessageBuilder) WithTopic(topic string) *MessageBuilder {
	mb.message.Topic = topic
	return mb
}

func (mb *MessageBuilder) WithData(data any) *MessageBuilder {
	mb.message.Data = data
	return mb
}

func (mb *MessageBuilder) WithHeader(key, value string) *MessageBuilder {
	if mb.message.Headers == nil {
		mb.message.Headers = make(map[string]string)
	}
	mb.message.Headers[key] = value
	return mb
}

func (mb *MessageBuilder) WithTimestamp() *MessageBuilder {
	return mb.WithHeader("timestamp", time.Now().UTC().Format(time.RFC3339))
}

// Build fills in an ID and timestamp when they were not set.
func (mb *MessageBuilder) Build() *Message {
	if mb.message.ID == "" {
		mb.message.ID = uuid.NewString()
	}
	if _, exists := mb.message.Headers["timestamp"]; !exists {
		mb.WithTimestamp()
	}
	return mb.message
}

// ContentMessage carries the current content of topic.
func ContentMessage(topic string, payload Payload) *Message {
	return NewMessageBuilder().
		WithType(MessageTypeContent).
		WithTopic(topic).
		WithData(payload).
		Build()
}

func ConnectedMessage(connID, topic string) *Message {
	return NewMessageBuilder().
		WithType(MessageTypeConnected).
		WithTopic(topic).
		WithData(map[string]any{
			"connection_id": connID,
			"topic":         topic,
		}).
		Build()
}

func KeepAliveMessage() *Message {
	return NewMessageBuilder().
		WithType(MessageTypeKeepAlive).
		WithData(map[string]any{
			"timestamp": time.Now().Unix(),
		}).
		Build()
}

func ErrorMessage(code, message string) *Message {
	return NewMessageBuilder().
		WithType(MessageTypeError).
		WithData(map[string]any{
			"code":    code,
			"message": message,
		}).
		Build()
}

// ValidateMessage checks a message before it is fanned out so that an
// unserializable payload fails once instead of once per connection.
func ValidateMessage(message *Message) error {
	if message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if message.ID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}
	if message.Type == "" {
		return fmt.Errorf("message type cannot be empty")
	}
	if message.Data != nil {
		if _, err := json.Marshal(message.Data); err != nil {
			return fmt.Errorf("message data must be JSON serializable: %w", err)
		}
	}
	return nil
}

// EncodeFrame renders message for the wire: the bare Data by default, or
// the whole envelope.
func EncodeFrame(message *Message, envelope bool) ([]byte, error) {
	if envelope {
		return json.Marshal(message)
	}
	return json.Marshal(message.Data)
}
