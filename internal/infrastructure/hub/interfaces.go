package hub

import "context"

// Connection represents one client link (SSE, WebSocket, ...).
type Connection interface {
	ID() string
	Type() string
	Send(ctx context.Context, message *Message) error
	SendText(ctx context.Context, text string) error
	// Receive blocks until the peer sends data or the link ends. A graceful
	// end yields ErrDisconnected, anything else a *TransportError. A
	// cancelled ctx returns ctx.Err() and leaves pending input queued.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
	IsClosed() bool
	Context() context.Context
}

// Payload is the structured content pushed for a topic.
type Payload map[string]any

// Message is what travels through connections.
type Message struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Topic   string            `json:"topic,omitempty"`
	Data    any               `json:"data"`
	Headers map[string]string `json:"headers,omitempty"`
}
