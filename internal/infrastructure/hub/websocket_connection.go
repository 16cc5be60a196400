package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"go-topic-relay/internal/infrastructure/logger"
)

type WebSocketOptions struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
	ReadLimit  int64
	// Envelope sends the whole Message instead of its Data.
	Envelope bool
}

func DefaultWebSocketOptions() WebSocketOptions {
	return WebSocketOptions{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: 54 * time.Second,
		ReadLimit:  4096,
	}
}

type frame struct {
	kind int
	data []byte
}

// WebSocketConnection implements Connection on top of a gorilla websocket.
// A write pump owns all data writes; a read pump feeds Receive.
type WebSocketConnection struct {
	id   string
	conn *websocket.Conn
	opts WebSocketOptions

	ctx    context.Context
	cancel context.CancelFunc

	closed   bool
	closeErr error
	closedMu sync.RWMutex

	logger logger.Logger

	send    chan frame
	inbound chan []byte
}

func NewWebSocketConnection(
	id string,
	conn *websocket.Conn,
	opts WebSocketOptions,
	log logger.Logger,
) *WebSocketConnection {
	ctx, cancel := context.WithCancel(context.Background())

	wsConn := &WebSocketConnection{
		id:      id,
		conn:    conn,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.WithField("connection_id", id),
		send:    make(chan frame, 256),
		inbound: make(chan []byte, 16),
	}

	wsConn.setupWebSocket()

	go wsConn.writePump()
	go wsConn.readPump()

	return wsConn
}

func (c *WebSocketConnection) ID() string { return c.id }

func (c *WebSocketConnection) Type() string { return "websocket" }

// Send queues message as one JSON text frame.
func (c *WebSocketConnection) Send(ctx context.Context, message *Message) error {
	data, err := EncodeFrame(message, c.opts.Envelope)
	if err != nil {
		return fmt.Errorf("encode message %s: %w", message.ID, err)
	}
	return c.enqueue(ctx, frame{kind: websocket.TextMessage, data: data})
}

func (c *WebSocketConnection) SendText(ctx context.Context, text string) error {
	return c.enqueue(ctx, frame{kind: websocket.TextMessage, data: []byte(text)})
}

func (c *WebSocketConnection) enqueue(ctx context.Context, f frame) error {
	if c.IsClosed() {
		return &TransportError{ConnID: c.id, Op: "send", Err: ErrClosed}
	}

	select {
	case c.send <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return &TransportError{ConnID: c.id, Op: "send", Err: ErrClosed}
	}
}

func (c *WebSocketConnection) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.ctx.Done():
		return nil, c.err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close sends a normal-closure frame and tears the socket down.
func (c *WebSocketConnection) Close() error {
	c.shutdown(ErrDisconnected)
	return nil
}

func (c *WebSocketConnection) IsClosed() bool {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	return c.closed
}

func (c *WebSocketConnection) Context() context.Context {
	return c.ctx
}

func (c *WebSocketConnection) err() error {
	c.closedMu.RLock()
	defer c.closedMu.RUnlock()
	if c.closeErr != nil {
		return c.closeErr
	}
	return ErrDisconnected
}

// shutdown records the first terminal error and closes the socket once.
func (c *WebSocketConnection) shutdown(cause error) {
	c.closedMu.Lock()
	if c.closed {
		c.closedMu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause
	c.closedMu.Unlock()

	c.cancel()

	// WriteControl and Close may run concurrently with the write pump.
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.opts.WriteWait),
	)
	_ = c.conn.Close()

	if IsDisconnect(cause) {
		c.logger.Debug("WebSocket connection closed")
	} else {
		c.logger.Warnf("WebSocket connection closed: %v", cause)
	}
}

func (c *WebSocketConnection) setupWebSocket() {
	if c.opts.ReadLimit > 0 {
		c.conn.SetReadLimit(c.opts.ReadLimit)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})
}

func (c *WebSocketConnection) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
				c.shutdown(&TransportError{ConnID: c.id, Op: "write", Err: err})
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown(&TransportError{ConnID: c.id, Op: "ping", Err: err})
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

func (c *WebSocketConnection) readPump() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.shutdown(c.classifyReadError(err))
			return
		}

		select {
		case c.inbound <- data:
		default:
			c.logger.Debugf("Dropping %d inbound bytes, receiver is behind", len(data))
		}
	}
}

func (c *WebSocketConnection) classifyReadError(err error) error {
	if c.IsClosed() {
		return ErrDisconnected
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
	return &TransportError{ConnID: c.id, Op: "read", Err: err}
}
