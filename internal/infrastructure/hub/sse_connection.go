package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/sse"

	"go-topic-relay/internal/infrastructure/logger"
)

type SSEOptions struct {
	KeepAlive time.Duration
	Envelope  bool
}

// SSEConnection implements Connection for Server-Sent Events. The stream is
// one-way, so Receive only ever reports the disconnect.
type SSEConnection struct {
	id     string
	writer http.ResponseWriter
	opts   SSEOptions

	ctx    context.Context
	cancel context.CancelFunc

	// writeMu serializes writes and guards closed so nothing touches the
	// ResponseWriter after Close returns.
	writeMu sync.Mutex
	closed  bool

	logger logger.Logger
}

// NewSSEConnection binds a stream to ctx, normally the request context, so
// the connection ends when the client goes away.
func NewSSEConnection(
	ctx context.Context,
	id string,
	w http.ResponseWriter,
	opts SSEOptions,
	log logger.Logger,
) *SSEConnection {
	rctx, cancel := context.WithCancel(ctx)

	conn := &SSEConnection{
		id:     id,
		writer: w,
		opts:   opts,
		ctx:    rctx,
		cancel: cancel,
		logger: log.WithField("connection_id", id),
	}

	conn.setupSSEHeaders()

	if opts.KeepAlive > 0 {
		go conn.keepAlive()
	}

	return conn
}

func (c *SSEConnection) ID() string { return c.id }

func (c *SSEConnection) Type() string { return "sse" }

// Send writes message as one event named after its type. The data line is
// the bare payload unless Envelope is set.
func (c *SSEConnection) Send(ctx context.Context, message *Message) error {
	var data any = message.Data
	if c.opts.Envelope {
		data = *message
	}
	return c.write(ctx, sse.Event{
		Id:    message.ID,
		Event: message.Type,
		Data:  data,
	})
}

func (c *SSEConnection) SendText(ctx context.Context, text string) error {
	return c.write(ctx, sse.Event{Data: text})
}

func (c *SSEConnection) write(ctx context.Context, event sse.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed || c.ctx.Err() != nil {
		return &TransportError{ConnID: c.id, Op: "send", Err: ErrClosed}
	}

	if err := sse.Encode(c.writer, event); err != nil {
		c.closeLocked()
		return &TransportError{ConnID: c.id, Op: "write", Err: err}
	}
	if flusher, ok := c.writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (c *SSEConnection) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-c.ctx.Done():
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *SSEConnection) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.closeLocked()
	return nil
}

func (c *SSEConnection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancel()
	c.logger.Debug("SSE connection closed")
}

func (c *SSEConnection) IsClosed() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.closed || c.ctx.Err() != nil
}

func (c *SSEConnection) Context() context.Context {
	return c.ctx
}

func (c *SSEConnection) setupSSEHeaders() {
	c.writer.Header().Set("Content-Type", "text/event-stream")
	c.writer.Header().Set("Cache-Control", "no-cache")
	c.writer.Header().Set("Connection", "keep-alive")
	c.writer.Header().Set("X-Accel-Buffering", "no") // For nginx
}

func (c *SSEConnection) keepAlive() {
	ticker := time.NewTicker(c.opts.KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.Send(c.ctx, KeepAliveMessage()); err != nil {
				c.logger.Debugf("Keep-alive failed, closing: %v", err)
				c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
