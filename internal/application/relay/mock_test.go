package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-topic-relay/internal/infrastructure/content"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
	"go-topic-relay/internal/infrastructure/notify"
)

// fakeConn is a Connection whose peer side is driven by the test.
type fakeConn struct {
	id string

	inbound chan []byte
	gone    chan struct{}
	goneErr error
	goOnce  sync.Once

	mu     sync.Mutex
	closed bool
	sent   []*hub.Message
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{
		id:      id,
		inbound: make(chan []byte, 4),
		gone:    make(chan struct{}),
	}
}

func (c *fakeConn) ID() string   { return c.id }
func (c *fakeConn) Type() string { return "fake" }

func (c *fakeConn) Send(ctx context.Context, message *hub.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &hub.TransportError{ConnID: c.id, Op: "send", Err: hub.ErrClosed}
	}
	c.sent = append(c.sent, message)
	return nil
}

func (c *fakeConn) SendText(ctx context.Context, text string) error {
	return c.Send(ctx, &hub.Message{Type: "text", Data: text})
}

func (c *fakeConn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.gone:
		return nil, c.goneErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) Context() context.Context { return context.Background() }

// disconnect ends the peer side with err.
func (c *fakeConn) disconnect(err error) {
	c.goOnce.Do(func() {
		c.goneErr = err
		close(c.gone)
	})
}

func (c *fakeConn) messages() []*hub.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*hub.Message, len(c.sent))
	copy(out, c.sent)
	return out
}

// countingProvider returns the static payload and counts calls. The first
// failures calls return an error. When gate is set each call signals
// entered and blocks until gate is closed.
type countingProvider struct {
	calls    atomic.Int64
	failures int64
	payload  hub.Payload

	entered chan struct{}
	gate    chan struct{}
}

func (p *countingProvider) GetContent(ctx context.Context, topic string) (hub.Payload, error) {
	n := p.calls.Add(1)
	if p.gate != nil {
		p.entered <- struct{}{}
		<-p.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= p.failures {
		return nil, content.ErrNoContent
	}
	return p.payload, nil
}

// stallingNotifier drains like notify.Notifier but, while stall is set,
// holds the waiter after the drain until its context ends, so the peer
// branch of the session race wins with the mark already consumed.
type stallingNotifier struct {
	*notify.Notifier

	stall   atomic.Bool
	drained chan struct{}
}

func newStallingNotifier() *stallingNotifier {
	n := &stallingNotifier{Notifier: notify.NewNotifier(), drained: make(chan struct{}, 1)}
	n.stall.Store(true)
	return n
}

func (n *stallingNotifier) WaitForChange(ctx context.Context, topic string) error {
	if err := n.Notifier.WaitForChange(ctx, topic); err != nil {
		return err
	}
	if !n.stall.Load() {
		return nil
	}
	select {
	case n.drained <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return nil
}

type fixture struct {
	svc      *Service
	registry *hub.Registry
	index    *hub.Index
	notifier ChangeNotifier
	provider *countingProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, notify.NewNotifier())
}

func newFixtureWith(t *testing.T, notifier ChangeNotifier) *fixture {
	t.Helper()

	log := logger.NewNopLogger()
	registry := hub.NewRegistry(log)
	index := hub.NewIndex(registry, log)
	provider := &countingProvider{payload: hub.Payload{"a": 10, "b": 20}}

	svc := New(registry, index, notifier, provider, log)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := svc.Stop(ctx); err != nil {
			t.Errorf("stop: %v", err)
		}
	})

	return &fixture{svc: svc, registry: registry, index: index, notifier: notifier, provider: provider}
}

// serve runs a session in the background and returns its result channel.
func (f *fixture) serve(conn hub.Connection, topic string) <-chan error {
	return f.serveCtx(context.Background(), conn, topic)
}

func (f *fixture) serveCtx(ctx context.Context, conn hub.Connection, topic string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- f.svc.Serve(ctx, conn, topic)
	}()
	return done
}

func isPending(n ChangeNotifier, topic string) bool {
	for _, p := range n.Pending() {
		if p == topic {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
		return nil
	}
}
