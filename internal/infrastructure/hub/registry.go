package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"go-topic-relay/internal/infrastructure/logger"
)

const (
	defaultSendTimeout     = 10 * time.Second
	defaultJanitorInterval = 30 * time.Second
)

// Registry holds every live connection. It is safe for concurrent use.
type Registry struct {
	connections   map[string]Connection
	connectionsMu sync.RWMutex

	running   bool
	runningMu sync.RWMutex

	evictHooks   []func(Connection)
	evictHooksMu sync.RWMutex

	logger logger.Logger

	sendTimeout     time.Duration
	janitorInterval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

type RegistryOption func(*Registry)

// WithSendTimeout bounds each per-connection send during fanout.
func WithSendTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithJanitorInterval sets how often closed connections are swept.
func WithJanitorInterval(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.janitorInterval = d
		}
	}
}

func NewRegistry(log logger.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		connections:     make(map[string]Connection),
		logger:          log.WithField("component", "registry"),
		sendTimeout:     defaultSendTimeout,
		janitorInterval: defaultJanitorInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the janitor that evicts connections reporting IsClosed.
func (r *Registry) Start(ctx context.Context) error {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if r.running {
		return fmt.Errorf("registry is already running")
	}

	jctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true

	go r.run(jctx)

	r.logger.Info("Registry started")
	return nil
}

// Stop halts the janitor and closes every registered connection.
func (r *Registry) Stop(ctx context.Context) error {
	r.runningMu.Lock()
	defer r.runningMu.Unlock()

	if !r.running {
		return nil
	}

	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	r.CloseAll()

	r.running = false
	r.logger.Info("Registry stopped")
	return nil
}

func (r *Registry) IsRunning() bool {
	r.runningMu.RLock()
	defer r.runningMu.RUnlock()
	return r.running
}

// Add registers conn. Adding the same connection twice is a no-op.
func (r *Registry) Add(conn Connection) {
	r.connectionsMu.Lock()
	r.connections[conn.ID()] = conn
	r.connectionsMu.Unlock()

	r.logger.Debugf("Connection %s registered (type: %s)", conn.ID(), conn.Type())
}

// Remove deregisters conn without closing it. It returns ErrNotFound when
// the registry does not hold this exact connection.
func (r *Registry) Remove(conn Connection) error {
	r.connectionsMu.Lock()
	defer r.connectionsMu.Unlock()

	existing, ok := r.connections[conn.ID()]
	if !ok || existing != conn {
		return fmt.Errorf("remove %s: %w", conn.ID(), ErrNotFound)
	}
	delete(r.connections, conn.ID())

	r.logger.Debugf("Connection %s unregistered", conn.ID())
	return nil
}

func (r *Registry) Contains(conn Connection) bool {
	r.connectionsMu.RLock()
	defer r.connectionsMu.RUnlock()

	existing, ok := r.connections[conn.ID()]
	return ok && existing == conn
}

func (r *Registry) Get(connID string) (Connection, bool) {
	r.connectionsMu.RLock()
	defer r.connectionsMu.RUnlock()

	conn, exists := r.connections[connID]
	return conn, exists
}

// Connections returns a snapshot of all registered connections.
func (r *Registry) Connections() []Connection {
	r.connectionsMu.RLock()
	defer r.connectionsMu.RUnlock()

	connections := make([]Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}

func (r *Registry) ConnectionsByType(connType string) []Connection {
	r.connectionsMu.RLock()
	defer r.connectionsMu.RUnlock()

	var connections []Connection
	for _, conn := range r.connections {
		if conn.Type() == connType {
			connections = append(connections, conn)
		}
	}
	return connections
}

func (r *Registry) Count() int {
	r.connectionsMu.RLock()
	defer r.connectionsMu.RUnlock()
	return len(r.connections)
}

// OnEvict registers fn to run for every connection the registry drops on
// its own, through the janitor or CloseAll. Remove does not trigger it.
func (r *Registry) OnEvict(fn func(Connection)) {
	r.evictHooksMu.Lock()
	defer r.evictHooksMu.Unlock()
	r.evictHooks = append(r.evictHooks, fn)
}

func (r *Registry) evicted(connections []Connection) {
	r.evictHooksMu.RLock()
	hooks := r.evictHooks
	r.evictHooksMu.RUnlock()

	for _, conn := range connections {
		for _, fn := range hooks {
			fn(conn)
		}
	}
}

// BroadcastAll sends message to every registered connection and returns how
// many sends succeeded. A failing connection is logged and skipped.
func (r *Registry) BroadcastAll(ctx context.Context, message *Message) int {
	return r.fanout(ctx, r.Connections(), message)
}

// CloseAll closes and forgets every connection.
func (r *Registry) CloseAll() {
	r.connectionsMu.Lock()
	connections := r.connections
	r.connections = make(map[string]Connection)
	r.connectionsMu.Unlock()

	closed := make([]Connection, 0, len(connections))
	for _, conn := range connections {
		if err := conn.Close(); err != nil {
			r.logger.Errorf("Failed to close connection %s: %v", conn.ID(), err)
		}
		closed = append(closed, conn)
	}
	r.evicted(closed)
}

// fanout sends concurrently and waits for every send to finish, so one slow
// peer delays the return but never blocks delivery to the others.
func (r *Registry) fanout(ctx context.Context, connections []Connection, message *Message) int {
	if len(connections) == 0 {
		return 0
	}
	if err := ValidateMessage(message); err != nil {
		r.logger.Errorf("Dropping invalid message: %v", err)
		return 0
	}

	var delivered atomic.Int64
	var eg errgroup.Group
	for _, conn := range connections {
		eg.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
			defer cancel()

			if err := conn.Send(sctx, message); err != nil {
				r.logger.Warnf("Failed to send message %s to connection %s: %v", message.ID, conn.ID(), err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = eg.Wait()

	r.logger.Debugf("Sent message %s to %d/%d connections", message.ID, delivered.Load(), len(connections))
	return int(delivered.Load())
}

func (r *Registry) run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanupClosedConnections()
		case <-ctx.Done():
			r.logger.Debug("Registry janitor stopped")
			return
		}
	}
}

func (r *Registry) cleanupClosedConnections() {
	var removed []Connection

	r.connectionsMu.Lock()
	for id, conn := range r.connections {
		if conn.IsClosed() {
			delete(r.connections, id)
			removed = append(removed, conn)
			r.logger.Infof("Cleaned up closed connection %s", id)
		}
	}
	r.connectionsMu.Unlock()

	r.evicted(removed)
}
