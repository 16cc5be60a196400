package hub

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go-topic-relay/internal/infrastructure/logger"
)

// Index maps topic keys to the connections subscribed to them. It only
// accepts connections held by its Registry and reuses the registry's fanout.
type Index struct {
	registry *Registry

	mu     sync.RWMutex
	topics map[string]map[string]Connection

	logger logger.Logger
}

// NewIndex builds an index over registry. Connections the registry evicts
// are unsubscribed from every topic.
func NewIndex(registry *Registry, log logger.Logger) *Index {
	ix := &Index{
		registry: registry,
		topics:   make(map[string]map[string]Connection),
		logger:   log.WithField("component", "index"),
	}
	registry.OnEvict(func(conn Connection) {
		if topics := ix.UnsubscribeAll(conn); len(topics) > 0 {
			ix.logger.Debugf("Evicted connection %s from %d topics", conn.ID(), len(topics))
		}
	})
	return ix
}

// Subscribe adds conn to topic. Subscribing twice is a no-op.
func (ix *Index) Subscribe(topic string, conn Connection) error {
	if !ix.registry.Contains(conn) {
		return fmt.Errorf("subscribe %s to %q: %w", conn.ID(), topic, ErrNotRegistered)
	}

	ix.mu.Lock()
	subs, ok := ix.topics[topic]
	if !ok {
		subs = make(map[string]Connection)
		ix.topics[topic] = subs
	}
	subs[conn.ID()] = conn
	ix.mu.Unlock()

	ix.logger.Debugf("Connection %s subscribed to %s", conn.ID(), topic)
	return nil
}

// Unsubscribe removes conn from topic; absent subscriptions are ignored.
// Topics left without subscribers are pruned.
func (ix *Index) Unsubscribe(topic string, conn Connection) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.unsubscribeLocked(topic, conn)
}

// UnsubscribeAll removes conn from every topic and returns the topics it
// was removed from.
func (ix *Index) UnsubscribeAll(conn Connection) []string {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var removed []string
	for topic := range ix.topics {
		if ix.unsubscribeLocked(topic, conn) {
			removed = append(removed, topic)
		}
	}
	sort.Strings(removed)
	return removed
}

func (ix *Index) unsubscribeLocked(topic string, conn Connection) bool {
	subs, ok := ix.topics[topic]
	if !ok {
		return false
	}
	if existing, ok := subs[conn.ID()]; !ok || existing != conn {
		return false
	}
	delete(subs, conn.ID())
	if len(subs) == 0 {
		delete(ix.topics, topic)
	}
	return true
}

// Subscribers returns a snapshot of topic's subscribers.
func (ix *Index) Subscribers(topic string) []Connection {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	subs := ix.topics[topic]
	connections := make([]Connection, 0, len(subs))
	for _, conn := range subs {
		connections = append(connections, conn)
	}
	return connections
}

func (ix *Index) SubscriberCount(topic string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.topics[topic])
}

// Topics returns the subscriber count of every topic that has subscribers.
func (ix *Index) Topics() map[string]int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	out := make(map[string]int, len(ix.topics))
	for topic, subs := range ix.topics {
		out[topic] = len(subs)
	}
	return out
}

// BroadcastTo sends message to the connections subscribed to topic at call
// time and returns how many sends succeeded.
func (ix *Index) BroadcastTo(ctx context.Context, topic string, message *Message) int {
	subs := ix.Subscribers(topic)
	if len(subs) == 0 {
		return 0
	}
	return ix.registry.fanout(ctx, subs, message)
}
