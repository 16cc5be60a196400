// Package notify tracks which topics have changed and lets sessions block
// until their topic does.
package notify

import (
	"context"
	"sort"
	"sync"
)

// Notifier is the pending-change set plus a wake-up channel per topic.
//
// A mark is recorded once no matter how often MarkChanged is called before
// it is drained, and exactly one WaitForChange drains it. Waiters block on a
// channel that MarkChanged closes, so there is no polling interval.
type Notifier struct {
	mu      sync.Mutex
	pending map[string]struct{}
	signals map[string]chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{
		pending: make(map[string]struct{}),
		signals: make(map[string]chan struct{}),
	}
}

// MarkChanged records that topic changed and wakes its waiters. Safe to call
// from any goroutine.
func (n *Notifier) MarkChanged(topic string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.pending[topic] = struct{}{}
	if ch, ok := n.signals[topic]; ok {
		close(ch)
		delete(n.signals, topic)
	}
}

// WaitForChange blocks until topic is pending, drains it and returns nil.
// If ctx ends first it returns ctx.Err() and leaves any pending mark for
// the next waiter.
func (n *Notifier) WaitForChange(ctx context.Context, topic string) error {
	for {
		n.mu.Lock()
		if _, ok := n.pending[topic]; ok {
			delete(n.pending, topic)
			n.mu.Unlock()
			return nil
		}
		ch, ok := n.signals[topic]
		if !ok {
			ch = make(chan struct{})
			n.signals[topic] = ch
		}
		n.mu.Unlock()

		select {
		case <-ch:
			// Another waiter may drain first; loop and re-check.
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryDrain removes topic from the pending set without blocking and reports
// whether it was pending.
func (n *Notifier) TryDrain(topic string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.pending[topic]; !ok {
		return false
	}
	delete(n.pending, topic)
	return true
}

func (n *Notifier) IsPending(topic string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.pending[topic]
	return ok
}

// Pending lists the topics with an undrained change, sorted.
func (n *Notifier) Pending() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	topics := make([]string, 0, len(n.pending))
	for topic := range n.pending {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
