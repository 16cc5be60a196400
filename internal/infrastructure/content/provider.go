// Package content supplies the current payload of a topic to the relay.
package content

import (
	"context"
	"errors"
	"fmt"

	"go-topic-relay/internal/infrastructure/hub"
)

// ErrNoContent is returned by stores that hold nothing for a topic.
var ErrNoContent = errors.New("content: no content for topic")

// Provider returns the current content of a topic. Implementations must be
// safe for concurrent use.
type Provider interface {
	GetContent(ctx context.Context, topic string) (hub.Payload, error)
}

// Store is a Provider that can also be written to.
type Store interface {
	Provider
	PutContent(ctx context.Context, topic string, payload hub.Payload) error
	Close() error
}

type ProviderFunc func(ctx context.Context, topic string) (hub.Payload, error)

func (f ProviderFunc) GetContent(ctx context.Context, topic string) (hub.Payload, error) {
	return f(ctx, topic)
}

// ProviderError wraps any failure of a Provider with the topic it was
// fetching.
type ProviderError struct {
	Topic string
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("content provider failed for topic %q: %v", e.Topic, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
