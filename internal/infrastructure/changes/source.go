// Package changes holds the producers that mark topics as changed.
package changes

import (
	"context"

	"go-topic-relay/internal/infrastructure/hub"
)

// Marker receives change marks; relay.Service and notify.Notifier satisfy it.
type Marker interface {
	MarkChanged(topic string)
}

// ContentWriter stores a topic's new content before it is marked.
type ContentWriter interface {
	PutContent(ctx context.Context, topic string, payload hub.Payload) error
}

// Source runs until ctx ends.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}
