package content

import (
	"context"
	"maps"
	"sync"

	"go-topic-relay/internal/infrastructure/hub"
)

// StaticStore keeps content in memory and falls back to a default payload
// for topics that were never written.
type StaticStore struct {
	mu       sync.RWMutex
	topics   map[string]hub.Payload
	fallback hub.Payload
}

func NewStaticStore(fallback hub.Payload) *StaticStore {
	return &StaticStore{
		topics:   make(map[string]hub.Payload),
		fallback: maps.Clone(fallback),
	}
}

func (s *StaticStore) GetContent(ctx context.Context, topic string) (hub.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.topics[topic]; ok {
		return maps.Clone(p), nil
	}
	if s.fallback == nil {
		return nil, ErrNoContent
	}
	return maps.Clone(s.fallback), nil
}

func (s *StaticStore) PutContent(ctx context.Context, topic string, payload hub.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[topic] = maps.Clone(payload)
	return nil
}

func (s *StaticStore) Close() error { return nil }
