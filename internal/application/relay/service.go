// Package relay wires the registry, the subscription index, the notifier and
// a content provider into per-connection sessions.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go-topic-relay/internal/infrastructure/content"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
)

const defaultDeliveryTimeout = 30 * time.Second

var ErrNotRunning = errors.New("relay: service is not running")

// ChangeNotifier is the pending-change set sessions wait on. notify.Notifier
// implements it.
type ChangeNotifier interface {
	MarkChanged(topic string)
	WaitForChange(ctx context.Context, topic string) error
	Pending() []string
}

type Option func(*Service)

// WithDeliveryTimeout bounds one fetch-and-broadcast cycle.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.deliveryTimeout = d
		}
	}
}

// Service is created once at process start and shared by every transport
// handler. Start must be called before Serve; Stop ends all sessions.
type Service struct {
	registry *hub.Registry
	index    *hub.Index
	notifier ChangeNotifier
	provider content.Provider

	deliveryTimeout time.Duration

	logger logger.Logger

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc

	sessions sync.WaitGroup
}

func New(
	registry *hub.Registry,
	index *hub.Index,
	notifier ChangeNotifier,
	provider content.Provider,
	log logger.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		registry:        registry,
		index:           index,
		notifier:        notifier,
		provider:        provider,
		deliveryTimeout: defaultDeliveryTimeout,
		logger:          log.WithField("component", "relay"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("relay is already running")
	}
	if err := s.registry.Start(ctx); err != nil {
		return fmt.Errorf("start registry: %w", err)
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	s.logger.Info("Relay started")
	return nil
}

// Stop cancels every session, waits for them to tear down (bounded by ctx)
// and stops the registry.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for sessions to finish")
	}

	if err := s.registry.Stop(ctx); err != nil {
		return fmt.Errorf("stop registry: %w", err)
	}
	s.logger.Info("Relay stopped")
	return nil
}

func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Serve runs the session loop for conn subscribed to topic and blocks until
// the connection ends or the service stops.
func (s *Service) Serve(ctx context.Context, conn hub.Connection, topic string) error {
	s.mu.RLock()
	if !s.running {
		s.mu.RUnlock()
		return ErrNotRunning
	}
	svcCtx := s.ctx
	s.sessions.Add(1)
	s.mu.RUnlock()
	defer s.sessions.Done()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(svcCtx, cancel)
	defer stop()

	return newSession(s, svcCtx, conn, topic).Run(sctx)
}

// MarkChanged is the entry point for change sources.
func (s *Service) MarkChanged(topic string) {
	s.notifier.MarkChanged(topic)
	s.logger.Debugf("Topic %s marked changed", topic)
}

// BroadcastAll pushes message to every connection regardless of topic.
func (s *Service) BroadcastAll(ctx context.Context, message *hub.Message) int {
	return s.registry.BroadcastAll(ctx, message)
}

func (s *Service) Connections() []hub.Connection {
	return s.registry.Connections()
}

func (s *Service) ConnectionsByType(connType string) []hub.Connection {
	return s.registry.ConnectionsByType(connType)
}

type Stats struct {
	Running     bool           `json:"running"`
	Connections int            `json:"connections"`
	Topics      map[string]int `json:"topics"`
	Pending     []string       `json:"pending"`
}

func (s *Service) Stats() Stats {
	return Stats{
		Running:     s.IsRunning(),
		Connections: s.registry.Count(),
		Topics:      s.index.Topics(),
		Pending:     s.notifier.Pending(),
	}
}
