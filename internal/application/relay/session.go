package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go-topic-relay/internal/infrastructure/content"
	"go-topic-relay/internal/infrastructure/hub"
	"go-topic-relay/internal/infrastructure/logger"
	"go-topic-relay/internal/infrastructure/notify"
)

type State int32

const (
	StateConnecting State = iota
	StateSubscribed
	StateWaiting
	StateDelivering
	StateUnsubscribing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateWaiting:
		return "waiting"
	case StateDelivering:
		return "delivering"
	case StateUnsubscribing:
		return "unsubscribing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the serving loop of one connection.
type Session struct {
	svc *Service
	// svcCtx ends with the service, not with this peer.
	svcCtx context.Context
	conn   hub.Connection
	topic  string

	logger logger.Logger

	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(svc *Service, svcCtx context.Context, conn hub.Connection, topic string) *Session {
	return &Session{
		svc:    svc,
		svcCtx: svcCtx,
		conn:   conn,
		topic:  topic,
		logger: svc.logger.WithFields(logger.Fields{
			"connection_id": conn.ID(),
			"topic":         topic,
		}),
	}
}

func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) setState(state State) {
	prev := State(s.state.Swap(int32(state)))
	if prev != state {
		s.logger.Debugf("Session %s -> %s", prev, state)
	}
}

// Run registers the connection, then alternates between waiting for a
// change and delivering content until the peer leaves or ctx ends. A peer
// disconnect, graceful or not, is a normal end and yields nil.
func (s *Session) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	s.svc.registry.Add(s.conn)
	defer s.close()

	if err := s.svc.index.Subscribe(s.topic, s.conn); err != nil {
		return err
	}
	s.setState(StateSubscribed)
	s.logger.Info("Client subscribed")

	for {
		s.setState(StateWaiting)

		// drained is set when the change branch consumed a mark; if that
		// branch then lost the race the mark is put back.
		var drained atomic.Bool
		res, err := notify.RaceFirst(ctx,
			func(ctx context.Context) (struct{}, error) {
				if err := s.svc.notifier.WaitForChange(ctx, s.topic); err != nil {
					return struct{}{}, err
				}
				drained.Store(true)
				return struct{}{}, nil
			},
			s.conn.Receive,
		)
		if res.Winner != notify.WinnerA && drained.Load() {
			s.svc.notifier.MarkChanged(s.topic)
		}
		if err != nil {
			s.logEnd(err)
			return nil
		}

		switch res.Winner {
		case notify.WinnerA:
			s.deliver()
		case notify.WinnerB:
			s.logger.Debugf("Ignoring %d bytes from client", len(res.B))
		}
	}
}

// deliver fetches and fans out under the service context. The mark is
// already drained, so this peer leaving must not abort delivery to the
// other subscribers.
func (s *Session) deliver() {
	s.setState(StateDelivering)

	ctx, cancel := context.WithTimeout(s.svcCtx, s.svc.deliveryTimeout)
	defer cancel()

	payload, err := s.svc.provider.GetContent(ctx, s.topic)
	if err != nil {
		perr := &content.ProviderError{Topic: s.topic, Err: err}
		s.logger.Errorf("Skipping delivery: %v", perr)
		return
	}

	n := s.svc.index.BroadcastTo(ctx, s.topic, hub.ContentMessage(s.topic, payload))
	s.logger.Infof("Topic changed, notified %d subscribers", n)
}

func (s *Session) logEnd(err error) {
	var transportErr *hub.TransportError
	switch {
	case hub.IsDisconnect(err):
		s.logger.Info("Client disconnected")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Info("Session cancelled")
	case errors.As(err, &transportErr):
		s.logger.Warnf("Client connection lost: %v", err)
	default:
		s.logger.Warnf("Session ended: %v", err)
	}
}

// close unsubscribes and deregisters the connection. Safe to call twice.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.setState(StateUnsubscribing)
		s.svc.index.UnsubscribeAll(s.conn)
		if err := s.svc.registry.Remove(s.conn); err != nil && !errors.Is(err, hub.ErrNotFound) {
			s.logger.Debugf("Registry removal: %v", err)
		}
		if err := s.conn.Close(); err != nil {
			s.logger.Warnf("Failed to close connection: %v", err)
		}
		s.setState(StateClosed)
	})
}
