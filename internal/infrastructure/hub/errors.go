package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when removing a connection the registry does
	// not hold. Session teardown treats it as benign.
	ErrNotFound = errors.New("hub: connection not found")

	// ErrNotRegistered is returned when subscribing a connection that was
	// never added to the registry.
	ErrNotRegistered = errors.New("hub: connection not registered")

	// ErrDisconnected reports a graceful close by the peer or by us.
	ErrDisconnected = errors.New("hub: peer disconnected")

	// ErrClosed is returned by Send on a connection that is already closed.
	ErrClosed = errors.New("hub: connection closed")
)

// TransportError is an abnormal send or receive failure on one connection.
type TransportError struct {
	ConnID string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("hub: %s on connection %s: %v", e.Op, e.ConnID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsDisconnect reports whether err means the peer went away gracefully.
func IsDisconnect(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
