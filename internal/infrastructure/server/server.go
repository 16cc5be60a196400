package server

import "context"

// Server is a long-running listener owned by the application lifecycle.
// Start blocks until the server stops; Stop shuts it down gracefully.
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
