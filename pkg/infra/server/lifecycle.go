// Package server runs the docqa HTTP server and coordinates graceful
// shutdown of the server and the resources it depends on.
package server

import "context"

// Lifecycle defines the lifecycle interface for servers.
type Lifecycle interface {
	// Start starts the server. It must not block once the server is serving.
	Start(ctx context.Context) error
	// Stop stops the server gracefully.
	Stop(ctx context.Context) error
}

// Runnable represents a component that can be started and stopped.
type Runnable interface {
	Lifecycle
	// Name returns the server name for identification.
	Name() string
}

// CloseFunc releases a resource during shutdown.
type CloseFunc func(ctx context.Context) error
