package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kart-io/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
)

type closer struct {
	name string
	fn   CloseFunc
}

// Manager starts servers, waits for shutdown and then releases resources.
type Manager struct {
	shutdownTimeout time.Duration

	mu      sync.Mutex
	servers []Runnable
	closers []closer
	started bool
}

// NewManager creates a manager with the given graceful shutdown timeout.
func NewManager(shutdownTimeout time.Duration) *Manager {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &Manager{shutdownTimeout: shutdownTimeout}
}

// AddServer adds a server to the manager.
func (m *Manager) AddServer(server Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, server)
}

// OnClose registers a close hook. Hooks run in reverse registration order
// after every server has stopped.
func (m *Manager) OnClose(name string, fn CloseFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closers = append(m.closers, closer{name: name, fn: fn})
}

// Start starts all servers. Servers already started are stopped again when a
// later one fails.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("server manager already started")
	}
	m.started = true
	servers := append([]Runnable(nil), m.servers...)
	m.mu.Unlock()

	for i, srv := range servers {
		if err := srv.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = servers[j].Stop(ctx)
			}
			return fmt.Errorf("failed to start server %s: %w", srv.Name(), err)
		}
	}
	return nil
}

// Stop stops all servers and then runs the close hooks.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	servers := append([]Runnable(nil), m.servers...)
	closers := append([]closer(nil), m.closers...)
	m.mu.Unlock()

	var errs []error
	for i := len(servers) - 1; i >= 0; i-- {
		if err := servers[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop server %s: %w", servers[i].Name(), err))
		}
	}
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.fn(ctx); err != nil {
			logger.Warnw("Close hook failed", "name", c.name, "error", err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	return utilerrors.NewAggregate(errs)
}

// Run starts the servers, blocks until ctx is cancelled or a server fails,
// then shuts everything down within the shutdown timeout.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		_ = m.shutdown()
		return err
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Server shutting down...")
	case serveErr = <-m.serveErrors():
		logger.Errorw("Server failed, shutting down", "error", serveErr)
	}

	if err := m.shutdown(); err != nil {
		if serveErr != nil {
			return utilerrors.NewAggregate([]error{serveErr, err})
		}
		return err
	}
	return serveErr
}

func (m *Manager) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()
	return m.Stop(ctx)
}

// serveErrors fans in background serve errors from servers exposing them.
func (m *Manager) serveErrors() <-chan error {
	out := make(chan error, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, srv := range m.servers {
		es, ok := srv.(interface{ Errors() <-chan error })
		if !ok {
			continue
		}
		go func(ch <-chan error) {
			if err, ok := <-ch; ok {
				select {
				case out <- err:
				default:
				}
			}
		}(es.Errors())
	}
	return out
}
