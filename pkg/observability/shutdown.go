package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const defaultShutdownTimeout = 30 * time.Second

// ShutdownFunc releases one resource
type ShutdownFunc func(context.Context) error

type closer struct {
	name string
	fn   ShutdownFunc
}

// ShutdownManager stops the HTTP server and then releases registered
// resources in the order they were registered, all under one deadline
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	timeout time.Duration

	mu      sync.Mutex
	closers []closer
}

// NewShutdownManager defaults a zero timeout to 30s. server may be nil.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	return &ShutdownManager{logger: logger, server: server, timeout: timeout}
}

// RegisterShutdownFunc queues fn to run after the server has drained
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.closers = append(sm.closers, closer{name: name, fn: fn})
}

// WaitForShutdown blocks until ctx is done, typically through
// signal.NotifyContext, then calls Shutdown
func (sm *ShutdownManager) WaitForShutdown(ctx context.Context) error {
	<-ctx.Done()
	sm.logger.Info("Shutdown requested, starting graceful shutdown")
	return sm.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown drains the HTTP server and then runs every ShutdownFunc, even
// when an earlier one failed. Failures are joined into the returned error.
func (sm *ShutdownManager) Shutdown(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, sm.timeout)
	defer cancel()

	if sm.server != nil {
		sm.logger.Info("Shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
	}

	sm.mu.Lock()
	closers := append([]closer(nil), sm.closers...)
	sm.mu.Unlock()

	var errs []error
	for _, c := range closers {
		log := sm.logger.WithField("component", c.name)
		if err := c.fn(ctx); err != nil {
			log.WithError(err).Error("Shutdown function failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		log.Debug("Shutdown function complete")
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown completed with errors: %w", err)
	}
	if ctx.Err() != nil {
		return errors.New("shutdown timeout reached")
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
