// Package server runs the conductor's listeners (HTTP API, gRPC, Telnet
// console) together and shuts them down in reverse order on a signal.
package server

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running listener.
type Service interface {
	// Start serves until Stop is called or the service fails.
	Start() error
	// Stop ends Start gracefully.
	Stop()
}

// FuncService adapts a start/stop function pair into a Service.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls StartFn.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls StopFn.
func (f *FuncService) Stop() { f.StopFn() }

// Lifecycle runs registered services side by side. The first one added is
// the last one stopped, so the conductor's front ends drain before the
// storage health check goes away.
type Lifecycle struct {
	logger *zap.Logger

	mu       sync.Mutex
	services []namedService
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates an empty Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers svc under name.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts every service and blocks until SIGINT/SIGTERM, ctx
// cancellation or a service failure, then stops services in reverse order.
//
// Postcondition: All services are stopped when this method returns. The
// error is the first service failure, or nil for a signal or cancellation.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()
	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	for _, ns := range services {
		go l.start(ns, cancel)
	}
	l.logger.Info("all services started", zap.Int("count", len(services)))

	<-ctx.Done()
	failure := context.Cause(ctx)
	if _, failed := failure.(*serviceError); failed {
		l.logger.Error("service error, shutting down", zap.Error(failure))
	} else {
		l.logger.Info("shutting down", zap.NamedError("reason", failure))
		failure = nil
	}

	l.stopAll(services)
	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return failure
}

// serviceError marks a Start failure as the cause of shutdown.
type serviceError struct {
	name string
	err  error
}

func (e *serviceError) Error() string { return fmt.Sprintf("service %s: %v", e.name, e.err) }
func (e *serviceError) Unwrap() error { return e.err }

func (l *Lifecycle) start(ns namedService, fail context.CancelCauseFunc) {
	l.logger.Info("starting service", zap.String("service", ns.name))
	began := time.Now()
	if err := ns.service.Start(); err != nil {
		l.logger.Error("service failed",
			zap.String("service", ns.name),
			zap.Error(err),
			zap.Duration("uptime", time.Since(began)),
		)
		// Only the first cause sticks.
		fail(&serviceError{name: ns.name, err: err})
	}
}

func (l *Lifecycle) stopAll(services []namedService) {
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		began := time.Now()
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(began)),
		)
	}
}
