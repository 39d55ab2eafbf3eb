package telnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/config"
)

// acceptBackoff is the pause after a failed Accept before retrying.
const acceptBackoff = 50 * time.Millisecond

// SessionHandler runs the console for one connected operator.
type SessionHandler interface {
	HandleSession(ctx context.Context, conn *Conn) error
}

// Acceptor serves the operator console over Telnet, one session per
// connection. Sessions share one conductor, which serializes their edits.
type Acceptor struct {
	cfg     config.TelnetConfig
	handler SessionHandler
	logger  *zap.Logger

	// ctx is cancelled by Stop; every session context derives from it.
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	sessions sync.WaitGroup
	active   atomic.Int32
}

// NewAcceptor creates an acceptor for cfg.Addr().
//
// Precondition: cfg must be valid; handler and logger must be non-nil.
func NewAcceptor(cfg config.TelnetConfig, handler SessionHandler, logger *zap.Logger) *Acceptor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Acceptor{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ListenAndServe accepts operators until Stop.
//
// Postcondition: Returns nil after Stop, or the listen error.
func (a *Acceptor) ListenAndServe() error {
	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}
	a.mu.Lock()
	if a.ctx.Err() != nil {
		a.mu.Unlock()
		listener.Close()
		return nil
	}
	a.listener = listener
	a.mu.Unlock()

	a.logger.Info("console listening", zap.String("addr", listener.Addr().String()))

	for {
		raw, err := listener.Accept()
		if err != nil {
			if a.ctx.Err() != nil {
				return nil
			}
			a.logger.Error("accepting operator", zap.Error(err))
			time.Sleep(acceptBackoff)
			continue
		}
		// Stop cancels under mu before waiting, so no Add races its Wait.
		a.mu.Lock()
		if a.ctx.Err() != nil {
			a.mu.Unlock()
			raw.Close()
			return nil
		}
		a.sessions.Add(1)
		a.mu.Unlock()
		go a.serve(raw)
	}
}

// serve runs one console session and reports how it ended.
func (a *Acceptor) serve(raw net.Conn) {
	defer a.sessions.Done()
	start := time.Now()
	log := a.logger.With(zap.String("remote_addr", raw.RemoteAddr().String()))
	log.Info("operator connected", zap.Int32("active", a.active.Add(1)))
	defer a.active.Add(-1)

	conn := NewConn(raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	defer conn.Close()

	ctx, cancel := context.WithCancel(a.ctx)
	defer cancel()
	// A session blocked in ReadLine only notices Stop once its conn closes.
	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	if err := conn.Negotiate(); err != nil {
		log.Error("telnet negotiation failed", zap.Error(err))
		return
	}

	err := a.handler.HandleSession(ctx, conn)
	elapsed := zap.Duration("duration", time.Since(start))
	switch {
	case err == nil, errors.Is(err, io.EOF), a.ctx.Err() != nil:
		log.Info("console session ended", elapsed)
	default:
		log.Warn("console session ended", zap.Error(err), elapsed)
	}
}

// Stop closes the listener and every session, then waits for them to return.
// Calling Stop more than once is safe.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if a.ctx.Err() != nil {
		a.mu.Unlock()
		return
	}
	a.cancel()
	if a.listener != nil {
		a.listener.Close()
	}
	a.mu.Unlock()

	a.sessions.Wait()
	a.logger.Info("console stopped")
}

// Addr is the bound listen address, or "" before ListenAndServe binds.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Active is the number of connected operators.
func (a *Acceptor) Active() int {
	return int(a.active.Load())
}

// IsRunning reports whether the acceptor is bound and not stopped.
func (a *Acceptor) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listener != nil && a.ctx.Err() == nil
}
