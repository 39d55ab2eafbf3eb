package gameserver

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/config"
)

// Server runs the gRPC listener. It implements server.Service.
type Server struct {
	cfg    config.GRPCConfig
	grpc   *grpc.Server
	logger *zap.Logger

	mu  sync.Mutex
	lis net.Listener
}

// NewServer creates a gRPC server with the Conductor service registered and
// every call logged.
//
// Precondition: svc and logger must be non-nil.
func NewServer(cfg config.GRPCConfig, svc *conductor.Service, logger *zap.Logger) *Server {
	g := grpc.NewServer(grpc.ChainUnaryInterceptor(logCalls(logger)))
	RegisterConductorServer(g, NewConductorService(svc))
	return &Server{cfg: cfg, grpc: g, logger: logger}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(lis)
}

// Serve serves on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	s.logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return ""
	}
	return s.lis.Addr().String()
}

// Stop waits for in-flight calls and stops the server.
func (s *Server) Stop() {
	s.grpc.GracefulStop()
}

func logCalls(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("latency", time.Since(start)),
		}
		if err != nil {
			logger.Warn("grpc call failed", append(fields, zap.Error(err))...)
		} else {
			logger.Info("grpc call", fields...)
		}
		return resp, err
	}
}
