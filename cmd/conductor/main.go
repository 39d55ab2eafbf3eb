// Package main provides the conductor server: the HTTP API, the optional
// gRPC service and the optional Telnet operator console over one shared
// game state.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/config"
	"github.com/cory-johannsen/boxcars/internal/frontend/api"
	"github.com/cory-johannsen/boxcars/internal/frontend/console"
	"github.com/cory-johannsen/boxcars/internal/frontend/telnet"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/gameserver"
	"github.com/cory-johannsen/boxcars/internal/observability"
	"github.com/cory-johannsen/boxcars/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	defaultMap, err := dataset.ParseMapID(cfg.Game.DefaultMap)
	if err != nil {
		logger.Fatal("parsing default map", zap.Error(err))
	}

	backend, err := conductor.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}

	svc, err := conductor.New(ctx, conductor.Options{
		Catalog:    dataset.NewCatalog(cfg.Data.MapsDir, cfg.Data.PayoutsDir),
		Store:      backend.Store,
		RNG:        conductor.NewRNG(cfg.Game.Seed, logger),
		Logger:     logger,
		DefaultMap: defaultMap,
	})
	if err != nil {
		logger.Fatal("loading game state", zap.Error(err))
	}
	defer svc.Close()

	lifecycle := server.NewLifecycle(logger)

	// Added first so it stops last, after the front ends drain.
	if backend.Pool != nil {
		done := make(chan struct{})
		lifecycle.Add("postgres", &server.FuncService{
			StartFn: func() error {
				ticker := time.NewTicker(30 * time.Second)
				defer ticker.Stop()
				for {
					select {
					case <-done:
						return nil
					case <-ticker.C:
						if err := backend.Pool.Health(ctx, 5*time.Second); err != nil {
							logger.Warn("database health check failed", zap.Error(err))
						}
					}
				}
			},
			StopFn: func() {
				close(done)
				backend.Close()
			},
		})
	}

	httpServer := api.NewServer(cfg.HTTP, svc, logger)
	lifecycle.Add("http", httpServer)

	if cfg.GRPC.Enabled {
		lifecycle.Add("grpc", gameserver.NewServer(cfg.GRPC, svc, logger))
	}

	if cfg.Telnet.Enabled {
		acceptor := telnet.NewAcceptor(cfg.Telnet, console.NewHandler(svc, logger), logger)
		lifecycle.Add("telnet", &server.FuncService{
			StartFn: acceptor.ListenAndServe,
			StopFn:  acceptor.Stop,
		})
	}

	logger.Info("conductor initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("map", string(svc.State().Settings.Map)),
		zap.String("http_addr", cfg.HTTP.Addr()),
		zap.Bool("grpc", cfg.GRPC.Enabled),
		zap.Bool("telnet", cfg.Telnet.Enabled),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
