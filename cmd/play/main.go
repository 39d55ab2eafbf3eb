// Package main runs the conductor console in the current terminal against a
// local state file.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/config"
	"github.com/cory-johannsen/boxcars/internal/frontend/console"
	"github.com/cory-johannsen/boxcars/internal/frontend/telnet"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/observability"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	statePath := flag.String("state", "", "state file to use instead of the configured storage")
	color := flag.Bool("color", true, "style output with ANSI colors")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *statePath != "" {
		cfg.Storage.Backend = "file"
		cfg.Storage.Path = *statePath
	}
	// The console owns stdout; logs go to stderr at warn and above unless a
	// log file is configured.
	if cfg.Logging.File == "" {
		cfg.Logging.Level = "warn"
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defaultMap, err := dataset.ParseMapID(cfg.Game.DefaultMap)
	if err != nil {
		log.Fatalf("parsing default map: %v", err)
	}

	backend, err := conductor.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("opening storage: %v", err)
	}
	defer backend.Close()

	svc, err := conductor.New(ctx, conductor.Options{
		Catalog:    dataset.NewCatalog(cfg.Data.MapsDir, cfg.Data.PayoutsDir),
		Store:      backend.Store,
		RNG:        conductor.NewRNG(cfg.Game.Seed, logger),
		Logger:     logger,
		DefaultMap: defaultMap,
	})
	if err != nil {
		log.Fatalf("loading game state: %v", err)
	}
	defer svc.Close()

	session := console.NewSession(svc, console.NewStreamIO(os.Stdin, os.Stdout), telnet.Styler{Enabled: *color}, logger)
	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("console session ended", zap.Error(err))
	}
}
