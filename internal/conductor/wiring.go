package conductor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/config"
	"github.com/cory-johannsen/boxcars/internal/game/dice"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
	"github.com/cory-johannsen/boxcars/internal/storage"
	"github.com/cory-johannsen/boxcars/internal/storage/file"
	"github.com/cory-johannsen/boxcars/internal/storage/postgres"
)

// Backend is the opened persistence backend for the shared game state.
type Backend struct {
	Store storage.Store
	// Pool is set for the postgres backend only.
	Pool *postgres.Pool
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.Pool != nil {
		b.Pool.Close()
	}
}

// OpenStore opens the backend selected by cfg.Storage.
//
// Precondition: cfg must be valid.
// Postcondition: For the postgres backend the database is reachable.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Backend, error) {
	switch cfg.Storage.Backend {
	case "file":
		store := file.New(cfg.Storage.Path)
		logger.Info("using file storage", zap.String("path", store.Path()))
		return &Backend{Store: store}, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		logger.Info("using postgres storage",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Name),
			zap.String("key", cfg.Storage.Key),
		)
		return &Backend{Store: pool.GameStates(cfg.Storage.Key), Pool: pool}, nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// NewRNG returns a dice roller, deterministic when seed is non-zero.
func NewRNG(seed uint64, logger *zap.Logger) roll.RNG {
	if seed != 0 {
		return dice.NewRoller(dice.NewSeededSource(seed), logger)
	}
	return dice.NewRoller(dice.NewCryptoSource(), logger)
}
