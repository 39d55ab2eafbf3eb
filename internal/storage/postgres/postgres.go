// Package postgres keeps the conductor's saved games in the game_states table
// using pgx v5. Several conductors may share one database; each is bound to
// its own row key.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/boxcars/internal/config"
)

const (
	applicationName = "boxcars-conductor"
	connectTimeout  = 10 * time.Second
)

// Pool is the conductor's handle on the game_states database.
type Pool struct {
	db *pgxpool.Pool
}

// NewPool connects to the database described by cfg and verifies it answers.
//
// Precondition: cfg must be valid.
// Postcondition: Returns a reachable Pool or a non-nil error; nothing is left
// open on error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	db, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("opening saved-game database %s: %w", cfg.Name, err)
	}
	p := &Pool{db: db}
	if err := p.Health(ctx, connectTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("saved-game database %s unreachable: %w", cfg.Name, err)
	}
	return p, nil
}

// poolConfig applies the configured limits over the DSN defaults. Zero
// limits keep pgx's own defaults.
func poolConfig(cfg config.DatabaseConfig) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pcfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	return pcfg, nil
}

// Health pings the database, giving up after timeout. The conductor's
// lifecycle calls it before serving.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.db.Ping(ctx)
}

// Close releases every connection.
func (p *Pool) Close() {
	p.db.Close()
}

// GameStates returns the store for the saved game named key.
func (p *Pool) GameStates(key string) *GameStateRepository {
	return NewGameStateRepository(p.db, key)
}

// DB exposes the raw pool to migrations and tests.
func (p *Pool) DB() *pgxpool.Pool {
	return p.db
}
