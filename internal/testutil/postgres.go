// Package testutil provides test helpers: a shared PostgreSQL container and a
// line-oriented console client.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/boxcars/internal/config"
	"github.com/cory-johannsen/boxcars/internal/storage/postgres"
)

// Schema mirrors migrations/000001_create_game_states.up.sql.
const Schema = `
	CREATE TABLE IF NOT EXISTS game_states (
		key        VARCHAR(64)  PRIMARY KEY,
		map        VARCHAR(2)   NOT NULL DEFAULT 'US',
		state      JSONB        NOT NULL,
		revision   BIGINT       NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
	);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance.
type PostgresContainer struct {
	container testcontainers.Container
	Pool      *postgres.Pool
	RawPool   *pgxpool.Pool
	Config    config.DatabaseConfig
}

var (
	sharedOnce sync.Once
	shared     *PostgresContainer
	sharedErr  error
)

// NewPool returns a pool on a migrated PostgreSQL container shared by every
// test in the package binary. Tests are skipped under -short.
//
// Precondition: Docker must be available unless -short is set.
// Postcondition: Returns an open pool with the game_states table, or skips/fails the test.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in -short mode")
	}
	sharedOnce.Do(func() {
		shared, sharedErr = startPostgres(context.Background())
		if sharedErr == nil {
			sharedErr = shared.applySchema(context.Background())
		}
	})
	if sharedErr != nil {
		t.Fatalf("shared postgres: %v", sharedErr)
	}
	return shared.RawPool
}

// NewPostgresContainer starts a dedicated PostgreSQL test container and
// returns a connected, migrated pool.
//
// Precondition: Docker must be available.
// Postcondition: Returns a running container with a connected pool,
// or fails the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()
	start := time.Now()

	pc, err := startPostgres(ctx)
	if err != nil {
		t.Fatalf("%v [%s]", err, time.Since(start))
	}
	t.Cleanup(func() {
		pc.Pool.Close()
		_ = pc.container.Terminate(ctx)
	})
	if err := pc.applySchema(ctx); err != nil {
		t.Fatalf("applying schema: %v", err)
	}
	t.Logf("postgres container started [%s]", time.Since(start))
	return pc
}

func startPostgres(ctx context.Context) (*PostgresContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("starting postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting container host: %w", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("getting mapped port: %w", err)
	}

	dbCfg := config.DatabaseConfig{
		Host:            host,
		Port:            mappedPort.Int(),
		User:            "test",
		Password:        "test",
		Name:            "test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}

	pool, err := postgres.NewPool(ctx, dbCfg)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("connecting to test postgres: %w", err)
	}

	return &PostgresContainer{
		container: container,
		Pool:      pool,
		RawPool:   pool.DB(),
		Config:    dbCfg,
	}, nil
}

// applySchema runs the schema SQL directly so tests do not need the migrate tool.
func (pc *PostgresContainer) applySchema(ctx context.Context) error {
	_, err := pc.RawPool.Exec(ctx, Schema)
	return err
}

// DSN returns the connection string for the test database.
func (pc *PostgresContainer) DSN() string {
	return pc.Config.DSN()
}
