package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/boxcars/internal/storage"
)

// GameStateRepository stores serialized game state in game_states, one row
// per key. It implements storage.Store for its key and storage.Catalog
// across the table.
type GameStateRepository struct {
	db  *pgxpool.Pool
	key string
}

// NewGameStateRepository creates a repository bound to key.
//
// Precondition: db must be a valid, open connection pool; key must be non-empty.
func NewGameStateRepository(db *pgxpool.Pool, key string) *GameStateRepository {
	return &GameStateRepository{db: db, key: key}
}

// ActiveKey returns the saved game this repository reads and writes.
func (r *GameStateRepository) ActiveKey() string { return r.key }

// WithKey returns a repository on the same pool bound to another key.
func (r *GameStateRepository) WithKey(key string) *GameStateRepository {
	return &GameStateRepository{db: r.db, key: key}
}

// Load returns the saved state blob.
//
// Postcondition: Returns storage.ErrNotFound when no row exists for the key.
func (r *GameStateRepository) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := r.db.QueryRow(ctx,
		`SELECT state FROM game_states WHERE key = $1`,
		r.key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying game state %q: %w", r.key, err)
	}
	return data, nil
}

// Save upserts the state blob and bumps the row revision.
//
// Precondition: data must be a JSON document.
// Postcondition: The row's map column mirrors settings.map of the document.
func (r *GameStateRepository) Save(ctx context.Context, data []byte) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO game_states (key, map, state)
		 VALUES ($1, COALESCE($2::jsonb #>> '{settings,map}', 'US'), $2::jsonb)
		 ON CONFLICT (key) DO UPDATE
		 SET state = EXCLUDED.state,
		     map = EXCLUDED.map,
		     revision = game_states.revision + 1,
		     updated_at = NOW()`,
		r.key, string(data),
	)
	if err != nil {
		return fmt.Errorf("saving game state %q: %w", r.key, err)
	}
	return nil
}

// Delete removes the saved game.
//
// Postcondition: Returns storage.ErrNotFound when no row existed.
func (r *GameStateRepository) Delete(ctx context.Context) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM game_states WHERE key = $1`, r.key)
	if err != nil {
		return fmt.Errorf("deleting game state %q: %w", r.key, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Remove deletes the saved game named key, which need not be the active one.
//
// Postcondition: Returns storage.ErrNotFound when no row existed.
func (r *GameStateRepository) Remove(ctx context.Context, key string) error {
	return r.WithKey(key).Delete(ctx)
}

// List returns every saved game, most recently updated first.
func (r *GameStateRepository) List(ctx context.Context) ([]storage.SaveInfo, error) {
	rows, err := r.db.Query(ctx,
		`SELECT key, map, revision, updated_at
		 FROM game_states ORDER BY updated_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("listing game states: %w", err)
	}
	defer rows.Close()

	var out []storage.SaveInfo
	for rows.Next() {
		var g storage.SaveInfo
		if err := rows.Scan(&g.Key, &g.Map, &g.Revision, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning game state: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
