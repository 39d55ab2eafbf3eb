// Package storage defines the persistence port for the serialized game state.
// The blob is opaque here; its shape belongs to package player.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned by Load when nothing has been saved yet.
var ErrNotFound = errors.New("no saved state")

// Store loads and saves one serialized game state.
type Store interface {
	// Load returns the last saved blob or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the saved blob.
	Save(ctx context.Context, data []byte) error
}

// SaveInfo describes one saved game held by a Catalog.
type SaveInfo struct {
	Key       string    `json:"key"`
	Map       string    `json:"map"`
	Revision  int64     `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Catalog is implemented by stores that keep several saved games side by
// side, one of which is active.
type Catalog interface {
	// ActiveKey names the saved game Load and Save operate on.
	ActiveKey() string
	// List returns every saved game, most recently updated first.
	List(ctx context.Context) ([]SaveInfo, error)
	// Remove deletes the saved game named key, or returns ErrNotFound.
	Remove(ctx context.Context, key string) error
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Load returns a copy of the saved blob.
func (m *Memory) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), m.data...), nil
}

// Save stores a copy of data.
func (m *Memory) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte{}, data...)
	return nil
}

// Keyed is an in-process Catalog holding several saved games.
type Keyed struct {
	mu     sync.Mutex
	active string
	games  map[string]keyedGame
}

type keyedGame struct {
	data      []byte
	revision  int64
	updatedAt time.Time
}

// NewKeyed returns an empty Keyed store whose Load and Save use active.
//
// Precondition: active must be non-empty.
func NewKeyed(active string) *Keyed {
	return &Keyed{active: active, games: make(map[string]keyedGame)}
}

// ActiveKey returns the key Load and Save use.
func (k *Keyed) ActiveKey() string { return k.active }

// Load returns a copy of the active game's blob.
func (k *Keyed) Load(_ context.Context) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	g, ok := k.games[k.active]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), g.data...), nil
}

// Save stores a copy of data under the active key.
func (k *Keyed) Save(ctx context.Context, data []byte) error {
	return k.SaveAs(ctx, k.active, data)
}

// SaveAs stores a copy of data under key and bumps its revision.
func (k *Keyed) SaveAs(_ context.Context, key string, data []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	g := k.games[key]
	g.data = append([]byte{}, data...)
	g.revision++
	g.updatedAt = time.Now()
	k.games[key] = g
	return nil
}

// List returns every saved game, most recently updated first. The map is
// left empty; Keyed does not inspect blobs.
func (k *Keyed) List(_ context.Context) ([]SaveInfo, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]SaveInfo, 0, len(k.games))
	for key, g := range k.games {
		out = append(out, SaveInfo{Key: key, Revision: g.revision, UpdatedAt: g.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// Remove deletes the saved game named key.
func (k *Keyed) Remove(_ context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.games[key]; !ok {
		return ErrNotFound
	}
	delete(k.games, key)
	return nil
}
