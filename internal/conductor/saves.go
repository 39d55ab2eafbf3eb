package conductor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/storage"
)

var (
	// ErrSavesUnsupported is returned when the store keeps a single game.
	ErrSavesUnsupported = errors.New("storage backend keeps a single saved game")
	// ErrActiveSave rejects removing the saved game this conductor writes.
	ErrActiveSave = errors.New("cannot remove the active saved game")
)

// Saves lists the saved games beside the active one.
//
// Postcondition: Returns ErrSavesUnsupported unless the store is a storage.Catalog.
func (s *Service) Saves(ctx context.Context) ([]storage.SaveInfo, error) {
	cat, ok := s.store.(storage.Catalog)
	if !ok {
		return nil, ErrSavesUnsupported
	}
	saves, err := cat.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing saved games: %w", err)
	}
	return saves, nil
}

// ActiveSave names the saved game this conductor persists to, or "" when the
// store keeps a single game.
func (s *Service) ActiveSave() string {
	if cat, ok := s.store.(storage.Catalog); ok {
		return cat.ActiveKey()
	}
	return ""
}

// RemoveSave deletes another conductor's saved game.
//
// Postcondition: Returns ErrActiveSave for the active key and
// storage.ErrNotFound for a key with no saved game.
func (s *Service) RemoveSave(ctx context.Context, key string) error {
	cat, ok := s.store.(storage.Catalog)
	if !ok {
		return ErrSavesUnsupported
	}
	if key == cat.ActiveKey() {
		return fmt.Errorf("%w: %s", ErrActiveSave, key)
	}
	if err := cat.Remove(ctx, key); err != nil {
		return err
	}
	s.logger.Info("saved game removed", zap.String("key", key))
	return nil
}
