package conductor

import (
	"context"
	"errors"
	"fmt"

	"github.com/cory-johannsen/boxcars/internal/game/derived"
	"github.com/cory-johannsen/boxcars/internal/game/player"
)

var (
	// ErrInvalidColor rejects a colour outside player.Colors.
	ErrInvalidColor = errors.New("invalid color")
	// ErrInvalidTrain rejects a train outside player.Trains.
	ErrInvalidTrain = errors.New("invalid train")
	// ErrUnknownCity rejects a city id the active map does not define.
	ErrUnknownCity = errors.New("unknown city")
)

// PlayerUpdate carries optional edits to a player; nil fields are left alone.
type PlayerUpdate struct {
	Name      *string       `json:"name"`
	Color     *player.Color `json:"color"`
	Train     *player.Train `json:"train"`
	Collapsed *bool         `json:"collapsed"`
}

// AddPlayer appends a player with one empty stop.
func (s *Service) AddPlayer(ctx context.Context, name string) (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.state.AddPlayer(name)
	derived.Recompute(p, s.ds)
	s.persistLocked(ctx)
	return p.Clone(), nil
}

// UpdatePlayer applies u to the player. Invalid colours or trains reject the
// whole update.
func (s *Service) UpdatePlayer(ctx context.Context, id string, u PlayerUpdate) (*player.Player, error) {
	if u.Color != nil && !u.Color.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, *u.Color)
	}
	if u.Train != nil && !u.Train.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTrain, *u.Train)
	}
	return s.mutatePlayer(ctx, id, func(p *player.Player) error {
		if u.Name != nil {
			p.Rename(*u.Name)
		}
		if u.Color != nil {
			if err := p.SetColor(*u.Color); err != nil {
				return err
			}
		}
		if u.Train != nil {
			if err := p.SetTrain(*u.Train); err != nil {
				return err
			}
		}
		if u.Collapsed != nil {
			p.SetCollapsed(*u.Collapsed)
		}
		return nil
	})
}

// RemovePlayer deletes a player.
func (s *Service) RemovePlayer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.RemovePlayer(id); err != nil {
		return err
	}
	s.persistLocked(ctx)
	return nil
}

// MovePlayer shifts a player by delta positions; moves off either end are
// ignored.
func (s *Service) MovePlayer(ctx context.Context, id string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	moved, err := s.state.MovePlayer(id, delta)
	if err != nil {
		return err
	}
	if moved {
		s.persistLocked(ctx)
	}
	return nil
}

// ReorderPlayer moves a player into targetID's position.
func (s *Service) ReorderPlayer(ctx context.Context, id, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.ReorderPlayer(id, targetID); err != nil {
		return err
	}
	s.persistLocked(ctx)
	return nil
}

// AddStop inserts an empty stop at the head of a player's list.
func (s *Service) AddStop(ctx context.Context, id string) (*player.Player, error) {
	return s.mutatePlayer(ctx, id, func(p *player.Player) error {
		p.AddStop()
		return nil
	})
}

// DeleteStop removes stop i; the list never becomes empty.
func (s *Service) DeleteStop(ctx context.Context, id string, i int) (*player.Player, error) {
	return s.mutatePlayer(ctx, id, func(p *player.Player) error {
		return p.DeleteStop(i)
	})
}

// MoveStop moves a stop within a player's list.
func (s *Service) MoveStop(ctx context.Context, id string, from, to int) (*player.Player, error) {
	return s.mutatePlayer(ctx, id, func(p *player.Player) error {
		return p.MoveStop(from, to)
	})
}

// SetStopCity sets or clears the city of stop i. A non-positive id clears it.
//
// Postcondition: Returns ErrUnknownCity, leaving the stop unchanged, when
// cityID is not a city of the active map.
func (s *Service) SetStopCity(ctx context.Context, id string, i int, cityID *int) (*player.Player, error) {
	return s.mutatePlayer(ctx, id, func(p *player.Player) error {
		if cityID != nil && *cityID > 0 {
			if _, ok := s.ds.City(*cityID); !ok {
				return fmt.Errorf("%w: %d on map %s", ErrUnknownCity, *cityID, s.ds.ID())
			}
		}
		return p.SetStopCity(i, cityID)
	})
}

// SetStopUnreachable flags or clears stop i as unreachable.
func (s *Service) SetStopUnreachable(ctx context.Context, id string, i int, v bool) (*player.Player, error) {
	return s.mutatePlayer(ctx, id, func(p *player.Player) error {
		return p.SetStopUnreachable(i, v)
	})
}

// mutatePlayer runs fn on the live player, then recomputes and persists.
func (s *Service) mutatePlayer(ctx context.Context, id string, fn func(*player.Player) error) (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.state.Player(id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	derived.Recompute(p, s.ds)
	s.persistLocked(ctx)
	return p.Clone(), nil
}

