package player

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/boxcars/internal/game/dataset"
)

// ErrPlayerNotFound is returned when no player has the requested id.
var ErrPlayerNotFound = errors.New("player not found")

// Settings holds game-wide options.
type Settings struct {
	Map dataset.MapID `json:"map"`
}

// GameState owns every player of one game.
type GameState struct {
	Players  []*Player `json:"players"`
	Settings Settings  `json:"settings"`
}

// NewGameState returns an empty game on the given map.
//
// Postcondition: Settings.Map is US unless m is GB.
func NewGameState(m dataset.MapID) *GameState {
	return &GameState{Players: []*Player{}, Settings: Settings{Map: coerceMap(m)}}
}

// Reset clears every player, selects map m and seeds one default player.
func (g *GameState) Reset(m dataset.MapID) {
	g.Players = []*Player{New("")}
	g.Settings = Settings{Map: coerceMap(m)}
}

// EnsurePlayer seeds one default player when the game has none.
//
// Postcondition: len(g.Players) >= 1.
func (g *GameState) EnsurePlayer() {
	if len(g.Players) == 0 {
		g.Players = append(g.Players, New(""))
	}
}

// AddPlayer appends a new player and returns it.
func (g *GameState) AddPlayer(name string) *Player {
	p := New(name)
	g.Players = append(g.Players, p)
	return p
}

// Player returns the player with the given id.
//
// Postcondition: Returns ErrPlayerNotFound when id is unknown.
func (g *GameState) Player(id string) (*Player, error) {
	i := g.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	return g.Players[i], nil
}

// RemovePlayer deletes the player with the given id.
func (g *GameState) RemovePlayer(id string) error {
	i := g.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	g.Players = append(g.Players[:i], g.Players[i+1:]...)
	return nil
}

// MovePlayer shifts a player by delta positions. A move that would leave the
// list is ignored.
//
// Postcondition: Returns true when the order changed.
func (g *GameState) MovePlayer(id string, delta int) (bool, error) {
	i := g.indexOf(id)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	j := i + delta
	if delta == 0 || j < 0 || j >= len(g.Players) {
		return false, nil
	}
	g.movePlayer(i, j)
	return true, nil
}

// ReorderPlayer moves the player id into the position currently held by
// targetID, as a drag-and-drop would.
func (g *GameState) ReorderPlayer(id, targetID string) error {
	from := g.indexOf(id)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	to := g.indexOf(targetID)
	if to < 0 {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, targetID)
	}
	if from != to {
		g.movePlayer(from, to)
	}
	return nil
}

func (g *GameState) movePlayer(from, to int) {
	p := g.Players[from]
	g.Players = append(g.Players[:from], g.Players[from+1:]...)
	g.Players = append(g.Players[:to], append([]*Player{p}, g.Players[to:]...)...)
}

// ClaimedHomeCities returns the home city ids of every player except
// excludeID. Derived fields must be current.
func (g *GameState) ClaimedHomeCities(excludeID string) map[int]bool {
	claimed := make(map[int]bool)
	for _, p := range g.Players {
		if p.ID == excludeID || p.HomeCityID == nil {
			continue
		}
		claimed[*p.HomeCityID] = true
	}
	return claimed
}

// Clone returns a deep copy of the game.
func (g *GameState) Clone() *GameState {
	c := &GameState{Players: make([]*Player, len(g.Players)), Settings: g.Settings}
	for i, p := range g.Players {
		c.Players[i] = p.Clone()
	}
	return c
}

func (g *GameState) indexOf(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func coerceMap(m dataset.MapID) dataset.MapID {
	if m == dataset.GB {
		return dataset.GB
	}
	return dataset.US
}
