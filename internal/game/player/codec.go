package player

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/cory-johannsen/boxcars/internal/game/dataset"
)

// ErrInvalidImport is returned by Decode when the document has no players array.
var ErrInvalidImport = errors.New("invalid import: missing players array")

// Encode renders the game in its persisted JSON shape, indented for export.
func Encode(g *GameState) ([]byte, error) {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding game state: %w", err)
	}
	return data, nil
}

// looseDoc mirrors the persisted shape with every field left untyped so that
// bad values can be coerced instead of failing the whole document.
type looseDoc struct {
	Players  []any          `json:"players"`
	Settings map[string]any `json:"settings"`
}

// Decode parses an imported document.
//
// Postcondition: Returns ErrInvalidImport when data is not JSON or has no
// players array. Otherwise every field is coerced to a safe value and the
// returned state's derived fields are stale until recomputed.
func Decode(data []byte) (*GameState, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	raw, ok := fields["players"]
	if !ok {
		return nil, ErrInvalidImport
	}
	var doc looseDoc
	if err := json.Unmarshal(raw, &doc.Players); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if doc.Players == nil {
		return nil, ErrInvalidImport
	}
	if s, ok := fields["settings"]; ok {
		_ = json.Unmarshal(s, &doc.Settings)
	}
	return doc.coerce(), nil
}

// DecodeOrDefault parses a persisted blob. A blob that cannot be decoded
// yields an empty US game and the decode error, which callers log.
//
// Postcondition: The returned state is never nil.
func DecodeOrDefault(data []byte) (*GameState, error) {
	if len(data) == 0 {
		return NewGameState(dataset.US), nil
	}
	g, err := Decode(data)
	if err != nil {
		return NewGameState(dataset.US), err
	}
	return g, nil
}

func (d looseDoc) coerce() *GameState {
	m := dataset.US
	if v, _ := d.Settings["map"].(string); v == string(dataset.GB) {
		m = dataset.GB
	}
	g := NewGameState(m)
	for _, v := range d.Players {
		raw, _ := v.(map[string]any)
		g.Players = append(g.Players, coercePlayer(raw))
	}
	return g
}

func coercePlayer(raw map[string]any) *Player {
	p := &Player{
		ID:             stringOr(raw["id"], ""),
		Name:           stringOr(raw["name"], DefaultName),
		Color:          Color(stringOr(raw["color"], "")),
		Train:          Train(stringOr(raw["train"], "")),
		Collapsed:      truthy(raw["collapsed"]),
		VisitedCityIDs: []int{},
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if !p.Color.Valid() {
		p.Color = Black
	}
	if !p.Train.Valid() {
		p.Train = Standard
	}
	stops, _ := raw["stops"].([]any)
	for _, rs := range stops {
		s, _ := rs.(map[string]any)
		p.Stops = append(p.Stops, Stop{
			CityID:       cityID(s["cityId"]),
			Unreachable:  truthy(s["unreachable"]),
			LastRollText: stringOr(s["lastRollText"], ""),
		})
	}
	if len(p.Stops) == 0 {
		p.Stops = []Stop{{}}
	}
	return p
}

// stringOr renders scalars as strings; empty or missing values yield def.
func stringOr(v any, def string) string {
	switch x := v.(type) {
	case string:
		if x != "" {
			return x
		}
	case float64:
		if x != 0 {
			return fmt.Sprint(x)
		}
	case bool:
		if x {
			return "true"
		}
	}
	return def
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		return x != ""
	case nil:
		return false
	}
	return true
}

// cityID accepts positive whole numbers; anything else becomes null.
func cityID(v any) *int {
	x, ok := v.(float64)
	if !ok || x <= 0 || x != math.Trunc(x) || x > math.MaxInt32 {
		return nil
	}
	return CityRef(int(x))
}
