// Package player defines the player/stop data model and its lifecycle
// operations. Derived fields are recomputed by package derived.
package player

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrStopIndex is returned when a stop index is outside the stop list.
var ErrStopIndex = errors.New("stop index out of range")

// Color is a player token colour.
type Color string

const (
	Black  Color = "black"
	Red    Color = "red"
	Blue   Color = "blue"
	Green  Color = "green"
	White  Color = "white"
	Yellow Color = "yellow"
)

// Colors lists every valid colour in display order.
var Colors = []Color{Black, Red, Blue, Green, White, Yellow}

// Valid reports whether c is one of Colors.
func (c Color) Valid() bool {
	for _, v := range Colors {
		if c == v {
			return true
		}
	}
	return false
}

// Train is a locomotive upgrade level.
type Train string

const (
	Standard   Train = "Standard"
	Express    Train = "Express"
	SuperChief Train = "Super Chief"
)

// Trains lists every valid train in upgrade order.
var Trains = []Train{Standard, Express, SuperChief}

// Valid reports whether t is one of Trains.
func (t Train) Valid() bool {
	return t == Standard || t == Express || t == SuperChief
}

// DefaultName is the name given to players created without one.
const DefaultName = "Player"

// Stop is one entry of a player's route. A nil CityID means the stop has no
// city yet.
type Stop struct {
	CityID         *int   `json:"cityId"`
	PayoutFromPrev *int   `json:"payoutFromPrev"`
	Unreachable    bool   `json:"unreachable"`
	LastRollText   string `json:"lastRollText"`
}

// HasCity reports whether the stop names a city.
func (s Stop) HasCity() bool {
	return s.CityID != nil
}

// City returns the stop's city id, or 0 when unset.
func (s Stop) City() int {
	if s.CityID == nil {
		return 0
	}
	return *s.CityID
}

// CityRef returns a nullable city reference for id. Non-positive ids yield nil.
func CityRef(id int) *int {
	if id <= 0 {
		return nil
	}
	return &id
}

// Player is a tracked player. Stops are ordered newest first and never empty.
//
// HomeCityID and VisitedCityIDs are derived from Stops; they are serialized
// only as a cache.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     Color  `json:"color"`
	Train     Train  `json:"train"`
	Collapsed bool   `json:"collapsed"`
	Stops     []Stop `json:"stops"`

	HomeCityID     *int  `json:"homeCityId"`
	VisitedCityIDs []int `json:"visitedCityIds"`

	rev uint64
}

// New creates a player with one empty stop.
//
// Postcondition: The returned player has a fresh uuid, the default name when
// name is empty, colour black and the Standard train.
func New(name string) *Player {
	if name == "" {
		name = DefaultName
	}
	return &Player{
		ID:             uuid.NewString(),
		Name:           name,
		Color:          Black,
		Train:          Standard,
		Stops:          []Stop{{}},
		VisitedCityIDs: []int{},
	}
}

// Revision returns a counter bumped by every mutation of the player.
func (p *Player) Revision() uint64 {
	return p.rev
}

func (p *Player) touch() {
	p.rev++
}

// HasHomeCity reports whether any stop names a city.
func (p *Player) HasHomeCity() bool {
	for _, s := range p.Stops {
		if s.HasCity() {
			return true
		}
	}
	return false
}

// Rename sets the player's name; an empty name becomes DefaultName.
func (p *Player) Rename(name string) {
	if name == "" {
		name = DefaultName
	}
	p.Name = name
	p.touch()
}

// SetColor sets the player's colour.
//
// Postcondition: Returns an error and leaves the player unchanged for invalid colours.
func (p *Player) SetColor(c Color) error {
	if !c.Valid() {
		return fmt.Errorf("invalid color %q", c)
	}
	p.Color = c
	p.touch()
	return nil
}

// SetTrain sets the player's train.
//
// Postcondition: Returns an error and leaves the player unchanged for invalid trains.
func (p *Player) SetTrain(t Train) error {
	if !t.Valid() {
		return fmt.Errorf("invalid train %q", t)
	}
	p.Train = t
	p.touch()
	return nil
}

// SetCollapsed sets the card collapsed flag.
func (p *Player) SetCollapsed(v bool) {
	p.Collapsed = v
	p.touch()
}

// AddStop inserts an empty stop at the head of the list.
func (p *Player) AddStop() {
	p.PrependStop(Stop{})
}

// PrependStop inserts s at the head of the list as the newest stop.
func (p *Player) PrependStop(s Stop) {
	p.Stops = append([]Stop{s}, p.Stops...)
	p.touch()
}

// DeleteStop removes the stop at index i. Deleting the only stop replaces it
// with a fresh empty stop.
//
// Postcondition: len(p.Stops) >= 1.
func (p *Player) DeleteStop(i int) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	p.Stops = append(p.Stops[:i], p.Stops[i+1:]...)
	if len(p.Stops) == 0 {
		p.Stops = []Stop{{}}
	}
	p.touch()
	return nil
}

// MoveStop moves the stop at index from to index to.
func (p *Player) MoveStop(from, to int) error {
	if err := p.checkIndex(from); err != nil {
		return err
	}
	if err := p.checkIndex(to); err != nil {
		return err
	}
	s := p.Stops[from]
	p.Stops = append(p.Stops[:from], p.Stops[from+1:]...)
	p.Stops = append(p.Stops[:to], append([]Stop{s}, p.Stops[to:]...)...)
	p.touch()
	return nil
}

// SetStopCity sets or, with a nil id, clears the city of stop i.
func (p *Player) SetStopCity(i int, cityID *int) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	if cityID != nil {
		cityID = CityRef(*cityID)
	}
	p.Stops[i].CityID = cityID
	p.touch()
	return nil
}

// SetStopRollText replaces the roll summary of stop i.
func (p *Player) SetStopRollText(i int, text string) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	p.Stops[i].LastRollText = text
	p.touch()
	return nil
}

// SetStopUnreachable flags stop i as unreachable or clears the flag.
func (p *Player) SetStopUnreachable(i int, v bool) error {
	if err := p.checkIndex(i); err != nil {
		return err
	}
	p.Stops[i].Unreachable = v
	p.touch()
	return nil
}

func (p *Player) checkIndex(i int) error {
	if i < 0 || i >= len(p.Stops) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrStopIndex, i, len(p.Stops))
	}
	return nil
}

// Clone returns a deep copy of the player, revision included.
func (p *Player) Clone() *Player {
	c := *p
	c.Stops = make([]Stop, len(p.Stops))
	for i, s := range p.Stops {
		c.Stops[i] = Stop{
			CityID:         cloneInt(s.CityID),
			PayoutFromPrev: cloneInt(s.PayoutFromPrev),
			Unreachable:    s.Unreachable,
			LastRollText:   s.LastRollText,
		}
	}
	c.HomeCityID = cloneInt(p.HomeCityID)
	c.VisitedCityIDs = append([]int{}, p.VisitedCityIDs...)
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
