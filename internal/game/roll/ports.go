// Package roll resolves destinations for a player from two independent
// (parity, 2d6) draws through a map's region and destination charts.
package roll

import (
	"context"
	"errors"

	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/dice"
)

// ErrDeclined is returned by a Chooser when the operator cancels a home-city
// pick. The engine treats it as a silent no-op.
var ErrDeclined = errors.New("home city pick declined")

// RNG supplies the two components of every draw.
type RNG interface {
	// Parity returns odd or even with equal probability.
	Parity() dice.Parity
	// TwoDiceSum returns the sum of two six-sided dice.
	TwoDiceSum() int
}

// Chooser asks the operator for decisions the dice cannot make. Both calls
// may block for as long as the operator takes; implementations must honour
// ctx cancellation.
type Chooser interface {
	// ChooseRegion is invoked when the rolled region equals the player's
	// current region. The returned region is used as is.
	ChooseRegion(ctx context.Context, defaultRegion string, regions []string) (string, error)
	// ChooseHomeCity picks one of candidates as the player's home city, or
	// returns ErrDeclined.
	ChooseHomeCity(ctx context.Context, region string, candidates []dataset.City) (int, error)
}

// AutoChooser is the headless Chooser: it keeps the rolled region and picks
// the first candidate home city by name.
type AutoChooser struct{}

// ChooseRegion returns defaultRegion.
func (AutoChooser) ChooseRegion(_ context.Context, defaultRegion string, _ []string) (string, error) {
	return defaultRegion, nil
}

// ChooseHomeCity returns the first candidate, or ErrDeclined when there are none.
func (AutoChooser) ChooseHomeCity(_ context.Context, _ string, candidates []dataset.City) (int, error) {
	if len(candidates) == 0 {
		return 0, ErrDeclined
	}
	return candidates[0].ID, nil
}

// PresetChooser answers with decisions supplied up front, as a remote caller
// does when it sends its choices with the roll request.
type PresetChooser struct {
	// Region overrides the rolled region when the re-roll guard fires. Empty
	// keeps the rolled region.
	Region string
	// HomeCityID picks the home city. Zero picks the first candidate.
	HomeCityID int
	// Decline cancels a home-city pick.
	Decline bool
}

// ChooseRegion returns Region, or defaultRegion when Region is empty.
func (c PresetChooser) ChooseRegion(_ context.Context, defaultRegion string, _ []string) (string, error) {
	if c.Region == "" {
		return defaultRegion, nil
	}
	return c.Region, nil
}

// ChooseHomeCity returns HomeCityID when it is a candidate.
//
// Postcondition: Returns ErrDeclined when Decline is set, there are no
// candidates, or HomeCityID is not among them.
func (c PresetChooser) ChooseHomeCity(ctx context.Context, region string, candidates []dataset.City) (int, error) {
	if c.Decline {
		return 0, ErrDeclined
	}
	if c.HomeCityID == 0 {
		return AutoChooser{}.ChooseHomeCity(ctx, region, candidates)
	}
	for _, city := range candidates {
		if city.ID == c.HomeCityID {
			return city.ID, nil
		}
	}
	return 0, ErrDeclined
}

// Candidates lists the cities of region that no other player has claimed as
// a home city, sorted by name.
func Candidates(d *dataset.Dataset, region string, claimed map[int]bool) []dataset.City {
	all := d.CitiesInRegion(region)
	out := make([]dataset.City, 0, len(all))
	for _, c := range all {
		if !claimed[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
