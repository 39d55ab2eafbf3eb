// Package dataset provides the immutable per-map reference data: cities,
// regions, the two-stage roll tables and the payout matrix.
package dataset

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cory-johannsen/boxcars/internal/game/dice"
	"github.com/cory-johannsen/boxcars/internal/game/payout"
)

// MapID identifies a map dataset.
type MapID string

const (
	// US is the Rail Baron / Boxcars United States map.
	US MapID = "US"
	// GB is the Boxcars Great Britain map.
	GB MapID = "GB"
)

// ErrUnknownMap is returned by ParseMapID for names other than US and GB.
var ErrUnknownMap = errors.New("unknown map")

// Valid reports whether id names a known map.
func (id MapID) Valid() bool {
	return id == US || id == GB
}

// ParseMapID converts a case-insensitive map name into a MapID.
//
// Postcondition: Returns a valid MapID or a non-nil error.
func ParseMapID(s string) (MapID, error) {
	id := MapID(strings.ToUpper(strings.TrimSpace(s)))
	if !id.Valid() {
		return "", fmt.Errorf("%w %q: must be one of [US, GB]", ErrUnknownMap, s)
	}
	return id, nil
}

// City is a destination on a map. IDs are 1-based and stable for the
// lifetime of a dataset.
type City struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
}

// Chart is a static (parity, 2d6 sum) → value table.
type Chart map[dice.Parity]map[int]string

// Lookup returns the chart cell for (p, sum).
//
// Postcondition: Returns ("", false) when the cell is absent.
func (c Chart) Lookup(p dice.Parity, sum int) (string, bool) {
	col, ok := c[p]
	if !ok {
		return "", false
	}
	v, ok := col[sum]
	return v, ok && v != ""
}

func (c Chart) complete() error {
	for _, p := range []dice.Parity{dice.Odd, dice.Even} {
		for s := dice.MinSum; s <= dice.MaxSum; s++ {
			if _, ok := c.Lookup(p, s); !ok {
				return fmt.Errorf("missing entry %s", dice.Draw{Parity: p, Sum: s})
			}
		}
	}
	return nil
}

// Dataset is the read-only reference data for one map. It is safe for
// concurrent use because nothing mutates it after construction.
type Dataset struct {
	id           MapID
	name         string
	regions      []string
	cities       []City
	byRegion     map[string][]City
	regionChart  Chart
	destinations map[string]Chart
	names        *resolver
	payouts      *payout.Matrix
}

// ID returns the map identifier.
func (d *Dataset) ID() MapID { return d.id }

// Name returns the display name of the map.
func (d *Dataset) Name() string { return d.name }

// Regions returns the region names in definition order.
func (d *Dataset) Regions() []string {
	return append([]string(nil), d.regions...)
}

// Cities returns every city in id order.
func (d *Dataset) Cities() []City {
	return append([]City(nil), d.cities...)
}

// CitiesByName returns every city sorted by name.
func (d *Dataset) CitiesByName() []City {
	out := d.Cities()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CitiesInRegion returns the cities of region sorted by name.
func (d *Dataset) CitiesInRegion(region string) []City {
	return append([]City(nil), d.byRegion[region]...)
}

// City returns the city with the given id.
//
// Postcondition: Returns (City{}, false) for unknown ids.
func (d *Dataset) City(id int) (City, bool) {
	if id <= 0 || id > len(d.cities) {
		return City{}, false
	}
	return d.cities[id-1], true
}

// RegionOf returns the region of a city id.
func (d *Dataset) RegionOf(id int) (string, bool) {
	c, ok := d.City(id)
	if !ok {
		return "", false
	}
	return c.Region, true
}

// ResolveRegion looks up the first-stage region table.
//
// Postcondition: Returns ("", false) for draws outside the table.
func (d *Dataset) ResolveRegion(p dice.Parity, sum int) (string, bool) {
	return d.regionChart.Lookup(p, sum)
}

// ResolveCity looks up the second-stage destination chart of region.
//
// Postcondition: Returns ("", false) for unknown regions or draws outside the chart.
func (d *Dataset) ResolveCity(region string, p dice.Parity, sum int) (string, bool) {
	chart, ok := d.destinations[region]
	if !ok {
		return "", false
	}
	return chart.Lookup(p, sum)
}

// ResolveIDByName resolves a city name to its id. contextRegion, which may be
// empty, disambiguates names shared by several cities.
//
// Postcondition: Returns (0, false) for unknown names. Never panics.
func (d *Dataset) ResolveIDByName(name, contextRegion string) (int, bool) {
	return d.names.resolve(name, contextRegion)
}

// Payout returns the payout between two city ids.
//
// Postcondition: Returns (0, false) for invalid ids or when the map has no payout table.
func (d *Dataset) Payout(a, b int) (int, bool) {
	return d.payouts.Payout(a, b)
}

// HasPayouts reports whether a payout matrix was loaded for this map.
func (d *Dataset) HasPayouts() bool {
	return d.payouts.Size() > 0
}
