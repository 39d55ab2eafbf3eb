// Package derived recomputes the fields of a player that follow from its stop
// list: per-stop leg payouts, the visited list and the home city.
package derived

import (
	"github.com/cory-johannsen/boxcars/internal/game/player"
)

// PayoutTable resolves the payout between two city ids.
type PayoutTable interface {
	Payout(a, b int) (int, bool)
}

// CityDirectory resolves city ids to reference data.
type CityDirectory interface {
	RegionOf(id int) (string, bool)
}

// Recompute refreshes p's derived fields in place. payouts may be nil, in
// which case every leg payout is null.
//
// Postcondition: Stops[i].PayoutFromPrev is the payout from Stops[i+1] to
// Stops[i] when both have cities and the table knows the pair, otherwise nil;
// VisitedCityIDs lists every stop city newest first with duplicates kept;
// HomeCityID is the city of the oldest stop that has one. Calling Recompute
// twice yields identical results.
func Recompute(p *player.Player, payouts PayoutTable) {
	visited := make([]int, 0, len(p.Stops))
	var home *int
	for i := range p.Stops {
		cur := &p.Stops[i]
		cur.PayoutFromPrev = nil
		if cur.HasCity() {
			visited = append(visited, cur.City())
			home = player.CityRef(cur.City())
		}
		if i+1 >= len(p.Stops) || payouts == nil {
			continue
		}
		prev := p.Stops[i+1]
		if !prev.HasCity() || !cur.HasCity() {
			continue
		}
		if v, ok := payouts.Payout(prev.City(), cur.City()); ok {
			cur.PayoutFromPrev = &v
		}
	}
	p.VisitedCityIDs = visited
	p.HomeCityID = home
}

// RecomputeAll refreshes every player of g.
func RecomputeAll(g *player.GameState, payouts PayoutTable) {
	for _, p := range g.Players {
		Recompute(p, payouts)
	}
}

// CurrentRegion returns the region of p's newest stop that has a city.
//
// Postcondition: Returns ("", false) when no stop has a city or the city is unknown.
func CurrentRegion(p *player.Player, cities CityDirectory) (string, bool) {
	for _, s := range p.Stops {
		if s.HasCity() {
			return cities.RegionOf(s.City())
		}
	}
	return "", false
}
