// Package stats aggregates completed legs and payouts per player.
package stats

import (
	"strconv"
	"strings"

	"github.com/cory-johannsen/boxcars/internal/game/player"
)

// Row holds one player's statistics.
type Row struct {
	PlayerID     string `json:"playerId,omitempty"`
	Name         string `json:"name"`
	LegsCount    int    `json:"legsCount"`
	TotalPayout  int    `json:"totalPayout"`
	UniqueCities int    `json:"uniqueCities"`
}

// Report is the result of Compute.
type Report struct {
	Rows   []Row `json:"rows"`
	Totals Row   `json:"totals"`
}

// Compute aggregates the legs of every player in g.
//
// A leg is a stop with an older predecessor where both stops have cities and,
// unless includeUnreachable is set, the stop is not flagged unreachable.
// UniqueCities counts distinct cities across all stops of the player.
//
// Postcondition: Totals.UniqueCities is the sum of the per-player counts, not
// a count of distinct cities across players.
func Compute(g *player.GameState, includeUnreachable bool) Report {
	r := Report{Rows: make([]Row, 0, len(g.Players)), Totals: Row{Name: "Total"}}
	for _, p := range g.Players {
		row := Row{PlayerID: p.ID, Name: p.Name}
		seen := make(map[int]bool)
		for i, s := range p.Stops {
			if s.HasCity() {
				seen[s.City()] = true
			}
			if i == len(p.Stops)-1 || !s.HasCity() || !p.Stops[i+1].HasCity() {
				continue
			}
			if s.Unreachable && !includeUnreachable {
				continue
			}
			row.LegsCount++
			if s.PayoutFromPrev != nil {
				row.TotalPayout += *s.PayoutFromPrev
			}
		}
		row.UniqueCities = len(seen)
		r.Rows = append(r.Rows, row)

		r.Totals.LegsCount += row.LegsCount
		r.Totals.TotalPayout += row.TotalPayout
		r.Totals.UniqueCities += row.UniqueCities
	}
	return r
}

// CSVHeader is the first line of BuildCSV output.
const CSVHeader = "Player,Completed legs,Total payouts,Unique cities"

// BuildCSV renders the per-player rows as CSV lines joined by "\n", with no
// trailing newline. The totals row is not exported.
func BuildCSV(r Report) string {
	lines := make([]string, 0, len(r.Rows)+1)
	lines = append(lines, CSVHeader)
	for _, row := range r.Rows {
		lines = append(lines, strings.Join([]string{
			EscapeCSV(row.Name),
			strconv.Itoa(row.LegsCount),
			strconv.Itoa(row.TotalPayout),
			strconv.Itoa(row.UniqueCities),
		}, ","))
	}
	return strings.Join(lines, "\n")
}

// EscapeCSV quotes s when it contains a comma, a double quote or a newline,
// doubling embedded quotes.
func EscapeCSV(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
