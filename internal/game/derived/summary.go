package derived

import (
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/player"
)

// Summary is the headline of a player card.
type Summary struct {
	PlayerID    string `json:"playerId"`
	Name        string `json:"name"`
	HomeCity    string `json:"homeCity,omitempty"`
	Destination string `json:"destination,omitempty"`
	Region      string `json:"region,omitempty"`
	LastPayout  *int   `json:"lastPayout"`
	LastRoll    string `json:"lastRoll,omitempty"`
}

// Summarize describes p against d. Derived fields must be current.
func Summarize(p *player.Player, d *dataset.Dataset) Summary {
	s := Summary{PlayerID: p.ID, Name: p.Name}
	if p.HomeCityID != nil {
		if c, ok := d.City(*p.HomeCityID); ok {
			s.HomeCity = c.Name
		}
	}
	for _, st := range p.Stops {
		if !st.HasCity() {
			continue
		}
		if c, ok := d.City(st.City()); ok {
			s.Destination = c.Name
			s.Region = c.Region
		}
		s.LastPayout = st.PayoutFromPrev
		s.LastRoll = st.LastRollText
		break
	}
	return s
}
