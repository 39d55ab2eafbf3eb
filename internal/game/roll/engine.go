package roll

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/derived"
	"github.com/cory-johannsen/boxcars/internal/game/dice"
	"github.com/cory-johannsen/boxcars/internal/game/player"
)

// ErrStaleRoll is returned by Apply when the player changed after the roll was
// planned.
var ErrStaleRoll = errors.New("player changed while the roll was pending")

// NoCity stands in for the city name in roll text when no city resolved.
const NoCity = "—"

// UnknownCity stands in for a home city id missing from the dataset.
const UnknownCity = "Unknown City"

// Phase is a step of a roll interaction.
type Phase string

const (
	Idle             Phase = "idle"
	RegionRolled     Phase = "region_rolled"
	RegionConfirmed  Phase = "region_confirmed"
	RegionReselected Phase = "region_reselected"
	CityRolled       Phase = "city_rolled"
	Committed        Phase = "committed"
	Declined         Phase = "declined"
)

// Kind distinguishes a destination roll from a home-city roll.
type Kind string

const (
	NextStop Kind = "next_stop"
	HomeCity Kind = "home_city"
)

// Outcome is a planned, and after Apply committed, roll.
type Outcome struct {
	Kind     Kind   `json:"kind"`
	PlayerID string `json:"playerId"`

	RegionDraw   dice.Draw `json:"regionDraw"`
	RolledRegion string    `json:"rolledRegion"`
	Region       string    `json:"region"`
	Guarded      bool      `json:"guarded"`

	CityDraw *dice.Draw `json:"cityDraw,omitempty"`
	CityName string     `json:"cityName,omitempty"`
	CityID   int        `json:"cityId,omitempty"`

	Text  string  `json:"text"`
	Trace []Phase `json:"trace"`

	revision uint64
}

// Phase returns the latest phase reached.
func (o *Outcome) Phase() Phase {
	if len(o.Trace) == 0 {
		return Idle
	}
	return o.Trace[len(o.Trace)-1]
}

// Declined reports whether the operator cancelled a home-city pick.
func (o *Outcome) Declined() bool {
	return o.Phase() == Declined
}

func (o *Outcome) enter(p Phase) {
	o.Trace = append(o.Trace, p)
}

// Engine runs rolls against an injected RNG and Chooser.
type Engine struct {
	rng     RNG
	chooser Chooser
	logger  *zap.Logger
}

// NewEngine creates an Engine. A nil chooser selects AutoChooser and a nil
// logger discards output.
//
// Precondition: rng must not be nil.
func NewEngine(rng RNG, chooser Chooser, logger *zap.Logger) *Engine {
	if rng == nil {
		panic("roll.NewEngine: rng must not be nil")
	}
	if chooser == nil {
		chooser = AutoChooser{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rng: rng, chooser: chooser, logger: logger}
}

// WithChooser returns a copy of e that asks c for operator decisions.
func (e *Engine) WithChooser(c Chooser) *Engine {
	cp := *e
	if c == nil {
		c = AutoChooser{}
	}
	cp.chooser = c
	return &cp
}

// Plan draws dice and consults the chooser for p without mutating it.
// A player with no city yet gets a home-city roll.
//
// Precondition: claimed holds the home city ids of the other players.
// Postcondition: Returns an Outcome in phase CityRolled (next stop),
// RegionRolled (home city picked) or Declined, or the chooser's error.
func (e *Engine) Plan(ctx context.Context, d *dataset.Dataset, p *player.Player, claimed map[int]bool) (*Outcome, error) {
	if !p.HasHomeCity() {
		return e.planHomeCity(ctx, d, p, claimed)
	}
	return e.planNextStop(ctx, d, p)
}

func (e *Engine) planNextStop(ctx context.Context, d *dataset.Dataset, p *player.Player) (*Outcome, error) {
	o := &Outcome{Kind: NextStop, PlayerID: p.ID, revision: p.Revision()}
	o.enter(Idle)

	o.RegionDraw = e.draw()
	o.RolledRegion, _ = d.ResolveRegion(o.RegionDraw.Parity, o.RegionDraw.Sum)
	o.Region = o.RolledRegion
	o.enter(RegionRolled)

	current, ok := derived.CurrentRegion(p, d)
	if ok && o.RolledRegion != "" && current == o.RolledRegion {
		o.Guarded = true
		region, err := e.chooser.ChooseRegion(ctx, o.RolledRegion, d.Regions())
		if err != nil {
			return nil, fmt.Errorf("choosing region: %w", err)
		}
		o.Region = region
	}
	if o.Region != o.RolledRegion {
		o.enter(RegionReselected)
	} else {
		o.enter(RegionConfirmed)
	}

	cd := e.draw()
	o.CityDraw = &cd
	o.CityName = NoCity
	if name, ok := d.ResolveCity(o.Region, cd.Parity, cd.Sum); ok {
		o.CityName = name
		// Ambiguous chart names such as "Portland" take the qualified name
		// of the city they resolve to.
		if id, ok := d.ResolveIDByName(name, o.Region); ok {
			o.CityID = id
			if c, ok := d.City(id); ok {
				o.CityName = c.Name
			}
		}
	}
	o.enter(CityRolled)
	o.Text = fmt.Sprintf("%s+%d → %s; %s+%d → %s.",
		o.RegionDraw.Parity.Title(), o.RegionDraw.Sum, orDash(o.Region),
		cd.Parity.Title(), cd.Sum, o.CityName)

	e.logger.Debug("planned next stop",
		zap.String("player", p.ID),
		zap.String("rolled_region", o.RolledRegion),
		zap.String("region", o.Region),
		zap.Bool("guarded", o.Guarded),
		zap.String("city", o.CityName),
		zap.Int("city_id", o.CityID),
	)
	return o, nil
}

func (e *Engine) planHomeCity(ctx context.Context, d *dataset.Dataset, p *player.Player, claimed map[int]bool) (*Outcome, error) {
	o := &Outcome{Kind: HomeCity, PlayerID: p.ID, revision: p.Revision()}
	o.enter(Idle)

	o.RegionDraw = e.draw()
	o.RolledRegion, _ = d.ResolveRegion(o.RegionDraw.Parity, o.RegionDraw.Sum)
	o.Region = o.RolledRegion
	o.enter(RegionRolled)
	o.Text = fmt.Sprintf("%s+%d → %s", o.RegionDraw.Parity.Title(), o.RegionDraw.Sum, orDash(o.Region))

	id, err := e.chooser.ChooseHomeCity(ctx, o.Region, Candidates(d, o.Region, claimed))
	if errors.Is(err, ErrDeclined) || (err == nil && id <= 0) {
		o.enter(Declined)
		e.logger.Debug("home city declined", zap.String("player", p.ID), zap.String("region", o.Region))
		return o, nil
	}
	if err != nil {
		return nil, fmt.Errorf("choosing home city: %w", err)
	}

	o.CityID = id
	o.CityName = UnknownCity
	if c, ok := d.City(id); ok {
		o.CityName = c.Name
	}
	o.Text += " → " + o.CityName
	e.logger.Debug("planned home city",
		zap.String("player", p.ID),
		zap.String("region", o.Region),
		zap.String("city", o.CityName),
	)
	return o, nil
}

func orDash(s string) string {
	if s == "" {
		return NoCity
	}
	return s
}

func (e *Engine) draw() dice.Draw {
	return dice.Draw{Parity: e.rng.Parity(), Sum: e.rng.TwoDiceSum()}
}

// Apply commits a planned outcome to p and recomputes its derived fields
// against d. A declined outcome changes nothing.
//
// Precondition: o was returned by Plan for this player.
// Postcondition: Returns ErrStaleRoll, leaving p unchanged, when p was
// mutated since Plan; otherwise o is in phase Committed or Declined.
func (e *Engine) Apply(d *dataset.Dataset, p *player.Player, o *Outcome) error {
	if o.PlayerID != p.ID || o.revision != p.Revision() {
		return ErrStaleRoll
	}
	if o.Declined() {
		return nil
	}
	switch o.Kind {
	case NextStop:
		p.PrependStop(player.Stop{CityID: player.CityRef(o.CityID), LastRollText: o.Text})
	case HomeCity:
		last := len(p.Stops) - 1
		if err := p.SetStopCity(last, player.CityRef(o.CityID)); err != nil {
			return err
		}
		if err := p.SetStopRollText(last, o.Text); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown roll kind %q", o.Kind)
	}
	derived.Recompute(p, d)
	o.revision = p.Revision()
	o.enter(Committed)
	e.logger.Info("roll committed",
		zap.String("player", p.ID),
		zap.String("kind", string(o.Kind)),
		zap.String("text", o.Text),
	)
	return nil
}

// Roll plans and applies a roll for p in one step.
func (e *Engine) Roll(ctx context.Context, d *dataset.Dataset, p *player.Player, claimed map[int]bool) (*Outcome, error) {
	o, err := e.Plan(ctx, d, p, claimed)
	if err != nil {
		return nil, err
	}
	if err := e.Apply(d, p, o); err != nil {
		return nil, err
	}
	return o, nil
}

// RollNextStop rolls a destination for p, or its home city when p has none.
func (e *Engine) RollNextStop(ctx context.Context, d *dataset.Dataset, p *player.Player, claimed map[int]bool) (*Outcome, error) {
	return e.Roll(ctx, d, p, claimed)
}

// RollHomeCity rolls a home-city region and asks the chooser for the city.
// It applies to the oldest stop even when p already has cities.
func (e *Engine) RollHomeCity(ctx context.Context, d *dataset.Dataset, p *player.Player, claimed map[int]bool) (*Outcome, error) {
	o, err := e.planHomeCity(ctx, d, p, claimed)
	if err != nil {
		return nil, err
	}
	if err := e.Apply(d, p, o); err != nil {
		return nil, err
	}
	return o, nil
}
