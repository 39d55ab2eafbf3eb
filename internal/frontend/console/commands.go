package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/frontend/telnet"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/derived"
	"github.com/cory-johannsen/boxcars/internal/game/player"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
)

// ErrUsage reports a malformed command.
var ErrUsage = errors.New("usage")

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, s *Session, args []string) error
}

func commands() map[string]command {
	return map[string]command{
		"help":    {"help", "list commands", cmdHelp},
		"players": {"players", "show every player card", cmdPlayers},
		"player":  {"player <p>", "show one player's stops", cmdPlayer},
		"add":     {"add [name]", "add a player", cmdAdd},
		"rename":  {"rename <p> <name>", "rename a player", cmdRename},
		"color":   {"color <p> <color>", "set colour: " + joinColors(), cmdColor},
		"train":   {"train <p> <train>", "set train: " + joinTrains(), cmdTrain},
		"remove":  {"remove <p>", "remove a player", cmdRemove},
		"up":      {"up <p>", "move a player up", cmdShift(-1)},
		"down":    {"down <p>", "move a player down", cmdShift(1)},
		"move":    {"move <p> <target>", "move a player into another's position", cmdMove},
		"roll":    {"roll <p>", "roll the next stop, or a home city for a new player", cmdRoll},
		"stop":    {"stop add|set|clear|del|move|unreachable <p> ...", "edit stops, index 0 is the newest", cmdStop},
		"stats":   {"stats [all]", "legs and payouts; 'all' counts unreachable legs", cmdStats},
		"csv":     {"csv [all]", "stats as CSV", cmdCSV},
		"map":     {"map [US|GB]", "show or switch the map, keeping players", cmdMap},
		"new":     {"new <US|GB>", "start a new game", cmdNew},
		"regions": {"regions", "list regions", cmdRegions},
		"cities":  {"cities [region]", "list cities", cmdCities},
		"export":  {"export", "print the game as JSON", cmdExport},
		"saves":   {"saves [rm <key>]", "list saved games, or remove another one", cmdSaves},
	}
}

func usage(u string) error {
	return fmt.Errorf("%w: %s", ErrUsage, u)
}

func joinColors() string {
	names := make([]string, len(player.Colors))
	for i, c := range player.Colors {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func joinTrains() string {
	names := make([]string, len(player.Trains))
	for i, t := range player.Trains {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

func cmdHelp(_ context.Context, s *Session, _ []string) error {
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := cmds[name]
		if err := s.println("  %-44s %s", c.usage, c.help); err != nil {
			return err
		}
	}
	return s.println("  %-44s %s", "quit", "leave the console")
}

// resolvePlayer accepts a 1-based position, a player id or a name.
func (s *Session) resolvePlayer(ref string) (*player.Player, error) {
	g := s.svc.State()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(g.Players) {
			return nil, fmt.Errorf("no player #%d", n)
		}
		return g.Players[n-1], nil
	}
	for _, p := range g.Players {
		if p.ID == ref {
			return p, nil
		}
	}
	for _, p := range g.Players {
		if strings.EqualFold(p.Name, ref) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", player.ErrPlayerNotFound, ref)
}

func (s *Session) playerName(p *player.Player) string {
	return s.style.Paint(telnet.PlayerColor(string(p.Color)), p.Name)
}

func (s *Session) cityName(ds *dataset.Dataset, id int) string {
	if c, ok := ds.City(id); ok {
		return c.Name
	}
	return roll.UnknownCity
}

func cmdPlayers(_ context.Context, s *Session, _ []string) error {
	g := s.svc.State()
	byID := make(map[string]*player.Player, len(g.Players))
	for _, p := range g.Players {
		byID[p.ID] = p
	}
	for i, sum := range s.svc.Summaries() {
		if err := s.println("%d. %s", i+1, s.summaryLine(byID[sum.PlayerID], sum)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) summaryLine(p *player.Player, sum derived.Summary) string {
	parts := []string{fmt.Sprintf("%s [%s, %s]", s.playerName(p), p.Color, p.Train)}
	if sum.HomeCity != "" {
		parts = append(parts, "home "+sum.HomeCity)
	} else {
		parts = append(parts, s.style.Paint(telnet.Dim, "no home city"))
	}
	if sum.Destination != "" {
		parts = append(parts, fmt.Sprintf("at %s (%s)", sum.Destination, sum.Region))
	}
	if sum.LastPayout != nil {
		parts = append(parts, fmt.Sprintf("last payout %d", *sum.LastPayout))
	}
	if sum.LastRoll != "" {
		parts = append(parts, sum.LastRoll)
	}
	return strings.Join(parts, " | ")
}

func cmdPlayer(_ context.Context, s *Session, args []string) error {
	if len(args) != 1 {
		return usage("player <p>")
	}
	p, err := s.resolvePlayer(args[0])
	if err != nil {
		return err
	}
	ds := s.svc.Dataset()
	if err := s.println("%s [%s, %s]", s.playerName(p), p.Color, p.Train); err != nil {
		return err
	}
	for i, st := range p.Stops {
		city := s.style.Paint(telnet.Dim, roll.NoCity)
		if st.HasCity() {
			city = s.cityName(ds, st.City())
		}
		line := fmt.Sprintf("  %2d  %-20s", i, city)
		if st.PayoutFromPrev != nil {
			line += fmt.Sprintf(" +%d", *st.PayoutFromPrev)
		}
		if st.Unreachable {
			line += s.style.Paint(telnet.Yellow, " (unreachable)")
		}
		if st.LastRollText != "" {
			line += "  " + st.LastRollText
		}
		if err := s.io.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

func cmdAdd(ctx context.Context, s *Session, args []string) error {
	p, err := s.svc.AddPlayer(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	return s.println("Added %s.", s.playerName(p))
}

func (s *Session) update(ctx context.Context, ref string, u conductor.PlayerUpdate) (*player.Player, error) {
	p, err := s.resolvePlayer(ref)
	if err != nil {
		return nil, err
	}
	return s.svc.UpdatePlayer(ctx, p.ID, u)
}

func cmdRename(ctx context.Context, s *Session, args []string) error {
	if len(args) < 2 {
		return usage("rename <p> <name>")
	}
	name := strings.Join(args[1:], " ")
	p, err := s.update(ctx, args[0], conductor.PlayerUpdate{Name: &name})
	if err != nil {
		return err
	}
	return s.println("Renamed to %s.", s.playerName(p))
}

func cmdColor(ctx context.Context, s *Session, args []string) error {
	if len(args) != 2 {
		return usage("color <p> <color>")
	}
	c := player.Color(strings.ToLower(args[1]))
	p, err := s.update(ctx, args[0], conductor.PlayerUpdate{Color: &c})
	if err != nil {
		return err
	}
	return s.println("%s is now %s.", s.playerName(p), p.Color)
}

func cmdTrain(ctx context.Context, s *Session, args []string) error {
	if len(args) < 2 {
		return usage("train <p> <train>")
	}
	want := strings.Join(args[1:], " ")
	t := player.Train(want)
	for _, known := range player.Trains {
		if strings.EqualFold(string(known), want) {
			t = known
		}
	}
	p, err := s.update(ctx, args[0], conductor.PlayerUpdate{Train: &t})
	if err != nil {
		return err
	}
	return s.println("%s now runs a %s.", s.playerName(p), p.Train)
}

func cmdRemove(ctx context.Context, s *Session, args []string) error {
	if len(args) != 1 {
		return usage("remove <p>")
	}
	p, err := s.resolvePlayer(args[0])
	if err != nil {
		return err
	}
	if err := s.svc.RemovePlayer(ctx, p.ID); err != nil {
		return err
	}
	return s.println("Removed %s.", p.Name)
}

func cmdShift(delta int) func(context.Context, *Session, []string) error {
	return func(ctx context.Context, s *Session, args []string) error {
		if len(args) != 1 {
			return usage("up|down <p>")
		}
		p, err := s.resolvePlayer(args[0])
		if err != nil {
			return err
		}
		if err := s.svc.MovePlayer(ctx, p.ID, delta); err != nil {
			return err
		}
		return cmdPlayers(ctx, s, nil)
	}
}

func cmdMove(ctx context.Context, s *Session, args []string) error {
	if len(args) != 2 {
		return usage("move <p> <target>")
	}
	p, err := s.resolvePlayer(args[0])
	if err != nil {
		return err
	}
	target, err := s.resolvePlayer(args[1])
	if err != nil {
		return err
	}
	if err := s.svc.ReorderPlayer(ctx, p.ID, target.ID); err != nil {
		return err
	}
	return cmdPlayers(ctx, s, nil)
}

func cmdRoll(ctx context.Context, s *Session, args []string) error {
	if len(args) != 1 {
		return usage("roll <p>")
	}
	p, err := s.resolvePlayer(args[0])
	if err != nil {
		return err
	}
	o, err := s.svc.Roll(ctx, p.ID, &lineChooser{s: s})
	if err != nil {
		return err
	}
	switch {
	case o.Declined():
		return s.println("%s: home city pick cancelled (%s).", s.playerName(p), o.Text)
	case o.Kind == roll.HomeCity:
		return s.println("%s: %s", s.playerName(p), s.style.Paint(telnet.Bold, o.Text))
	}
	if err := s.println("%s: %s", s.playerName(p), s.style.Paint(telnet.Bold, o.Text)); err != nil {
		return err
	}
	updated, err := s.svc.Player(p.ID)
	if err != nil {
		return err
	}
	if pay := updated.Stops[0].PayoutFromPrev; pay != nil {
		return s.println("Payout %d.", *pay)
	}
	return nil
}

func cmdStop(ctx context.Context, s *Session, args []string) error {
	const u = "stop add <p> | stop set <p> <i> <city> | stop clear <p> <i> | stop del <p> <i> | stop move <p> <i> <j> | stop unreachable <p> <i> on|off"
	if len(args) < 2 {
		return usage(u)
	}
	p, err := s.resolvePlayer(args[1])
	if err != nil {
		return err
	}
	if args[0] == "add" {
		_, err = s.svc.AddStop(ctx, p.ID)
		if err != nil {
			return err
		}
		return cmdPlayer(ctx, s, []string{p.ID})
	}
	if len(args) < 3 {
		return usage(u)
	}
	i, err := strconv.Atoi(args[2])
	if err != nil {
		return usage(u)
	}
	switch args[0] {
	case "set":
		if len(args) < 4 {
			return usage(u)
		}
		name := strings.Join(args[3:], " ")
		id, ok := s.svc.Dataset().ResolveIDByName(name, "")
		if !ok {
			return fmt.Errorf("unknown city %q", name)
		}
		_, err = s.svc.SetStopCity(ctx, p.ID, i, player.CityRef(id))
	case "clear":
		_, err = s.svc.SetStopCity(ctx, p.ID, i, nil)
	case "del":
		_, err = s.svc.DeleteStop(ctx, p.ID, i)
	case "move":
		if len(args) != 4 {
			return usage(u)
		}
		to, convErr := strconv.Atoi(args[3])
		if convErr != nil {
			return usage(u)
		}
		_, err = s.svc.MoveStop(ctx, p.ID, i, to)
	case "unreachable":
		if len(args) != 4 || (args[3] != "on" && args[3] != "off") {
			return usage(u)
		}
		_, err = s.svc.SetStopUnreachable(ctx, p.ID, i, args[3] == "on")
	default:
		return usage(u)
	}
	if err != nil {
		return err
	}
	return cmdPlayer(ctx, s, []string{p.ID})
}

func includeAll(args []string) bool {
	return len(args) > 0 && strings.EqualFold(args[0], "all")
}

func cmdStats(_ context.Context, s *Session, args []string) error {
	r := s.svc.Stats(includeAll(args))
	if err := s.println("%-20s %6s %8s %7s", "Player", "Legs", "Payouts", "Cities"); err != nil {
		return err
	}
	for _, row := range append(r.Rows, r.Totals) {
		if err := s.println("%-20s %6d %8d %7d", row.Name, row.LegsCount, row.TotalPayout, row.UniqueCities); err != nil {
			return err
		}
	}
	return nil
}

func cmdCSV(_ context.Context, s *Session, args []string) error {
	return s.io.WriteLine(s.svc.StatsCSV(includeAll(args)))
}

func cmdMap(ctx context.Context, s *Session, args []string) error {
	if len(args) == 0 {
		ds := s.svc.Dataset()
		return s.println("Map %s (%s).", ds.ID(), ds.Name())
	}
	m, err := dataset.ParseMapID(args[0])
	if err != nil {
		return err
	}
	if err := s.svc.SwitchMap(ctx, m); err != nil {
		return err
	}
	return cmdMap(ctx, s, nil)
}

func cmdNew(ctx context.Context, s *Session, args []string) error {
	if len(args) != 1 {
		return usage("new <US|GB>")
	}
	m, err := dataset.ParseMapID(args[0])
	if err != nil {
		return err
	}
	if err := s.svc.NewGame(ctx, m); err != nil {
		return err
	}
	return s.println("New game on %s.", m)
}

func cmdRegions(_ context.Context, s *Session, _ []string) error {
	return s.io.WriteLine(strings.Join(s.svc.Dataset().Regions(), ", "))
}

func cmdCities(_ context.Context, s *Session, args []string) error {
	ds := s.svc.Dataset()
	var cities []dataset.City
	if len(args) > 0 {
		cities = ds.CitiesInRegion(strings.Join(args, " "))
	} else {
		cities = ds.CitiesByName()
	}
	for _, c := range cities {
		if err := s.println("  %3d  %-20s %s", c.ID, c.Name, c.Region); err != nil {
			return err
		}
	}
	return nil
}

func cmdExport(_ context.Context, s *Session, _ []string) error {
	data, err := s.svc.Export()
	if err != nil {
		return err
	}
	return s.io.WriteLine(string(data))
}

func cmdSaves(ctx context.Context, s *Session, args []string) error {
	if len(args) > 0 {
		if args[0] != "rm" || len(args) != 2 {
			return usage("saves [rm <key>]")
		}
		if err := s.svc.RemoveSave(ctx, args[1]); err != nil {
			return err
		}
		return s.println("Removed saved game %s.", args[1])
	}
	saves, err := s.svc.Saves(ctx)
	if err != nil {
		return err
	}
	active := s.svc.ActiveSave()
	for _, sv := range saves {
		mark := " "
		if sv.Key == active {
			mark = "*"
		}
		if err := s.println("%s %-24s %-3s rev %-5d %s", mark, sv.Key, sv.Map, sv.Revision,
			sv.UpdatedAt.Format("2006-01-02 15:04")); err != nil {
			return err
		}
	}
	return nil
}
