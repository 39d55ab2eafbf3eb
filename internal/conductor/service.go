// Package conductor owns the active game: it serializes mutations, runs rolls
// with operator prompts and persists every committed change.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/derived"
	"github.com/cory-johannsen/boxcars/internal/game/player"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
	"github.com/cory-johannsen/boxcars/internal/game/stats"
	"github.com/cory-johannsen/boxcars/internal/storage"
)

// ErrRollInProgress is returned when a second roll starts for a player whose
// previous roll has not finished.
var ErrRollInProgress = errors.New("a roll is already in progress for this player")

const persistTimeout = 5 * time.Second

// Options configures a Service.
type Options struct {
	Catalog    *dataset.Catalog
	Store      storage.Store
	RNG        roll.RNG
	Logger     *zap.Logger
	DefaultMap dataset.MapID
}

// Service is the single owner of the active GameState. All methods are safe
// for concurrent use; callers receive copies, never live state.
type Service struct {
	catalog *dataset.Catalog
	store   storage.Store
	engine  *roll.Engine
	logger  *zap.Logger

	mu         sync.Mutex
	state      *player.GameState
	ds         *dataset.Dataset
	generation uint64

	rollMu   sync.Mutex
	inFlight map[string]bool
	prompts  map[string]*promptEntry
	pending  map[*pendingRoll]struct{}
}

// New loads the saved game, or starts a fresh one on opts.DefaultMap, and
// returns a ready Service. An unreadable saved game is logged and replaced.
//
// Precondition: opts.Catalog, opts.Store and opts.RNG must be non-nil.
// Postcondition: The game has at least one player and derived fields are current.
func New(ctx context.Context, opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		catalog:  opts.Catalog,
		store:    opts.Store,
		engine:   roll.NewEngine(opts.RNG, nil, logger),
		logger:   logger,
		inFlight: make(map[string]bool),
		prompts:  make(map[string]*promptEntry),
		pending:  make(map[*pendingRoll]struct{}),
	}

	state := player.NewGameState(opts.DefaultMap)
	data, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		logger.Info("no saved game, starting fresh", zap.String("map", string(state.Settings.Map)))
	case err != nil:
		return nil, fmt.Errorf("loading saved game: %w", err)
	default:
		loaded, decodeErr := player.DecodeOrDefault(data)
		if decodeErr != nil {
			logger.Warn("discarding unreadable saved game", zap.Error(decodeErr))
			loaded = player.NewGameState(opts.DefaultMap)
		}
		state = loaded
	}
	state.EnsurePlayer()

	ds, err := s.catalog.Get(state.Settings.Map)
	if err != nil {
		return nil, fmt.Errorf("loading map %s: %w", state.Settings.Map, err)
	}
	derived.RecomputeAll(state, ds)
	s.state = state
	s.ds = ds

	logger.Info("game loaded",
		zap.String("map", string(ds.ID())),
		zap.Int("players", len(state.Players)),
		zap.Bool("payouts", ds.HasPayouts()),
	)
	return s, nil
}

// Close cancels every pending roll.
func (s *Service) Close() {
	s.rollMu.Lock()
	pending := make([]*pendingRoll, 0, len(s.pending))
	for pr := range s.pending {
		pending = append(pending, pr)
	}
	s.rollMu.Unlock()
	for _, pr := range pending {
		pr.cancel()
	}
}

// State returns a copy of the game.
func (s *Service) State() *player.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dataset returns the reference data of the active map.
func (s *Service) Dataset() *dataset.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ds
}

// Player returns a copy of one player.
func (s *Service) Player(id string) (*player.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.state.Player(id)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Summaries describes every player card in order.
func (s *Service) Summaries() []derived.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]derived.Summary, 0, len(s.state.Players))
	for _, p := range s.state.Players {
		out = append(out, derived.Summarize(p, s.ds))
	}
	return out
}

// Stats aggregates legs for every player.
func (s *Service) Stats(includeUnreachable bool) stats.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stats.Compute(s.state, includeUnreachable)
}

// StatsCSV renders Stats as CSV.
func (s *Service) StatsCSV(includeUnreachable bool) string {
	return stats.BuildCSV(s.Stats(includeUnreachable))
}

// HomeCandidates lists the cities of region that playerID may take as a home
// city: every city of the region except other players' home cities.
func (s *Service) HomeCandidates(playerID, region string) ([]dataset.City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.state.Player(playerID); err != nil {
		return nil, err
	}
	return roll.Candidates(s.ds, region, s.state.ClaimedHomeCities(playerID)), nil
}

// Export renders the game in its persisted JSON shape.
func (s *Service) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return player.Encode(s.state)
}

// Import replaces the game with an exported document.
//
// Postcondition: Returns player.ErrInvalidImport, leaving the game unchanged,
// when the document has no players array.
func (s *Service) Import(ctx context.Context, data []byte) error {
	g, err := player.Decode(data)
	if err != nil {
		return err
	}
	ds, err := s.catalog.Get(g.Settings.Map)
	if err != nil {
		return fmt.Errorf("loading map %s: %w", g.Settings.Map, err)
	}
	derived.RecomputeAll(g, ds)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = g
	s.ds = ds
	s.generation++
	s.logger.Info("game imported", zap.Int("players", len(g.Players)), zap.String("map", string(ds.ID())))
	s.persistLocked(ctx)
	return nil
}

// NewGame clears every player, selects map m and seeds one default player.
func (s *Service) NewGame(ctx context.Context, m dataset.MapID) error {
	ds, err := s.catalog.Get(m)
	if err != nil {
		return fmt.Errorf("loading map %s: %w", m, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Reset(m)
	s.ds = ds
	s.generation++
	derived.RecomputeAll(s.state, ds)
	s.logger.Info("new game", zap.String("map", string(m)))
	s.persistLocked(ctx)
	return nil
}

// SwitchMap selects map m, keeping players, and recomputes every player's
// derived fields against the new reference data.
func (s *Service) SwitchMap(ctx context.Context, m dataset.MapID) error {
	ds, err := s.catalog.Get(m)
	if err != nil {
		return fmt.Errorf("loading map %s: %w", m, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Settings.Map = ds.ID()
	s.ds = ds
	s.generation++
	derived.RecomputeAll(s.state, ds)
	s.logger.Info("map switched", zap.String("map", string(m)))
	s.persistLocked(ctx)
	return nil
}

// persistLocked saves the game. Failures are logged, never returned: a save
// problem must not undo a committed mutation.
//
// Precondition: s.mu is held.
func (s *Service) persistLocked(ctx context.Context) {
	data, err := player.Encode(s.state)
	if err != nil {
		s.logger.Error("encoding game state", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := s.store.Save(ctx, data); err != nil {
		s.logger.Error("saving game state", zap.Error(err))
	}
}
