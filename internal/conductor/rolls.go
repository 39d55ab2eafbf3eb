package conductor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
)

var (
	// ErrPromptNotFound is returned when answering or cancelling a prompt that
	// is not pending.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrInvalidAnswer rejects an answer that does not fit its prompt. The
	// prompt stays pending.
	ErrInvalidAnswer = errors.New("invalid answer")
)

// PromptKind names the decision a prompt asks for.
type PromptKind string

const (
	// RegionPrompt asks whether to keep a rolled region that matches the
	// player's current region or pick another.
	RegionPrompt PromptKind = "region"
	// HomeCityPrompt asks for a home city among unclaimed candidates.
	HomeCityPrompt PromptKind = "home_city"
)

// Prompt is an operator decision a roll is waiting on.
type Prompt struct {
	ID            string         `json:"id"`
	PlayerID      string         `json:"playerId"`
	Kind          PromptKind     `json:"kind"`
	DefaultRegion string         `json:"defaultRegion,omitempty"`
	Regions       []string       `json:"regions,omitempty"`
	Region        string         `json:"region,omitempty"`
	Candidates    []dataset.City `json:"candidates,omitempty"`
}

// Answer resolves a Prompt. For region prompts an empty Region keeps the
// default. For home-city prompts either Decline is set or CityID names a
// candidate.
type Answer struct {
	Region  string `json:"region"`
	CityID  int    `json:"cityId"`
	Decline bool   `json:"decline"`
}

// RollStatus is the state of an interactive roll: exactly one of Prompt and
// Outcome is set.
type RollStatus struct {
	Prompt  *Prompt       `json:"prompt,omitempty"`
	Outcome *roll.Outcome `json:"outcome,omitempty"`
}

type rollEvent struct {
	prompt  *Prompt
	outcome *roll.Outcome
	err     error
}

// pendingRoll is one interactive roll running on its own goroutine. The
// goroutine emits one event at a time and then blocks on answers, so events
// never holds more than one value.
type pendingRoll struct {
	playerID string
	events   chan rollEvent
	answers  chan Answer
	ctx      context.Context
	cancel   context.CancelFunc
}

// Roll plans and commits a roll for playerID, asking chooser for operator
// decisions. The planning step runs on a snapshot without holding the game
// lock; the commit fails with roll.ErrStaleRoll if the player or the game
// changed meanwhile.
//
// Postcondition: On success the outcome is committed (or declined with no
// mutation) and the game persisted.
func (s *Service) Roll(ctx context.Context, playerID string, chooser roll.Chooser) (*roll.Outcome, error) {
	if err := s.beginRoll(playerID); err != nil {
		return nil, err
	}
	defer s.endRoll(playerID)

	s.mu.Lock()
	p, err := s.state.Player(playerID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	snapshot := p.Clone()
	claimed := s.state.ClaimedHomeCities(playerID)
	ds := s.ds
	generation := s.generation
	s.mu.Unlock()

	engine := s.engine.WithChooser(chooser)
	outcome, err := engine.Plan(ctx, ds, snapshot, claimed)
	if err != nil {
		return nil, err
	}
	if outcome.Declined() {
		s.logger.Info("home city declined", zap.String("player", playerID))
		return outcome, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != generation {
		return nil, roll.ErrStaleRoll
	}
	live, err := s.state.Player(playerID)
	if err != nil {
		return nil, err
	}
	if err := engine.Apply(ds, live, outcome); err != nil {
		return nil, err
	}
	s.persistLocked(ctx)
	return outcome, nil
}

func (s *Service) beginRoll(playerID string) error {
	s.rollMu.Lock()
	defer s.rollMu.Unlock()
	if s.inFlight[playerID] {
		return ErrRollInProgress
	}
	s.inFlight[playerID] = true
	return nil
}

func (s *Service) endRoll(playerID string) {
	s.rollMu.Lock()
	defer s.rollMu.Unlock()
	delete(s.inFlight, playerID)
}

// StartRoll begins an interactive roll for playerID. It returns as soon as the
// roll either needs an operator decision (RollStatus.Prompt) or finishes
// (RollStatus.Outcome). Pending prompts wait until answered or cancelled.
func (s *Service) StartRoll(playerID string) (RollStatus, error) {
	ctx, cancel := context.WithCancel(context.Background())
	pr := &pendingRoll{
		playerID: playerID,
		events:   make(chan rollEvent, 1),
		answers:  make(chan Answer),
		ctx:      ctx,
		cancel:   cancel,
	}
	s.rollMu.Lock()
	s.pending[pr] = struct{}{}
	s.rollMu.Unlock()

	go func() {
		o, err := s.Roll(ctx, playerID, &promptChooser{svc: s, pr: pr})
		pr.events <- rollEvent{outcome: o, err: err}
	}()
	return s.await(pr)
}

// Answer resolves a pending prompt and waits for the roll's next prompt or
// its outcome.
func (s *Service) Answer(promptID string, a Answer) (RollStatus, error) {
	s.rollMu.Lock()
	entry, ok := s.prompts[promptID]
	if !ok {
		s.rollMu.Unlock()
		return RollStatus{}, ErrPromptNotFound
	}
	if err := entry.prompt.check(a); err != nil {
		s.rollMu.Unlock()
		return RollStatus{}, err
	}
	delete(s.prompts, promptID)
	s.rollMu.Unlock()

	select {
	case entry.pr.answers <- a:
	case <-entry.pr.ctx.Done():
	}
	return s.await(entry.pr)
}

// CancelRoll abandons the roll waiting on promptID. The game is unchanged.
func (s *Service) CancelRoll(promptID string) error {
	s.rollMu.Lock()
	entry, ok := s.prompts[promptID]
	if ok {
		delete(s.prompts, promptID)
	}
	s.rollMu.Unlock()
	if !ok {
		return ErrPromptNotFound
	}
	entry.pr.cancel()
	_, err := s.await(entry.pr)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	s.logger.Info("roll cancelled", zap.String("player", entry.pr.playerID))
	return nil
}

// Prompts lists every pending prompt.
func (s *Service) Prompts() []Prompt {
	s.rollMu.Lock()
	defer s.rollMu.Unlock()
	out := make([]Prompt, 0, len(s.prompts))
	for _, e := range s.prompts {
		out = append(out, *e.prompt)
	}
	return out
}

// Prompt returns one pending prompt.
func (s *Service) Prompt(id string) (Prompt, error) {
	s.rollMu.Lock()
	defer s.rollMu.Unlock()
	e, ok := s.prompts[id]
	if !ok {
		return Prompt{}, ErrPromptNotFound
	}
	return *e.prompt, nil
}

// await blocks until pr emits its next event. The roll goroutine only blocks
// on operator answers, so this returns promptly.
func (s *Service) await(pr *pendingRoll) (RollStatus, error) {
	ev := <-pr.events
	if ev.prompt != nil {
		return RollStatus{Prompt: ev.prompt}, nil
	}
	pr.cancel()
	s.rollMu.Lock()
	delete(s.pending, pr)
	s.rollMu.Unlock()
	if ev.err != nil {
		return RollStatus{}, ev.err
	}
	return RollStatus{Outcome: ev.outcome}, nil
}

type promptEntry struct {
	prompt *Prompt
	pr     *pendingRoll
}

func (p *Prompt) check(a Answer) error {
	switch p.Kind {
	case RegionPrompt:
		if a.Region == "" {
			return nil
		}
		for _, r := range p.Regions {
			if r == a.Region {
				return nil
			}
		}
		return fmt.Errorf("%w: unknown region %q", ErrInvalidAnswer, a.Region)
	case HomeCityPrompt:
		if a.Decline {
			return nil
		}
		for _, c := range p.Candidates {
			if c.ID == a.CityID {
				return nil
			}
		}
		return fmt.Errorf("%w: city %d is not a candidate", ErrInvalidAnswer, a.CityID)
	}
	return nil
}

// promptChooser turns engine decisions into prompts for a pendingRoll.
type promptChooser struct {
	svc *Service
	pr  *pendingRoll
}

func (c *promptChooser) ChooseRegion(ctx context.Context, defaultRegion string, regions []string) (string, error) {
	a, err := c.ask(ctx, &Prompt{
		Kind:          RegionPrompt,
		DefaultRegion: defaultRegion,
		Regions:       regions,
	})
	if err != nil {
		return "", err
	}
	if a.Region == "" {
		return defaultRegion, nil
	}
	return a.Region, nil
}

func (c *promptChooser) ChooseHomeCity(ctx context.Context, region string, candidates []dataset.City) (int, error) {
	if len(candidates) == 0 {
		return 0, roll.ErrDeclined
	}
	a, err := c.ask(ctx, &Prompt{
		Kind:       HomeCityPrompt,
		Region:     region,
		Candidates: candidates,
	})
	if err != nil {
		return 0, err
	}
	if a.Decline {
		return 0, roll.ErrDeclined
	}
	return a.CityID, nil
}

func (c *promptChooser) ask(ctx context.Context, p *Prompt) (Answer, error) {
	p.ID = uuid.NewString()
	p.PlayerID = c.pr.playerID

	s := c.svc
	s.rollMu.Lock()
	s.prompts[p.ID] = &promptEntry{prompt: p, pr: c.pr}
	s.rollMu.Unlock()

	c.pr.events <- rollEvent{prompt: p}
	select {
	case a := <-c.pr.answers:
		return a, nil
	case <-ctx.Done():
		s.rollMu.Lock()
		delete(s.prompts, p.ID)
		s.rollMu.Unlock()
		return Answer{}, ctx.Err()
	}
}
