package conductor_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/boxcars/internal/conductor"
	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/dice"
	"github.com/cory-johannsen/boxcars/internal/game/player"
	"github.com/cory-johannsen/boxcars/internal/game/roll"
	"github.com/cory-johannsen/boxcars/internal/storage"
)

// scriptedRNG replays a fixed sequence of draws, wrapping at the end.
type scriptedRNG struct {
	mu    sync.Mutex
	draws []dice.Draw
	i     int
}

func script(draws ...dice.Draw) *scriptedRNG { return &scriptedRNG{draws: draws} }

func (r *scriptedRNG) Parity() dice.Parity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.draws[r.i%len(r.draws)].Parity
}

func (r *scriptedRNG) TwoDiceSum() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.draws[r.i%len(r.draws)].Sum
	r.i++
	return s
}

func odd(s int) dice.Draw  { return dice.Draw{Parity: dice.Odd, Sum: s} }
func even(s int) dice.Draw { return dice.Draw{Parity: dice.Even, Sum: s} }

const (
	bostonID     = 6
	portlandORID = 50
	albanyID     = 1
)

func newService(t *testing.T, store storage.Store, rng roll.RNG) *conductor.Service {
	t.Helper()
	if store == nil {
		store = storage.NewMemory()
	}
	svc, err := conductor.New(context.Background(), conductor.Options{
		Catalog:    dataset.NewCatalog("../../content/maps", ""),
		Store:      store,
		RNG:        rng,
		Logger:     zaptest.NewLogger(t),
		DefaultMap: dataset.US,
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func firstPlayer(t *testing.T, svc *conductor.Service) string {
	t.Helper()
	g := svc.State()
	require.NotEmpty(t, g.Players)
	return g.Players[0].ID
}

// withHome gives the first player a home city of Boston.
func withHome(t *testing.T, svc *conductor.Service) string {
	t.Helper()
	id := firstPlayer(t, svc)
	_, err := svc.SetStopCity(context.Background(), id, 0, player.CityRef(bostonID))
	require.NoError(t, err)
	return id
}

func TestNew_FreshGameHasOnePlayer(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	g := svc.State()
	assert.Equal(t, dataset.US, g.Settings.Map)
	require.Len(t, g.Players, 1)
	assert.Equal(t, player.DefaultName, g.Players[0].Name)
	assert.Equal(t, dataset.US, svc.Dataset().ID())
}

func TestNew_LoadsSavedGame(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Save(context.Background(),
		[]byte(`{"players":[{"id":"p1","name":"Ada","stops":[{"cityId":6}]}],"settings":{"map":"GB"}}`)))

	svc := newService(t, store, script(odd(8)))
	g := svc.State()
	assert.Equal(t, dataset.GB, g.Settings.Map)
	require.Len(t, g.Players, 1)
	assert.Equal(t, "Ada", g.Players[0].Name)
	require.NotNil(t, g.Players[0].HomeCityID)
	assert.Equal(t, 6, *g.Players[0].HomeCityID)
}

func TestNew_ReplacesUnreadableSave(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Save(context.Background(), []byte(`{not json`)))

	svc := newService(t, store, script(odd(8)))
	g := svc.State()
	assert.Equal(t, dataset.US, g.Settings.Map)
	assert.Len(t, g.Players, 1)
}

func TestMutations_Persist(t *testing.T) {
	store := storage.NewMemory()
	svc := newService(t, store, script(odd(8)))
	ctx := context.Background()

	p, err := svc.AddPlayer(ctx, "Grace")
	require.NoError(t, err)

	data, err := store.Load(ctx)
	require.NoError(t, err)
	saved, err := player.Decode(data)
	require.NoError(t, err)
	require.Len(t, saved.Players, 2)
	assert.Equal(t, p.ID, saved.Players[1].ID)
	assert.Equal(t, "Grace", saved.Players[1].Name)
}

func TestUpdatePlayer(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()
	id := firstPlayer(t, svc)

	name := "Ada"
	red := player.Red
	collapsed := true
	p, err := svc.UpdatePlayer(ctx, id, conductor.PlayerUpdate{Name: &name, Color: &red, Collapsed: &collapsed})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, player.Red, p.Color)
	assert.True(t, p.Collapsed)

	bad := player.Color("mauve")
	_, err = svc.UpdatePlayer(ctx, id, conductor.PlayerUpdate{Name: &name, Color: &bad})
	assert.ErrorIs(t, err, conductor.ErrInvalidColor)

	badTrain := player.Train("Hyperloop")
	_, err = svc.UpdatePlayer(ctx, id, conductor.PlayerUpdate{Train: &badTrain})
	assert.ErrorIs(t, err, conductor.ErrInvalidTrain)

	_, err = svc.UpdatePlayer(ctx, "nobody", conductor.PlayerUpdate{Name: &name})
	assert.ErrorIs(t, err, player.ErrPlayerNotFound)
}

func TestStops_RecomputeDerived(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()
	id := withHome(t, svc)

	_, err := svc.AddStop(ctx, id)
	require.NoError(t, err)
	p, err := svc.SetStopCity(ctx, id, 0, player.CityRef(albanyID))
	require.NoError(t, err)

	require.Len(t, p.Stops, 2)
	assert.Equal(t, []int{albanyID, bostonID}, p.VisitedCityIDs)
	require.NotNil(t, p.HomeCityID)
	assert.Equal(t, bostonID, *p.HomeCityID)

	p, err = svc.MoveStop(ctx, id, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{bostonID, albanyID}, p.VisitedCityIDs)
	require.NotNil(t, p.HomeCityID)
	assert.Equal(t, albanyID, *p.HomeCityID)
	_, err = svc.MoveStop(ctx, id, 1, 0)
	require.NoError(t, err)

	p, err = svc.DeleteStop(ctx, id, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{bostonID}, p.VisitedCityIDs)

	_, err = svc.DeleteStop(ctx, id, 7)
	assert.ErrorIs(t, err, player.ErrStopIndex)
}

func TestPlayers_Order(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()
	a := firstPlayer(t, svc)
	b, err := svc.AddPlayer(ctx, "B")
	require.NoError(t, err)

	require.NoError(t, svc.MovePlayer(ctx, b.ID, -1))
	assert.Equal(t, b.ID, svc.State().Players[0].ID)

	require.NoError(t, svc.ReorderPlayer(ctx, b.ID, a))
	assert.Equal(t, a, svc.State().Players[0].ID)

	require.NoError(t, svc.RemovePlayer(ctx, a))
	assert.Len(t, svc.State().Players, 1)
}

func TestRoll_HomeCityWithPresetChooser(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	id := firstPlayer(t, svc)

	o, err := svc.Roll(context.Background(), id, roll.PresetChooser{HomeCityID: albanyID})
	require.NoError(t, err)
	assert.Equal(t, roll.HomeCity, o.Kind)
	assert.Equal(t, roll.Committed, o.Phase())

	p, err := svc.Player(id)
	require.NoError(t, err)
	require.NotNil(t, p.HomeCityID)
	assert.Equal(t, albanyID, *p.HomeCityID)
}

func TestStartRoll_RegionPromptAndAnswer(t *testing.T) {
	svc := newService(t, nil, script(odd(8), even(6)))
	id := withHome(t, svc)

	st, err := svc.StartRoll(id)
	require.NoError(t, err)
	require.NotNil(t, st.Prompt)
	assert.Equal(t, conductor.RegionPrompt, st.Prompt.Kind)
	assert.Equal(t, "Northeast", st.Prompt.DefaultRegion)
	assert.Len(t, svc.Prompts(), 1)

	_, err = svc.Answer(st.Prompt.ID, conductor.Answer{Region: "Atlantis"})
	assert.ErrorIs(t, err, conductor.ErrInvalidAnswer)

	st, err = svc.Answer(st.Prompt.ID, conductor.Answer{Region: "Northwest"})
	require.NoError(t, err)
	require.NotNil(t, st.Outcome)
	assert.Equal(t, "Portland, OR", st.Outcome.CityName)
	assert.Equal(t, portlandORID, st.Outcome.CityID)
	assert.Equal(t, "Odd+8 → Northwest; Even+6 → Portland, OR.", st.Outcome.Text)
	assert.Empty(t, svc.Prompts())

	p, err := svc.Player(id)
	require.NoError(t, err)
	require.Len(t, p.Stops, 2)
	assert.Equal(t, portlandORID, p.Stops[0].City())
}

func TestStartRoll_HomeCityDecline(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	id := firstPlayer(t, svc)

	st, err := svc.StartRoll(id)
	require.NoError(t, err)
	require.NotNil(t, st.Prompt)
	assert.Equal(t, conductor.HomeCityPrompt, st.Prompt.Kind)
	assert.Equal(t, "Northeast", st.Prompt.Region)
	assert.NotEmpty(t, st.Prompt.Candidates)

	_, err = svc.Answer(st.Prompt.ID, conductor.Answer{CityID: portlandORID})
	assert.ErrorIs(t, err, conductor.ErrInvalidAnswer)

	st, err = svc.Answer(st.Prompt.ID, conductor.Answer{Decline: true})
	require.NoError(t, err)
	require.NotNil(t, st.Outcome)
	assert.True(t, st.Outcome.Declined())

	p, err := svc.Player(id)
	require.NoError(t, err)
	assert.False(t, p.HasHomeCity())
}

func TestStartRoll_InProgressAndCancel(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	id := firstPlayer(t, svc)
	before := svc.State()

	st, err := svc.StartRoll(id)
	require.NoError(t, err)
	require.NotNil(t, st.Prompt)

	_, err = svc.StartRoll(id)
	assert.ErrorIs(t, err, conductor.ErrRollInProgress)

	require.NoError(t, svc.CancelRoll(st.Prompt.ID))
	assert.ErrorIs(t, svc.CancelRoll(st.Prompt.ID), conductor.ErrPromptNotFound)
	assert.Equal(t, before.Players[0].Stops, svc.State().Players[0].Stops)

	st, err = svc.StartRoll(id)
	require.NoError(t, err)
	assert.NotNil(t, st.Prompt)
}

func TestStartRoll_StaleWhenPlayerEdited(t *testing.T) {
	svc := newService(t, nil, script(odd(8), even(6)))
	id := withHome(t, svc)

	st, err := svc.StartRoll(id)
	require.NoError(t, err)
	require.NotNil(t, st.Prompt)

	_, err = svc.AddStop(context.Background(), id)
	require.NoError(t, err)

	_, err = svc.Answer(st.Prompt.ID, conductor.Answer{})
	assert.ErrorIs(t, err, roll.ErrStaleRoll)
	assert.Len(t, svc.State().Players[0].Stops, 2)
}

func TestStartRoll_StaleAfterNewGame(t *testing.T) {
	svc := newService(t, nil, script(odd(8), even(6)))
	id := withHome(t, svc)

	st, err := svc.StartRoll(id)
	require.NoError(t, err)
	require.NotNil(t, st.Prompt)

	require.NoError(t, svc.NewGame(context.Background(), dataset.US))
	_, err = svc.Answer(st.Prompt.ID, conductor.Answer{})
	assert.Error(t, err)
}

func TestAnswer_UnknownPrompt(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	_, err := svc.Answer("missing", conductor.Answer{})
	assert.ErrorIs(t, err, conductor.ErrPromptNotFound)
	_, err = svc.Prompt("missing")
	assert.ErrorIs(t, err, conductor.ErrPromptNotFound)
}

func TestImportExport(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()

	err := svc.Import(ctx, []byte(`{"settings":{"map":"GB"}}`))
	assert.ErrorIs(t, err, player.ErrInvalidImport)
	assert.Equal(t, dataset.US, svc.State().Settings.Map)

	require.NoError(t, svc.Import(ctx, []byte(`{"players":[{"name":"Ada"},{"name":"Grace","color":"blue"}],"settings":{"map":"GB"}}`)))
	g := svc.State()
	assert.Equal(t, dataset.GB, g.Settings.Map)
	assert.Equal(t, dataset.GB, svc.Dataset().ID())
	require.Len(t, g.Players, 2)
	assert.Equal(t, player.Blue, g.Players[1].Color)

	data, err := svc.Export()
	require.NoError(t, err)
	round, err := player.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, g.Players[0].ID, round.Players[0].ID)
}

func TestSwitchMapAndNewGame(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()
	_, err := svc.AddPlayer(ctx, "B")
	require.NoError(t, err)

	require.NoError(t, svc.SwitchMap(ctx, dataset.GB))
	g := svc.State()
	assert.Equal(t, dataset.GB, g.Settings.Map)
	assert.Len(t, g.Players, 2)

	require.NoError(t, svc.NewGame(ctx, dataset.US))
	g = svc.State()
	assert.Equal(t, dataset.US, g.Settings.Map)
	assert.Len(t, g.Players, 1)
}

func TestHomeCandidates_ExcludeClaimed(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()
	a := firstPlayer(t, svc)
	_, err := svc.SetStopCity(ctx, a, 0, player.CityRef(albanyID))
	require.NoError(t, err)
	b, err := svc.AddPlayer(ctx, "B")
	require.NoError(t, err)

	cands, err := svc.HomeCandidates(b.ID, "Northeast")
	require.NoError(t, err)
	for _, c := range cands {
		assert.NotEqual(t, albanyID, c.ID)
	}
	own, err := svc.HomeCandidates(a, "Northeast")
	require.NoError(t, err)
	assert.Len(t, own, len(cands)+1)
}

func TestStatsCSV(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()
	id := withHome(t, svc)
	_, err := svc.AddStop(ctx, id)
	require.NoError(t, err)
	_, err = svc.SetStopCity(ctx, id, 0, player.CityRef(albanyID))
	require.NoError(t, err)

	r := svc.Stats(false)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, 1, r.Rows[0].LegsCount)
	assert.Equal(t, 2, r.Rows[0].UniqueCities)

	assert.Contains(t, svc.StatsCSV(false), "Player,1,0,2")

	summaries := svc.Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "Boston", summaries[0].HomeCity)
}

func TestSetStopCity_RejectsCityOffMap(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	ctx := context.Background()
	id := withHome(t, svc)

	_, err := svc.SetStopCity(ctx, id, 0, player.CityRef(9999))
	require.ErrorIs(t, err, conductor.ErrUnknownCity)
	p, err := svc.Player(id)
	require.NoError(t, err)
	require.NotNil(t, p.Stops[0].CityID)
	assert.Equal(t, bostonID, *p.Stops[0].CityID)

	zero := 0
	p, err = svc.SetStopCity(ctx, id, 0, &zero)
	require.NoError(t, err)
	assert.Nil(t, p.Stops[0].CityID)
}

func TestSaves_ListAndRemove(t *testing.T) {
	ctx := context.Background()
	store := storage.NewKeyed("table-1")
	require.NoError(t, store.SaveAs(ctx, "table-2", []byte(`{"players":[]}`)))
	svc := newService(t, store, script(odd(8)))
	withHome(t, svc)

	assert.Equal(t, "table-1", svc.ActiveSave())
	saves, err := svc.Saves(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(saves))
	for _, sv := range saves {
		keys = append(keys, sv.Key)
	}
	assert.ElementsMatch(t, []string{"table-1", "table-2"}, keys)

	assert.ErrorIs(t, svc.RemoveSave(ctx, "table-1"), conductor.ErrActiveSave)
	require.NoError(t, svc.RemoveSave(ctx, "table-2"))
	assert.ErrorIs(t, svc.RemoveSave(ctx, "table-2"), storage.ErrNotFound)
}

func TestSaves_SingleGameStore(t *testing.T) {
	svc := newService(t, nil, script(odd(8)))
	assert.Empty(t, svc.ActiveSave())
	_, err := svc.Saves(context.Background())
	assert.ErrorIs(t, err, conductor.ErrSavesUnsupported)
	assert.ErrorIs(t, svc.RemoveSave(context.Background(), "x"), conductor.ErrSavesUnsupported)
}
