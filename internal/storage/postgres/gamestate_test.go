package postgres_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/boxcars/internal/storage"
	"github.com/cory-johannsen/boxcars/internal/storage/postgres"
	"github.com/cory-johannsen/boxcars/internal/testutil"
)

var _ storage.Catalog = (*postgres.GameStateRepository)(nil)

func uniqueKey(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestGameStateRepository_LoadMissing(t *testing.T) {
	repo := postgres.NewGameStateRepository(testutil.NewPool(t), uniqueKey("missing"))
	_, err := repo.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGameStateRepository_SaveLoadAndList(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewGameStateRepository(testutil.NewPool(t), uniqueKey("game"))

	require.NoError(t, repo.Save(ctx, []byte(`{"players":[],"settings":{"map":"GB"}}`)))
	require.NoError(t, repo.Save(ctx, []byte(`{"players":[{"name":"Ada"}],"settings":{"map":"GB"}}`)))

	data, err := repo.Load(ctx)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc["players"], 1)

	games, err := repo.List(ctx)
	require.NoError(t, err)
	var found *storage.SaveInfo
	for i := range games {
		if games[i].Key == repo.ActiveKey() {
			found = &games[i]
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "GB", found.Map)
	assert.Equal(t, int64(2), found.Revision)
}

func TestGameStateRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewGameStateRepository(testutil.NewPool(t), uniqueKey("del"))
	require.NoError(t, repo.Save(ctx, []byte(`{"players":[]}`)))
	require.NoError(t, repo.Delete(ctx))
	assert.ErrorIs(t, repo.Delete(ctx), storage.ErrNotFound)
}

func TestGameStateRepository_RemoveOtherKey(t *testing.T) {
	ctx := context.Background()
	active := postgres.NewGameStateRepository(testutil.NewPool(t), uniqueKey("active"))
	other := active.WithKey(uniqueKey("other"))
	require.NoError(t, active.Save(ctx, []byte(`{"players":[]}`)))
	require.NoError(t, other.Save(ctx, []byte(`{"players":[]}`)))

	require.NoError(t, active.Remove(ctx, other.ActiveKey()))
	_, err := other.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = active.Load(ctx)
	assert.NoError(t, err)
	assert.ErrorIs(t, active.Remove(ctx, other.ActiveKey()), storage.ErrNotFound)
}

func TestGameStateRepository_KeysAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := postgres.NewGameStateRepository(testutil.NewPool(t), uniqueKey("a"))
	b := a.WithKey(uniqueKey("b"))
	require.NoError(t, a.Save(ctx, []byte(`{"players":[]}`)))
	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

// Property: any saved player name is loaded back unchanged.
func TestPropertyGameStateRoundTrip(t *testing.T) {
	pool := testutil.NewPool(t)
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.StringMatching(`[a-zA-Z0-9 ,"']{1,32}`).Draw(rt, "name")
		repo := postgres.NewGameStateRepository(pool, uniqueKey("prop"))
		doc, _ := json.Marshal(map[string]any{"players": []any{map[string]any{"name": name}}})
		if err := repo.Save(context.Background(), doc); err != nil {
			rt.Fatal(err)
		}
		data, err := repo.Load(context.Background())
		if err != nil {
			rt.Fatal(err)
		}
		var back struct {
			Players []struct{ Name string } `json:"players"`
		}
		if err := json.Unmarshal(data, &back); err != nil {
			rt.Fatal(err)
		}
		if len(back.Players) != 1 || back.Players[0].Name != name {
			rt.Fatalf("name %q came back as %+v", name, back.Players)
		}
	})
}
