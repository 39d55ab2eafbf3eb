package derived_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/boxcars/internal/game/dataset"
	"github.com/cory-johannsen/boxcars/internal/game/derived"
	"github.com/cory-johannsen/boxcars/internal/game/payout"
	"github.com/cory-johannsen/boxcars/internal/game/player"
)

// table pays 10*a+b for any ordered pair of ids up to 9.
type table struct{}

func (table) Payout(a, b int) (int, bool) {
	if a < 1 || b < 1 || a > 9 || b > 9 {
		return 0, false
	}
	return 10*a + b, true
}

func withStops(ids ...int) *player.Player {
	p := player.New("Ada")
	p.Stops = nil
	for _, id := range ids {
		p.Stops = append(p.Stops, player.Stop{CityID: player.CityRef(id)})
	}
	return p
}

func TestRecompute_HomeAndVisited(t *testing.T) {
	p := withStops(3, 0, 1, 2)
	derived.Recompute(p, table{})

	require.NotNil(t, p.HomeCityID)
	assert.Equal(t, 2, *p.HomeCityID)
	assert.Equal(t, []int{3, 1, 2}, p.VisitedCityIDs)
}

func TestRecompute_VisitedKeepsDuplicates(t *testing.T) {
	p := withStops(1, 2, 1)
	derived.Recompute(p, table{})
	assert.Equal(t, []int{1, 2, 1}, p.VisitedCityIDs)
}

func TestRecompute_PayoutFromOlderStop(t *testing.T) {
	p := withStops(3, 2, 0, 1)
	derived.Recompute(p, table{})

	require.NotNil(t, p.Stops[0].PayoutFromPrev)
	assert.Equal(t, 23, *p.Stops[0].PayoutFromPrev)
	assert.Nil(t, p.Stops[1].PayoutFromPrev, "predecessor has no city")
	assert.Nil(t, p.Stops[2].PayoutFromPrev, "stop has no city")
	assert.Nil(t, p.Stops[3].PayoutFromPrev, "oldest stop has no predecessor")
}

func TestRecompute_UnknownPairsAndMissingTable(t *testing.T) {
	p := withStops(12, 1)
	derived.Recompute(p, table{})
	assert.Nil(t, p.Stops[0].PayoutFromPrev)

	p = withStops(2, 1)
	derived.Recompute(p, nil)
	assert.Nil(t, p.Stops[0].PayoutFromPrev)

	p = withStops(2, 1)
	derived.Recompute(p, payout.NewMatrix(nil))
	assert.Nil(t, p.Stops[0].PayoutFromPrev)
}

func TestRecompute_NoCities(t *testing.T) {
	p := player.New("Ada")
	derived.Recompute(p, table{})
	assert.Nil(t, p.HomeCityID)
	assert.Empty(t, p.VisitedCityIDs)
}

func TestRecompute_Property_Idempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ids := rapid.SliceOfN(rapid.IntRange(0, 12), 1, 10).Draw(rt, "ids")
		p := withStops(ids...)
		derived.Recompute(p, table{})
		first := p.Clone()
		derived.Recompute(p, table{})
		if !assert.ObjectsAreEqual(first.Stops, p.Stops) ||
			!assert.ObjectsAreEqual(first.VisitedCityIDs, p.VisitedCityIDs) ||
			!assert.ObjectsAreEqual(first.HomeCityID, p.HomeCityID) {
			rt.Fatalf("second recompute changed %v", ids)
		}
	})
}

func loadUS(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.Load("../../../content/maps", "", dataset.US)
	require.NoError(t, err)
	return d
}

func TestCurrentRegion(t *testing.T) {
	us := loadUS(t)
	boston, ok := us.ResolveIDByName("Boston", "")
	require.True(t, ok)
	seattle, ok := us.ResolveIDByName("Seattle", "")
	require.True(t, ok)

	p := withStops(0, boston, seattle)
	region, ok := derived.CurrentRegion(p, us)
	require.True(t, ok)
	assert.Equal(t, "Northeast", region)

	_, ok = derived.CurrentRegion(player.New("x"), us)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	us := loadUS(t)
	boston, _ := us.ResolveIDByName("Boston", "")
	seattle, _ := us.ResolveIDByName("Seattle", "")
	p := withStops(boston, seattle)
	p.Stops[0].LastRollText = "Odd+8 → Northeast; Odd+6 → Boston."
	derived.Recompute(p, table{})

	s := derived.Summarize(p, us)
	assert.Equal(t, "Seattle", s.HomeCity)
	assert.Equal(t, "Boston", s.Destination)
	assert.Equal(t, "Northeast", s.Region)
	assert.Equal(t, p.Stops[0].LastRollText, s.LastRoll)
}
