package payout_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/boxcars/internal/game/payout"
)

func miniSource(t *testing.T) payout.Source {
	t.Helper()
	src, err := payout.LoadSource("testdata/mini.src.json")
	require.NoError(t, err)
	return src
}

func TestCompile_MirrorsAndIndexes(t *testing.T) {
	c, err := payout.Compile(miniSource(t), nil)
	require.NoError(t, err)
	m := c.Table()

	// Hereford is id 3, Bangor id 1.
	v, ok := m.Payout(3, 1)
	require.True(t, ok)
	assert.Equal(t, 8, v)
	v, ok = m.Payout(1, 3)
	require.True(t, ok)
	assert.Equal(t, 8, v)

	v, ok = m.Payout(4, 4)
	require.True(t, ok)
	assert.Equal(t, 0, v)
}

func TestPayout_LookupSafety(t *testing.T) {
	c, err := payout.Compile(miniSource(t), nil)
	require.NoError(t, err)
	m := c.Table()

	for _, pair := range [][2]int{{0, 1}, {1, 0}, {-3, 1}, {999999, 1}, {1, 999999}} {
		assert.NotPanics(t, func() {
			_, ok := m.Payout(pair[0], pair[1])
			assert.False(t, ok, "pair %v", pair)
		})
	}

	var nilMatrix *payout.Matrix
	_, ok := nilMatrix.Payout(1, 2)
	assert.False(t, ok)

	ragged := payout.NewMatrix([][]int{{0, 1}, nil})
	_, ok = ragged.Payout(2, 1)
	assert.False(t, ok, "missing row must be not found")
}

func TestCompile_SpotChecks(t *testing.T) {
	checks, err := payout.ParseSpotChecks("Hereford:Bangor=8; Bangor:Hereford=8;")
	require.NoError(t, err)
	require.Len(t, checks, 2)

	_, err = payout.Compile(miniSource(t), checks)
	assert.NoError(t, err)

	bad, err := payout.ParseSpotChecks("Hereford:Bangor=9")
	require.NoError(t, err)
	_, err = payout.Compile(miniSource(t), bad)
	assert.ErrorIs(t, err, payout.ErrSpotCheck)
	assert.ErrorContains(t, err, "expected 9 got 8")

	unknown, err := payout.ParseSpotChecks("Hereford:Atlantis=1")
	require.NoError(t, err)
	_, err = payout.Compile(miniSource(t), unknown)
	assert.ErrorIs(t, err, payout.ErrSpotCheck)
}

// A source that gives only half the triangle compiles to a full table.
func TestCompile_HalfTriangleSource(t *testing.T) {
	src := payout.Source{
		Cities: []string{"Albany", "Atlanta", "Baltimore"},
		PayoutsByName: map[string]map[string]float64{
			"Albany":  {"Albany": 0, "Atlanta": 30, "Baltimore": 10},
			"Atlanta": {"Atlanta": 0, "Baltimore": 21},
		},
	}
	checks, err := payout.ParseSpotChecks("Albany:Atlanta=30;Atlanta:Baltimore=21")
	require.NoError(t, err)

	c, err := payout.Compile(src, checks)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 30, 10}, {30, 0, 21}, {10, 21, 0}}, c.Matrix)

	_, err = payout.Compile(src, []payout.SpotCheck{{From: "Baltimore", To: "Albany", Expected: 11}})
	assert.ErrorIs(t, err, payout.ErrSpotCheck)
}

func TestParseSpotChecks_InvalidSyntax(t *testing.T) {
	for _, in := range []string{"Hereford-Bangor=8", "Hereford:Bangor=eight", "Hereford:Bangor"} {
		_, err := payout.ParseSpotChecks(in)
		assert.Error(t, err, in)
	}
	checks, err := payout.ParseSpotChecks("")
	assert.NoError(t, err)
	assert.Empty(t, checks)
}

func TestCompile_RejectsBadSources(t *testing.T) {
	cases := map[string]struct {
		src  payout.Source
		want string
	}{
		"duplicate city": {
			src:  payout.Source{Cities: []string{"A", "A"}, PayoutsByName: map[string]map[string]float64{}},
			want: "duplicate city name",
		},
		"unknown row": {
			src:  payout.Source{Cities: []string{"A"}, PayoutsByName: map[string]map[string]float64{"B": {"A": 1}}},
			want: "unknown city in payoutsByName",
		},
		"unknown destination": {
			src:  payout.Source{Cities: []string{"A"}, PayoutsByName: map[string]map[string]float64{"A": {"B": 1}}},
			want: "unknown destination",
		},
		"negative": {
			src:  payout.Source{Cities: []string{"A", "B"}, PayoutsByName: map[string]map[string]float64{"A": {"B": -1}}},
			want: "invalid value",
		},
		"fractional": {
			src:  payout.Source{Cities: []string{"A", "B"}, PayoutsByName: map[string]map[string]float64{"A": {"B": 1.5}}},
			want: "invalid value",
		},
		"diagonal": {
			src:  payout.Source{Cities: []string{"A", "B"}, PayoutsByName: map[string]map[string]float64{"A": {"A": 3}}},
			want: "diagonal must be 0",
		},
		"conflicting mirror": {
			src: payout.Source{Cities: []string{"A", "B"}, PayoutsByName: map[string]map[string]float64{
				"A": {"B": 4},
				"B": {"A": 5},
			}},
			want: "asymmetry detected",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := payout.Compile(tc.src, nil)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestValidate_RejectsCorruptMatrices(t *testing.T) {
	assert.ErrorContains(t, payout.NewMatrix([][]int{{1}}).Validate(), "diagonal")
	assert.ErrorContains(t, payout.NewMatrix([][]int{{0, 1}, {2, 0}}).Validate(), "asymmetric")
	assert.ErrorContains(t, payout.NewMatrix([][]int{{0, 1}, {1}}).Validate(), "columns")
	assert.NoError(t, payout.NewMatrix(nil).Validate())
}

func TestCompiled_WriteAndLoad(t *testing.T) {
	c, err := payout.Compile(miniSource(t), nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "mini.json")
	require.NoError(t, payout.WriteCompiled(path, c))

	loaded, err := payout.LoadCompiled(path)
	require.NoError(t, err)
	assert.Equal(t, c.Cities, loaded.Cities)
	assert.Equal(t, c.Matrix, loaded.Matrix)
}

func TestLoadCompiled_RejectsAsymmetricFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, payout.WriteCompiled(path, payout.Compiled{
		Cities: []string{"A", "B"},
		Matrix: [][]int{{0, 1}, {2, 0}},
	}))
	_, err := payout.LoadCompiled(path)
	assert.Error(t, err)
}

// Property: any compiled source is symmetric with a zero diagonal.
func TestCompile_Property_SymmetricZeroDiagonal(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "n")
		cities := make([]string, n)
		for i := range cities {
			cities[i] = string(rune('A' + i))
		}
		rows := make(map[string]map[string]float64)
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				if rapid.Bool().Draw(rt, "present") {
					if rows[cities[i]] == nil {
						rows[cities[i]] = make(map[string]float64)
					}
					rows[cities[i]][cities[j]] = float64(rapid.IntRange(0, 500).Draw(rt, "v"))
				}
			}
		}
		c, err := payout.Compile(payout.Source{Cities: cities, PayoutsByName: rows}, nil)
		if err != nil {
			rt.Fatalf("compile: %v", err)
		}
		m := c.Table()
		for a := 1; a <= n; a++ {
			if v, _ := m.Payout(a, a); v != 0 {
				rt.Fatalf("payout(%d,%d) = %d", a, a, v)
			}
			for b := 1; b <= n; b++ {
				x, _ := m.Payout(a, b)
				y, _ := m.Payout(b, a)
				if x != y {
					rt.Fatalf("payout(%d,%d)=%d != payout(%d,%d)=%d", a, b, x, b, a, y)
				}
			}
		}
	})
}
