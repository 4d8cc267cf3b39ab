package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrogh/deepcube/cube"
	"github.com/nkrogh/deepcube/timing"
)

func TestAStarGetNeighbors(t *testing.T) {
	a := NewAStar(stickerEvaluator{}, DefaultAStarConfig(), nil)

	for _, s := range []cube.State{cube.Solved(), scrambleUnsolved(t, 10)} {
		succ := a.GetNeighbors(s)
		for mv := cube.Move(0); mv < cube.NumMoves; mv++ {
			assert.Equal(t, cube.Rotate(s, mv), succ[mv])
		}
	}
}

func TestAStarSolvesShortScramble(t *testing.T) {
	root := scrambleUnsolved(t, 4)
	a := NewAStar(stickerEvaluator{}, DefaultAStarConfig(), nil)

	solved, err := a.Search(root, 10*time.Second, 300000)
	require.NoError(t, err)
	require.True(t, solved, "a 4-move scramble should be solved within budget")

	path := a.Path()
	require.NotEmpty(t, path)
	assert.True(t, cube.Apply(root, path).IsSolved(), "path must replay to the solved state")

	_, present := a.Tree().Lookup(cube.Solved().Key())
	assert.True(t, present)
	checkTable(t, a.Tree(), root, false)
}

func TestAStarPathDrainsFIFO(t *testing.T) {
	root := scrambleUnsolved(t, 3)
	a := NewAStar(stickerEvaluator{}, DefaultAStarConfig(), nil)

	solved, err := a.Search(root, 10*time.Second, 100000)
	require.NoError(t, err)
	require.True(t, solved)

	want := a.Path()
	for _, expected := range want {
		got, ok := a.PopMove()
		require.True(t, ok)
		assert.Equal(t, expected, got)
	}
	_, ok := a.PopMove()
	assert.False(t, ok)
}

func TestAStarRootAlreadySolved(t *testing.T) {
	a := NewAStar(stickerEvaluator{}, DefaultAStarConfig(), nil)
	solved, err := a.Search(cube.Solved(), time.Second, 0)
	require.NoError(t, err)
	assert.True(t, solved)
	assert.Empty(t, a.Path())
}

func TestAStarNodeBudget(t *testing.T) {
	root, _ := cube.Scramble(50)
	a := NewAStar(stickerEvaluator{}, DefaultAStarConfig(), nil)

	solved, err := a.Search(root, time.Minute, 200)
	require.NoError(t, err)
	assert.False(t, solved)
	assert.GreaterOrEqual(t, a.Size(), 200)
	checkTable(t, a.Tree(), root, false)
}

func TestAStarFreshTreePerSearch(t *testing.T) {
	a := NewAStar(stickerEvaluator{}, DefaultAStarConfig(), nil)

	first, _ := cube.Scramble(50)
	_, err := a.Search(first, 100*time.Millisecond, 2000)
	require.NoError(t, err)

	second := scrambleUnsolved(t, 3)
	solved, err := a.Search(second, 10*time.Second, 100000)
	require.NoError(t, err)
	require.True(t, solved)

	// The table is rebuilt for each call: the new root sits at handle 1
	// and the previous scramble is gone.
	h, ok := a.Tree().Lookup(second.Key())
	require.True(t, ok)
	assert.Equal(t, Handle(1), h)
	_, stale := a.Tree().Lookup(first.Key())
	assert.False(t, stale)
}

func TestAStarReportsPhaseTimings(t *testing.T) {
	var tt timing.TickTock
	root, _ := cube.Scramble(20)
	a := NewAStar(stickerEvaluator{}, DefaultAStarConfig(), &tt)

	_, err := a.Search(root, 100*time.Millisecond, 5000)
	require.NoError(t, err)

	p, ok := tt.Profile("expansion")
	require.True(t, ok)
	assert.Greater(t, p.Count, 0)
}
