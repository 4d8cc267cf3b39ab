package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrogh/deepcube/cube"
	"github.com/nkrogh/deepcube/inference"
	"github.com/nkrogh/deepcube/search"
)

// fakeSearcher records the last search call and serves a fixed queue.
type fakeSearcher struct {
	solved bool
	path   []cube.Move
	size   int

	gotState cube.State
	gotLimit time.Duration
	gotMax   int
}

func (f *fakeSearcher) Search(state cube.State, timeLimit time.Duration, maxStates int) (bool, error) {
	f.gotState, f.gotLimit, f.gotMax = state, timeLimit, maxStates
	return f.solved, nil
}

func (f *fakeSearcher) Path() []cube.Move {
	out := make([]cube.Move, len(f.path))
	copy(out, f.path)
	return out
}

func (f *fakeSearcher) PopMove() (cube.Move, bool) {
	if len(f.path) == 0 {
		return 0, false
	}
	mv := f.path[0]
	f.path = f.path[1:]
	return mv, true
}

func (f *fakeSearcher) Size() int { return f.size }

var _ search.Searcher = (*fakeSearcher)(nil)

// valueEvaluator scores states by sticker distance, enough signal for a
// shallow scramble.
type valueEvaluator struct{}

func (valueEvaluator) Evaluate(states []cube.State, wantPolicy, wantValue bool) ([]inference.Policy, []float32, error) {
	solved := cube.Solved()
	value := func(s cube.State) float32 {
		misplaced := 0
		for i := range s {
			if s[i] != solved[i] {
				misplaced++
			}
		}
		return -float32(misplaced) / 8
	}
	var pols []inference.Policy
	var vals []float32
	if wantPolicy {
		pols = make([]inference.Policy, len(states))
	}
	if wantValue {
		vals = make([]float32, len(states))
	}
	for i, s := range states {
		if wantValue {
			vals[i] = value(s)
		}
		if wantPolicy {
			for mv := cube.Move(0); mv < cube.NumMoves; mv++ {
				pols[i][mv] = value(cube.Rotate(s, mv))
			}
		}
	}
	return pols, vals, nil
}

func TestAgentGenerateAndDrain(t *testing.T) {
	fs := &fakeSearcher{
		solved: true,
		path:   []cube.Move{cube.MoveU, cube.MoveRPrime, cube.MoveF},
		size:   42,
	}
	a := New("mcts", fs)

	state, _ := cube.Scramble(5)
	solved, moves, err := a.GenerateActionQueue(state, 2*time.Second, 1000)
	require.NoError(t, err)
	assert.True(t, solved)
	assert.Equal(t, 3, moves)
	assert.Equal(t, state, fs.gotState)
	assert.Equal(t, 2*time.Second, fs.gotLimit)
	assert.Equal(t, 1000, fs.gotMax)
	assert.Equal(t, 42, a.Len())
	assert.Equal(t, "mcts", a.String())

	assert.Equal(t, []cube.Move{cube.MoveU, cube.MoveRPrime, cube.MoveF}, a.Actions())
	_, ok := a.Action()
	assert.False(t, ok)
}

func TestAgentSolvesWithRealEngine(t *testing.T) {
	m := search.NewMCTS(valueEvaluator{}, search.DefaultMCTSConfig(), nil)
	a := New("mcts", m)

	var root cube.State
	for {
		root, _ = cube.Scramble(3)
		if !root.IsSolved() {
			break
		}
	}
	solved, moves, err := a.GenerateActionQueue(root, 5*time.Second, 100000)
	require.NoError(t, err)
	require.True(t, solved)
	require.Greater(t, moves, 0)
	assert.True(t, cube.Apply(root, a.Actions()).IsSolved())
}
