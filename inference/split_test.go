package inference

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkrogh/deepcube/cube"
)

// cappedRun rejects batches above a size limit, the way a session runs
// out of device memory on an oversized batch. Outputs are derived from
// the state so recombination order is checkable.
func cappedRun(limit int, calls *[]int) func([]cube.State) ([]Policy, []float32, error) {
	return func(states []cube.State) ([]Policy, []float32, error) {
		*calls = append(*calls, len(states))
		if len(states) > limit {
			return nil, nil, fmt.Errorf("batch of %d exceeds capacity", len(states))
		}
		policies := make([]Policy, len(states))
		values := make([]float32, len(states))
		for i, s := range states {
			values[i] = stateScalar(s)
			policies[i][0] = stateScalar(s)
		}
		return policies, values, nil
	}
}

// stateScalar maps a state to a value that distinguishes the test
// states, so recombined outputs can be matched to their inputs.
func stateScalar(s cube.State) float32 {
	sum := 0
	for i, c := range s {
		sum += (i + 1) * int(c)
	}
	return float32(sum)
}

func splitStates(t *testing.T, n int) []cube.State {
	t.Helper()
	states := make([]cube.State, n)
	s := cube.Solved()
	for i := range states {
		states[i] = s
		s = cube.Rotate(s, cube.Move(i%int(cube.NumMoves)))
	}
	return states
}

func TestEvaluateSplitHalvesOversizedBatches(t *testing.T) {
	states := splitStates(t, 10)
	var calls []int

	policies, values, err := evaluateSplit(states, cappedRun(3, &calls))
	require.NoError(t, err)
	require.Len(t, policies, len(states))
	require.Len(t, values, len(states))

	// Results line up with the inputs after recombination.
	for i, s := range states {
		assert.Equal(t, stateScalar(s), values[i], "value %d out of order", i)
		assert.Equal(t, stateScalar(s), policies[i][0], "policy %d out of order", i)
	}

	// The oversized batch was retried in halves, never abandoned.
	assert.Equal(t, 10, calls[0], "first attempt should be the full batch")
	for _, n := range calls[1:] {
		assert.Less(t, n, 10)
	}
}

func TestEvaluateSplitSingleStateFatal(t *testing.T) {
	states := splitStates(t, 4)
	var calls []int

	_, _, err := evaluateSplit(states, cappedRun(0, &calls))
	require.Error(t, err)
	assert.ErrorContains(t, err, "single state")
	assert.Contains(t, calls, 1, "the retry must reach a single-state batch before giving up")
}

func TestEvaluateSplitNoRetryWhenBatchFits(t *testing.T) {
	states := splitStates(t, 5)
	var calls []int

	_, values, err := evaluateSplit(states, cappedRun(5, &calls))
	require.NoError(t, err)
	require.Len(t, values, 5)
	assert.Equal(t, []int{5}, calls)
}
