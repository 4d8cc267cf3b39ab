// Package agent wraps a search engine behind the small surface a solve
// loop needs: run one search, then drain the resulting move queue.
package agent

import (
	"time"

	"github.com/nkrogh/deepcube/cube"
	"github.com/nkrogh/deepcube/search"
)

// Agent drives a single Searcher. It is not safe for concurrent use.
type Agent struct {
	name     string
	searcher search.Searcher
}

func New(name string, s search.Searcher) *Agent {
	return &Agent{name: name, searcher: s}
}

func (a *Agent) String() string { return a.name }

// GenerateActionQueue searches from the given state and reports whether
// a solution was found along with its length in moves.
func (a *Agent) GenerateActionQueue(state cube.State, timeLimit time.Duration, maxStates int) (bool, int, error) {
	solved, err := a.searcher.Search(state, timeLimit, maxStates)
	if err != nil {
		return false, 0, err
	}
	return solved, len(a.searcher.Path()), nil
}

// Action pops the next solution move, front first.
func (a *Agent) Action() (cube.Move, bool) {
	return a.searcher.PopMove()
}

// Actions drains the whole remaining queue.
func (a *Agent) Actions() []cube.Move {
	var out []cube.Move
	for {
		mv, ok := a.searcher.PopMove()
		if !ok {
			return out
		}
		out = append(out, mv)
	}
}

// Len reports the number of states the underlying search explored.
func (a *Agent) Len() int { return a.searcher.Size() }
