package search

import (
	"time"

	"github.com/nkrogh/deepcube/cube"
)

// Searcher is the contract both engines expose to agents. Search hunts
// for the solved configuration and reports whether it was found;
// running out of time or nodes is a normal false result, not an error.
// On success the move sequence from the searched state to the solved
// one is drainable front-to-back through PopMove.
type Searcher interface {
	Search(state cube.State, timeLimit time.Duration, maxStates int) (bool, error)
	Path() []cube.Move
	PopMove() (cube.Move, bool)
	Size() int
}

var (
	_ Searcher = (*MCTS)(nil)
	_ Searcher = (*AStar)(nil)
)
