package search

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/nkrogh/deepcube/cube"
	"github.com/nkrogh/deepcube/inference"
	"github.com/nkrogh/deepcube/timing"
)

// AStarConfig holds the best-first search parameters.
type AStarConfig struct {
	// Weight scales the value estimate when it is turned into a
	// heuristic: a node is ranked by depth - Weight*value, so a larger
	// predicted value means a smaller estimated remaining distance.
	Weight float64
	// Capacity is the initial table capacity hint.
	Capacity int
}

func DefaultAStarConfig() AStarConfig {
	return AStarConfig{Weight: 1, Capacity: 4096}
}

// AStar is the lighter best-first engine. It shares the transposition
// table contract with MCTS for deduplication but keeps no per-edge
// statistics and runs single-threaded.
type AStar struct {
	cfg       AStarConfig
	eval      inference.Evaluator
	collector timing.Collector

	tree  *Tree
	depth []int32
	from  []step // parent edge per handle; from[root] is zero
	open  frontier

	queue []cube.Move
}

// NewAStar builds a best-first searcher around a batched evaluator. A
// nil collector disables phase telemetry.
func NewAStar(eval inference.Evaluator, cfg AStarConfig, collector timing.Collector) *AStar {
	if cfg.Weight == 0 {
		cfg.Weight = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 4096
	}
	if collector == nil {
		collector = timing.Nop{}
	}
	return &AStar{cfg: cfg, eval: eval, collector: collector}
}

// GetNeighbors returns the twelve successor states of a state, one per
// face turn, regardless of whether any of them is solved.
func (a *AStar) GetNeighbors(s cube.State) [cube.NumMoves]cube.State {
	return cube.RotateAll(s)
}

// Tree exposes the session's table for inspection and tests.
func (a *AStar) Tree() *Tree { return a.tree }

// Size reports the number of allocated nodes.
func (a *AStar) Size() int {
	if a.tree == nil {
		return 0
	}
	return a.tree.Len()
}

// Path returns a copy of the solution path found by the last
// successful Search, first move first.
func (a *AStar) Path() []cube.Move {
	out := make([]cube.Move, len(a.queue))
	copy(out, a.queue)
	return out
}

// PopMove drains the solution path FIFO.
func (a *AStar) PopMove() (cube.Move, bool) {
	if len(a.queue) == 0 {
		return 0, false
	}
	mv := a.queue[0]
	a.queue = a.queue[1:]
	return mv, true
}

func (a *AStar) grow() {
	for len(a.depth) < a.tree.Len()+1 {
		a.depth = append(a.depth, 0)
		a.from = append(a.from, step{})
	}
}

// Search expands the most promising open node until a solved state is
// discovered or the time/node budget runs out. Budget exhaustion is a
// normal false result.
func (a *AStar) Search(root cube.State, timeLimit time.Duration, maxStates int) (bool, error) {
	a.tree = NewTree(a.cfg.Capacity)
	a.depth = make([]int32, 1, a.cfg.Capacity+1)
	a.from = make([]step, 1, a.cfg.Capacity+1)
	a.open = a.open[:0]
	a.queue = nil
	deadline := time.Now().Add(timeLimit)

	rootH, _ := a.tree.Intern(root)
	a.grow()
	_, vals, err := a.eval.Evaluate([]cube.State{root}, false, true)
	if err != nil {
		return false, fmt.Errorf("evaluate root: %w", err)
	}
	a.tree.SetValue(rootH, vals[0])
	if root.IsSolved() {
		return true, nil
	}
	heap.Push(&a.open, rankedNode{handle: rootH, cost: -a.cfg.Weight * float64(vals[0])})

	for len(a.open) > 0 {
		if time.Now().After(deadline) {
			return false, nil
		}
		if maxStates > 0 && a.tree.Len() >= maxStates {
			return false, nil
		}

		start := time.Now()
		cur := heap.Pop(&a.open).(rankedNode).handle
		state := a.tree.State(cur)
		a.collector.Observe("selection", time.Since(start))
		if state.IsSolved() {
			a.reconstruct(cur)
			return true, nil
		}

		start = time.Now()
		solved, err := a.expand(cur)
		a.collector.Observe("expansion", time.Since(start))
		if err != nil {
			return false, err
		}
		if solved != None {
			a.reconstruct(solved)
			return true, nil
		}
	}
	return false, nil
}

// expand interns the successors of cur, scores the unseen ones in one
// batched evaluator call, and pushes them onto the frontier. It
// returns the handle of a solved successor, or None.
func (a *AStar) expand(cur Handle) (Handle, error) {
	succ := a.GetNeighbors(a.tree.State(cur))

	var newHandles []Handle
	var newStates []cube.State
	solved := None
	for mv := cube.Move(0); mv < cube.NumMoves; mv++ {
		child, created := a.tree.Intern(succ[mv])
		a.tree.SetNeighbor(cur, mv, child)
		if !created {
			continue
		}
		a.grow()
		a.depth[child] = a.depth[cur] + 1
		a.from[child] = step{node: cur, move: mv}
		newHandles = append(newHandles, child)
		newStates = append(newStates, succ[mv])
		if succ[mv].IsSolved() {
			solved = child
		}
	}

	if len(newStates) > 0 {
		_, vals, err := a.eval.Evaluate(newStates, false, true)
		if err != nil {
			return None, fmt.Errorf("evaluate %d frontier states: %w", len(newStates), err)
		}
		for k, h := range newHandles {
			a.tree.SetValue(h, vals[k])
			heap.Push(&a.open, rankedNode{
				handle: h,
				cost:   float64(a.depth[h]) - a.cfg.Weight*float64(vals[k]),
			})
		}
	}
	return solved, nil
}

// reconstruct rebuilds the root-to-goal move sequence by walking the
// parent edges backward.
func (a *AStar) reconstruct(h Handle) {
	var rev []cube.Move
	for a.depth[h] > 0 {
		e := a.from[h]
		rev = append(rev, e.move)
		h = e.node
	}
	a.queue = make([]cube.Move, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		a.queue = append(a.queue, rev[i])
	}
}

// rankedNode is a frontier entry ordered by estimated total cost.
type rankedNode struct {
	handle Handle
	cost   float64
}

type frontier []rankedNode

func (f frontier) Len() int           { return len(f) }
func (f frontier) Less(i, j int) bool { return f[i].cost < f[j].cost }
func (f frontier) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }
func (f *frontier) Push(x any)        { *f = append(*f, x.(rankedNode)) }
func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	out := old[n-1]
	*f = old[:n-1]
	return out
}
