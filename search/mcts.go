package search

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nkrogh/deepcube/cube"
	"github.com/nkrogh/deepcube/inference"
	"github.com/nkrogh/deepcube/timing"
)

// PolicySource selects where a node's selection prior comes from. It
// is fixed at construction.
type PolicySource int

const (
	// PolicyNet softmaxes the evaluator's policy head.
	PolicyNet PolicySource = iota
	// PolicyValue derives the prior from the value estimates of the
	// node's successors at expansion time.
	PolicyValue
)

// MCTSConfig holds the per-session search parameters.
type MCTSConfig struct {
	// Exploration is the UCB exploration constant c.
	Exploration float64
	// VirtualLoss is the transient penalty nu subtracted from an
	// action's score each time a simulation of the current iteration
	// picks it, diverging concurrent simulations onto different
	// branches.
	VirtualLoss float64
	// Workers is the number of simulations per iteration. Their leaves
	// are evaluated in one batched call.
	Workers int
	// Policy selects the prior source.
	Policy PolicySource
	// MergePaths lets a simulation traverse into a state it already
	// visited on its own path (graph/DAG traversal). When false a
	// revisit ends the simulation. The transposition table always
	// deduplicates states either way.
	MergePaths bool
	// KeepTree reuses the table across Search calls instead of
	// starting fresh.
	KeepTree bool
	// Capacity is the initial table capacity hint.
	Capacity int
}

// DefaultMCTSConfig returns the parameters the solver was tuned with.
func DefaultMCTSConfig() MCTSConfig {
	return MCTSConfig{
		Exploration: 1,
		VirtualLoss: 0.005,
		Workers:     10,
		Policy:      PolicyNet,
		Capacity:    4096,
	}
}

type step struct {
	node Handle
	move cube.Move
}

type simResult struct {
	path []step
	leaf Handle
}

// MCTS is the batched, neural-guided tree search. Each outer iteration
// runs Workers simulations down the tree under a virtual-loss bias,
// expands the distinct leaves they reach with one batched evaluator
// call, and finalizes two-ply backed-up values.
//
// An MCTS instance is not safe for concurrent Search calls.
type MCTS struct {
	cfg       MCTSConfig
	eval      inference.Evaluator
	collector timing.Collector

	tree *Tree

	// Per-node statistics, indexed by handle alongside the tree
	// arrays. backed holds the two-ply backed-up value W; backedSet
	// tags it as finalized, so a pending entry is never confused with
	// a real zero.
	prior     [][cube.NumMoves]float32
	visits    [][cube.NumMoves]uint32
	backed    [][cube.NumMoves]float32
	backedSet [][cube.NumMoves]bool

	// Transient virtual-loss bias for the current iteration, plus the
	// handles to wipe when it ends.
	vloss   [][cube.NumMoves]float32
	touched []Handle

	queue []cube.Move
}

// NewMCTS builds an engine around a batched evaluator. A nil collector
// disables phase telemetry.
func NewMCTS(eval inference.Evaluator, cfg MCTSConfig, collector timing.Collector) *MCTS {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 4096
	}
	if collector == nil {
		collector = timing.Nop{}
	}
	return &MCTS{cfg: cfg, eval: eval, collector: collector}
}

// Tree exposes the session's table for inspection and tests.
func (m *MCTS) Tree() *Tree { return m.tree }

// Size reports the number of allocated nodes.
func (m *MCTS) Size() int {
	if m.tree == nil {
		return 0
	}
	return m.tree.Len()
}

// Path returns a copy of the solution path found by the last
// successful Search, front (first move) first.
func (m *MCTS) Path() []cube.Move {
	out := make([]cube.Move, len(m.queue))
	copy(out, m.queue)
	return out
}

// PopMove drains the solution path FIFO.
func (m *MCTS) PopMove() (cube.Move, bool) {
	if len(m.queue) == 0 {
		return 0, false
	}
	mv := m.queue[0]
	m.queue = m.queue[1:]
	return mv, true
}

// VisitRow returns the selection counts N of a node.
func (m *MCTS) VisitRow(h Handle) [cube.NumMoves]uint32 {
	if h == None || int(h) >= len(m.visits) {
		panic(fmt.Sprintf("search: invalid handle %d", h))
	}
	return m.visits[h]
}

// BackedUp returns the backed-up value W for an action and whether it
// has been finalized; a pending entry reports false.
func (m *MCTS) BackedUp(h Handle, mv cube.Move) (float32, bool) {
	if h == None || int(h) >= len(m.backed) {
		panic(fmt.Sprintf("search: invalid handle %d", h))
	}
	checkMove(mv)
	return m.backed[h][mv], m.backedSet[h][mv]
}

func (m *MCTS) reset() {
	m.tree = NewTree(m.cfg.Capacity)
	m.prior = make([][cube.NumMoves]float32, 1, m.cfg.Capacity+1)
	m.visits = make([][cube.NumMoves]uint32, 1, m.cfg.Capacity+1)
	m.backed = make([][cube.NumMoves]float32, 1, m.cfg.Capacity+1)
	m.backedSet = make([][cube.NumMoves]bool, 1, m.cfg.Capacity+1)
	m.vloss = make([][cube.NumMoves]float32, 1, m.cfg.Capacity+1)
	m.touched = nil
}

// grow aligns the statistics arrays with the table after expansion.
func (m *MCTS) grow() {
	for len(m.prior) < m.tree.Len()+1 {
		m.prior = append(m.prior, [cube.NumMoves]float32{})
		m.visits = append(m.visits, [cube.NumMoves]uint32{})
		m.backed = append(m.backed, [cube.NumMoves]float32{})
		m.backedSet = append(m.backedSet, [cube.NumMoves]bool{})
		m.vloss = append(m.vloss, [cube.NumMoves]float32{})
	}
}

// Search runs iterations until the solved state is discovered, the
// time limit elapses, or the node budget (0 = unlimited) is exhausted.
// Budgets are polled between iterations, so an in-flight iteration
// always completes.
func (m *MCTS) Search(root cube.State, timeLimit time.Duration, maxStates int) (bool, error) {
	if m.tree == nil || !m.cfg.KeepTree {
		m.reset()
	}
	m.queue = nil
	deadline := time.Now().Add(timeLimit)

	rootH, created := m.tree.Intern(root)
	m.grow()
	if created {
		wantPolicy := m.cfg.Policy == PolicyNet
		pols, vals, err := m.eval.Evaluate([]cube.State{root}, wantPolicy, true)
		if err != nil {
			return false, fmt.Errorf("evaluate root: %w", err)
		}
		if wantPolicy {
			m.tree.SetPolicy(rootH, pols[0])
			m.prior[rootH] = softmax(pols[0])
		}
		m.tree.SetValue(rootH, vals[0])
	}
	if root.IsSolved() {
		return true, nil
	}

	for {
		if time.Now().After(deadline) {
			return false, nil
		}
		if maxStates > 0 && m.tree.Len() >= maxStates {
			return false, nil
		}

		start := time.Now()
		sims := make([]simResult, 0, m.cfg.Workers)
		var leaves []Handle
		seen := make(map[Handle]struct{}, m.cfg.Workers)
		for i := 0; i < m.cfg.Workers; i++ {
			path, leaf, ok := m.simulate(rootH)
			if !ok {
				continue
			}
			sims = append(sims, simResult{path: path, leaf: leaf})
			if _, dup := seen[leaf]; !dup {
				seen[leaf] = struct{}{}
				leaves = append(leaves, leaf)
			}
		}
		m.collector.Observe("selection", time.Since(start))

		start = time.Now()
		solvedLeaf, solvedMove, solved, err := m.expand(leaves)
		m.collector.Observe("expansion", time.Since(start))
		if err != nil {
			return false, err
		}

		start = time.Now()
		for _, leaf := range leaves {
			m.finalizeAround(leaf)
		}
		for _, sim := range sims {
			for i := len(sim.path) - 1; i >= 0; i-- {
				m.finalizeEdge(sim.path[i].node, sim.path[i].move)
			}
		}
		m.collector.Observe("backup", time.Since(start))

		// The virtual-loss bias is transient; the visit increments
		// stay.
		for _, h := range m.touched {
			m.vloss[h] = [cube.NumMoves]float32{}
		}
		m.touched = m.touched[:0]

		if solved {
			for _, sim := range sims {
				if sim.leaf != solvedLeaf {
					continue
				}
				moves := make([]cube.Move, 0, len(sim.path)+1)
				for _, st := range sim.path {
					moves = append(moves, st.move)
				}
				m.queue = append(moves, solvedMove)
				return true, nil
			}
			// Unreachable: the solved leaf came from some simulation.
			panic("search: solved leaf without a simulation path")
		}
	}
}

// maxPathLen bounds a single simulation; a path this long means the
// selection is stuck in a transposition cycle.
const maxPathLen = 4096

// simulate descends from the root until it reaches a leaf, applying
// the virtual-loss bias so that subsequent simulations of the same
// iteration spread out. It returns the traversed (node, action) path
// and the leaf, or ok=false when the walk dead-ends.
func (m *MCTS) simulate(root Handle) ([]step, Handle, bool) {
	h := root
	var path []step
	var visited map[Handle]struct{}
	if !m.cfg.MergePaths {
		visited = map[Handle]struct{}{root: {}}
	}

	for !m.tree.IsLeaf(h) {
		if len(path) >= maxPathLen {
			return nil, None, false
		}
		mv := m.selectMove(h)
		m.visits[h][mv]++
		m.vloss[h][mv] += float32(m.cfg.VirtualLoss)
		m.touched = append(m.touched, h)
		path = append(path, step{node: h, move: mv})
		h = m.tree.Neighbor(h, mv)
		if visited != nil {
			if _, dup := visited[h]; dup {
				return nil, None, false
			}
			visited[h] = struct{}{}
		}
	}
	return path, h, true
}

func (m *MCTS) selectMove(h Handle) cube.Move {
	total := 0.0
	for _, n := range m.visits[h] {
		total += float64(n)
	}
	sqrtTotal := math.Sqrt(total)

	best := cube.Move(0)
	bestScore := math.Inf(-1)
	for mv := cube.Move(0); mv < cube.NumMoves; mv++ {
		if s := m.selectionScore(h, mv, sqrtTotal); s > bestScore {
			bestScore = s
			best = mv
		}
	}
	return best
}

// selectionScore ranks an action during selection: the finalized
// backed-up value (pending entries contribute zero, an optimistic
// unknown), plus a prior-weighted exploration bonus, minus the
// iteration's transient virtual-loss bias.
func (m *MCTS) selectionScore(h Handle, mv cube.Move, sqrtTotal float64) float64 {
	var q float64
	if m.backedSet[h][mv] {
		q = float64(m.backed[h][mv])
	}
	u := m.cfg.Exploration * float64(m.prior[h][mv]) * sqrtTotal / (1 + float64(m.visits[h][mv]))
	return q + u - float64(m.vloss[h][mv])
}

// expand interns every successor of the given leaves, evaluates the
// newly discovered states in one batched call, and caches their
// policy/value. It reports a solved successor when one turns up.
func (m *MCTS) expand(leaves []Handle) (Handle, cube.Move, bool, error) {
	if len(leaves) == 0 {
		return None, 0, false, nil
	}

	children := make([][cube.NumMoves]Handle, len(leaves))
	created := make([][cube.NumMoves]bool, len(leaves))
	solvedAt := make([]int, len(leaves)) // per-leaf solved move, -1 if none

	var g errgroup.Group
	for i, leaf := range leaves {
		g.Go(func() error {
			solvedAt[i] = -1
			succ := cube.RotateAll(m.tree.State(leaf))
			for mv := cube.Move(0); mv < cube.NumMoves; mv++ {
				child, isNew := m.tree.Intern(succ[mv])
				m.tree.SetNeighbor(leaf, mv, child)
				children[i][mv] = child
				created[i][mv] = isNew
				if succ[mv].IsSolved() {
					solvedAt[i] = int(mv)
				}
			}
			return nil
		})
	}
	// Workers only intern and set rows; neither can fail.
	_ = g.Wait()
	m.grow()

	var newHandles []Handle
	var newStates []cube.State
	for i := range leaves {
		for mv := cube.Move(0); mv < cube.NumMoves; mv++ {
			if created[i][mv] {
				h := children[i][mv]
				newHandles = append(newHandles, h)
				newStates = append(newStates, m.tree.State(h))
			}
		}
	}

	if len(newStates) > 0 {
		wantPolicy := m.cfg.Policy == PolicyNet
		pols, vals, err := m.eval.Evaluate(newStates, wantPolicy, true)
		if err != nil {
			return None, 0, false, fmt.Errorf("evaluate %d expanded states: %w", len(newStates), err)
		}
		for k, h := range newHandles {
			if wantPolicy {
				m.tree.SetPolicy(h, pols[k])
				m.prior[h] = softmax(pols[k])
			}
			m.tree.SetValue(h, vals[k])
		}
	}

	if m.cfg.Policy == PolicyValue {
		for i, leaf := range leaves {
			var vals inference.Policy
			for mv, child := range children[i] {
				vals[mv], _ = m.tree.Value(child)
			}
			m.prior[leaf] = softmax(vals)
		}
	}

	for i, leaf := range leaves {
		if solvedAt[i] >= 0 {
			return leaf, cube.Move(solvedAt[i]), true, nil
		}
	}
	return None, 0, false, nil
}

// finalizeAround finalizes every backed-up value whose pending
// condition was resolved by expanding h: the edges of h's parents into
// h (h's row just became full), and h's own edges onto children that
// were already fully expanded.
func (m *MCTS) finalizeAround(h Handle) {
	for mv := cube.Move(0); mv < cube.NumMoves; mv++ {
		if parent := m.tree.Neighbor(h, mv.Inverse()); parent != None {
			m.finalizeEdge(parent, mv)
		}
		m.finalizeEdge(h, mv)
	}
}

// finalizeEdge writes W[h][mv] once the child's own neighbor row is
// fully populated: the maximum cached value over the child's
// neighbors, a two-ply greedy lookahead. Until then the entry stays
// pending.
func (m *MCTS) finalizeEdge(h Handle, mv cube.Move) {
	if m.backedSet[h][mv] {
		return
	}
	child := m.tree.Neighbor(h, mv)
	if child == None {
		return
	}
	best := float32(math.Inf(-1))
	for _, gc := range m.tree.NeighborRow(child) {
		if gc == None {
			return // child not fully expanded; stays pending
		}
		v, ok := m.tree.Value(gc)
		if !ok {
			return
		}
		if v > best {
			best = v
		}
	}
	m.backed[h][mv] = best
	m.backedSet[h][mv] = true
}

// softmax normalizes raw logits into a probability prior.
func softmax(logits inference.Policy) [cube.NumMoves]float32 {
	var out [cube.NumMoves]float32
	maxV := logits[0]
	for _, v := range logits[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float32
	for i, v := range logits {
		e := float32(math.Exp(float64(v - maxV)))
		out[i] = e
		sum += e
	}
	if sum > 0 {
		inv := 1 / sum
		for i := range out {
			out[i] *= inv
		}
	}
	return out
}
