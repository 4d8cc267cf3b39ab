// Package search implements the solvers: a batched, neural-guided
// Monte Carlo tree search and a lighter best-first search, both built
// on a shared transposition table with stable integer node handles.
package search

import (
	"fmt"
	"sync"

	"github.com/nkrogh/deepcube/cube"
	"github.com/nkrogh/deepcube/inference"
)

// Handle identifies a node in a Tree. Handles are allocated
// contiguously starting at 1; None (zero) always means "absent" and
// never refers to a real node.
type Handle int32

// None is the absent-node sentinel.
const None Handle = 0

// Tree is the transposition table and node storage shared by the
// engines. Nodes live in structure-of-arrays slices indexed by handle,
// which keeps handles stable across reallocation as the arena grows.
//
// Intern is the only operation that allocates; it is the
// synchronization point that guarantees two workers discovering the
// same state concurrently always receive the same handle.
type Tree struct {
	mu    sync.RWMutex
	index map[string]Handle

	// Arrays indexed by handle. Slot 0 is reserved for None.
	states    []cube.State
	neighbors [][cube.NumMoves]Handle
	policy    []inference.Policy
	value     []float32
	policySet []bool
	valueSet  []bool
}

// NewTree returns an empty tree sized for roughly capacity nodes.
// Growth past the capacity is amortized geometric.
func NewTree(capacity int) *Tree {
	if capacity < 1 {
		capacity = 1
	}
	t := &Tree{
		index:     make(map[string]Handle, capacity),
		states:    make([]cube.State, 1, capacity+1),
		neighbors: make([][cube.NumMoves]Handle, 1, capacity+1),
		policy:    make([]inference.Policy, 1, capacity+1),
		value:     make([]float32, 1, capacity+1),
		policySet: make([]bool, 1, capacity+1),
		valueSet:  make([]bool, 1, capacity+1),
	}
	return t
}

// Len reports the number of allocated nodes. Valid handles are exactly
// 1..Len().
func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.states) - 1
}

// Intern returns the handle for a state, allocating a new node the
// first time the state is seen. The second result reports whether the
// node was created by this call.
func (t *Tree) Intern(s cube.State) (Handle, bool) {
	key := s.Key()

	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.index[key]; ok {
		return h, false
	}

	h := Handle(len(t.states))
	t.index[key] = h
	t.states = append(t.states, s)
	t.neighbors = append(t.neighbors, [cube.NumMoves]Handle{})
	t.policy = append(t.policy, inference.Policy{})
	t.value = append(t.value, 0)
	t.policySet = append(t.policySet, false)
	t.valueSet = append(t.valueSet, false)
	return h, true
}

// Lookup returns the handle for a canonical key, if present.
func (t *Tree) Lookup(key string) (Handle, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.index[key]
	return h, ok
}

func (t *Tree) checkHandle(h Handle) {
	if h == None || int(h) >= len(t.states) {
		panic(fmt.Sprintf("search: invalid handle %d (table size %d)", h, len(t.states)-1))
	}
}

func checkMove(m cube.Move) {
	if m >= cube.NumMoves {
		panic(fmt.Sprintf("search: move %d out of range", m))
	}
}

// State returns the configuration stored for a node.
func (t *Tree) State(h Handle) cube.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.checkHandle(h)
	return t.states[h]
}

// Neighbor returns the child reached from h via m, or None if the
// action has not been expanded.
func (t *Tree) Neighbor(h Handle, m cube.Move) Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.checkHandle(h)
	checkMove(m)
	return t.neighbors[h][m]
}

// SetNeighbor records the child reached from h via m.
func (t *Tree) SetNeighbor(h Handle, m cube.Move, child Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkHandle(h)
	t.checkHandle(child)
	checkMove(m)
	t.neighbors[h][m] = child
}

// NeighborRow returns a copy of the full child row of h.
func (t *Tree) NeighborRow(h Handle) [cube.NumMoves]Handle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.checkHandle(h)
	return t.neighbors[h]
}

// IsLeaf reports whether any action of h is still unexpanded.
func (t *Tree) IsLeaf(h Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.checkHandle(h)
	for _, c := range t.neighbors[h] {
		if c == None {
			return true
		}
	}
	return false
}

// SetPolicy caches the evaluator's raw policy output for a node. The
// cache is write-once; a second write is a programming error.
func (t *Tree) SetPolicy(h Handle, p inference.Policy) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkHandle(h)
	if t.policySet[h] {
		panic(fmt.Sprintf("search: policy for node %d written twice", h))
	}
	t.policy[h] = p
	t.policySet[h] = true
}

// SetValue caches the evaluator's value estimate for a node,
// write-once like SetPolicy.
func (t *Tree) SetValue(h Handle, v float32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkHandle(h)
	if t.valueSet[h] {
		panic(fmt.Sprintf("search: value for node %d written twice", h))
	}
	t.value[h] = v
	t.valueSet[h] = true
}

// Policy returns the cached raw policy for a node and whether it has
// been written.
func (t *Tree) Policy(h Handle) (inference.Policy, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.checkHandle(h)
	return t.policy[h], t.policySet[h]
}

// Value returns the cached value estimate for a node and whether it
// has been written.
func (t *Tree) Value(h Handle) (float32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	t.checkHandle(h)
	return t.value[h], t.valueSet[h]
}
