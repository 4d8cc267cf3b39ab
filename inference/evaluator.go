// Package inference provides the neural policy/value evaluator the
// search engines consume, backed by ONNX Runtime.
package inference

import "github.com/nkrogh/deepcube/cube"

// Policy holds raw policy logits, one per face turn. Normalization is
// the caller's concern (the search engine softmaxes when its policy
// source requires it).
type Policy [cube.NumMoves]float32

// Evaluator scores a batch of states in one call. Implementations
// return one Policy and one value per input state, in input order.
// When wantPolicy or wantValue is false the corresponding slice may be
// nil.
type Evaluator interface {
	Evaluate(states []cube.State, wantPolicy, wantValue bool) ([]Policy, []float32, error)
}
