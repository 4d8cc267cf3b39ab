// Package cube implements a 3x3x3 Rubik's cube as a flat 54-facelet
// array, with the twelve face turns as precomputed sticker
// permutations.
//
// The representation is designed to be cheap to copy and to hash: a
// State is a value type and its canonical Key is just the raw sticker
// bytes, so it can be used directly as a map key by search code.
package cube

// Face identifiers. Each face owns 9 consecutive facelets in a State,
// stored row-major as seen from outside the cube in the standard
// unfolded layout (U on top, then L F R B around, D on the bottom).
const (
	Up = iota
	Down
	Front
	Back
	Left
	Right
	numFaces
)

// Stickers is the number of facelets on a cube.
const Stickers = 9 * numFaces

// State is a full sticker configuration. Each entry is the face colour
// (Up..Right) currently showing on that facelet.
type State [Stickers]uint8

// Solved returns the solved configuration: every facelet shows its own
// face colour.
func Solved() State {
	var s State
	for i := range s {
		s[i] = uint8(i / 9)
	}
	return s
}

// IsSolved reports whether every facelet shows its own face colour.
func (s State) IsSolved() bool {
	return s == Solved()
}

// Key returns the canonical serialization of the state. Two states are
// equal iff their keys are equal.
func (s State) Key() string {
	return string(s[:])
}

var faceNames = [numFaces]byte{'U', 'D', 'F', 'B', 'L', 'R'}

// String renders the state as six 9-letter face groups, e.g.
// "UUUUUUUUU DDDDDDDDD ...". Mostly useful in test failures.
func (s State) String() string {
	out := make([]byte, 0, Stickers+numFaces-1)
	for i, c := range s {
		if i > 0 && i%9 == 0 {
			out = append(out, ' ')
		}
		out = append(out, faceNames[c])
	}
	return string(out)
}
