package cube

// Move is one of the twelve face turns. Even moves are clockwise
// quarter turns (as seen from outside the turned face), odd moves are
// the counterclockwise turn of the same face, so m^1 is always the
// inverse of m.
type Move uint8

const (
	MoveU Move = iota
	MoveUPrime
	MoveD
	MoveDPrime
	MoveF
	MoveFPrime
	MoveB
	MoveBPrime
	MoveL
	MoveLPrime
	MoveR
	MoveRPrime
	NumMoves
)

var moveNames = [NumMoves]string{"U", "U'", "D", "D'", "F", "F'", "B", "B'", "L", "L'", "R", "R'"}

func (m Move) String() string {
	if m >= NumMoves {
		return "?"
	}
	return moveNames[m]
}

// Inverse returns the move undoing m.
func (m Move) Inverse() Move {
	return m ^ 1
}

// facelet index shorthand used by the cycle tables below.
func fl(face, i int) int { return face*9 + i }

// moveCycles lists, per clockwise face turn, the 4-cycles of facelet
// indices the turn induces: the sticker at cycle[0] moves to cycle[1],
// and so on. The first two cycles rotate the turned face itself, the
// remaining three carry the adjacent strips around it.
var moveCycles = [NumMoves / 2][][4]int{
	{ // U
		{fl(Up, 0), fl(Up, 2), fl(Up, 8), fl(Up, 6)},
		{fl(Up, 1), fl(Up, 5), fl(Up, 7), fl(Up, 3)},
		{fl(Front, 0), fl(Left, 0), fl(Back, 0), fl(Right, 0)},
		{fl(Front, 1), fl(Left, 1), fl(Back, 1), fl(Right, 1)},
		{fl(Front, 2), fl(Left, 2), fl(Back, 2), fl(Right, 2)},
	},
	{ // D
		{fl(Down, 0), fl(Down, 2), fl(Down, 8), fl(Down, 6)},
		{fl(Down, 1), fl(Down, 5), fl(Down, 7), fl(Down, 3)},
		{fl(Front, 6), fl(Right, 6), fl(Back, 6), fl(Left, 6)},
		{fl(Front, 7), fl(Right, 7), fl(Back, 7), fl(Left, 7)},
		{fl(Front, 8), fl(Right, 8), fl(Back, 8), fl(Left, 8)},
	},
	{ // F
		{fl(Front, 0), fl(Front, 2), fl(Front, 8), fl(Front, 6)},
		{fl(Front, 1), fl(Front, 5), fl(Front, 7), fl(Front, 3)},
		{fl(Up, 6), fl(Right, 0), fl(Down, 2), fl(Left, 8)},
		{fl(Up, 7), fl(Right, 3), fl(Down, 1), fl(Left, 5)},
		{fl(Up, 8), fl(Right, 6), fl(Down, 0), fl(Left, 2)},
	},
	{ // B
		{fl(Back, 0), fl(Back, 2), fl(Back, 8), fl(Back, 6)},
		{fl(Back, 1), fl(Back, 5), fl(Back, 7), fl(Back, 3)},
		{fl(Up, 0), fl(Left, 6), fl(Down, 8), fl(Right, 2)},
		{fl(Up, 1), fl(Left, 3), fl(Down, 7), fl(Right, 5)},
		{fl(Up, 2), fl(Left, 0), fl(Down, 6), fl(Right, 8)},
	},
	{ // L
		{fl(Left, 0), fl(Left, 2), fl(Left, 8), fl(Left, 6)},
		{fl(Left, 1), fl(Left, 5), fl(Left, 7), fl(Left, 3)},
		{fl(Front, 0), fl(Down, 0), fl(Back, 8), fl(Up, 0)},
		{fl(Front, 3), fl(Down, 3), fl(Back, 5), fl(Up, 3)},
		{fl(Front, 6), fl(Down, 6), fl(Back, 2), fl(Up, 6)},
	},
	{ // R
		{fl(Right, 0), fl(Right, 2), fl(Right, 8), fl(Right, 6)},
		{fl(Right, 1), fl(Right, 5), fl(Right, 7), fl(Right, 3)},
		{fl(Front, 2), fl(Up, 2), fl(Back, 6), fl(Down, 2)},
		{fl(Front, 5), fl(Up, 5), fl(Back, 3), fl(Down, 5)},
		{fl(Front, 8), fl(Up, 8), fl(Back, 0), fl(Down, 8)},
	},
}

// movePerm[m][dst] is the source facelet whose sticker lands on dst
// when m is applied.
var movePerm [NumMoves][Stickers]int

func init() {
	for face, cycles := range moveCycles {
		cw := Move(face * 2)
		for i := range movePerm[cw] {
			movePerm[cw][i] = i
		}
		for _, c := range cycles {
			movePerm[cw][c[1]] = c[0]
			movePerm[cw][c[2]] = c[1]
			movePerm[cw][c[3]] = c[2]
			movePerm[cw][c[0]] = c[3]
		}
		// The counterclockwise turn is the inverse permutation.
		for dst, src := range movePerm[cw] {
			movePerm[cw+1][src] = dst
		}
	}
}

// Rotate applies a single face turn and returns the successor state.
// The receiver is not modified. An out-of-range move is a programming
// error and panics.
func Rotate(s State, m Move) State {
	if m >= NumMoves {
		panic("cube: move out of range")
	}
	var out State
	perm := &movePerm[m]
	for dst := 0; dst < Stickers; dst++ {
		out[dst] = s[perm[dst]]
	}
	return out
}

// RotateAll returns the successor for every face turn, indexed by
// move. This is the batched transition used by the search engines when
// expanding a node.
func RotateAll(s State) [NumMoves]State {
	var out [NumMoves]State
	for m := Move(0); m < NumMoves; m++ {
		out[m] = Rotate(s, m)
	}
	return out
}

// Apply plays a move sequence left to right.
func Apply(s State, moves []Move) State {
	for _, m := range moves {
		s = Rotate(s, m)
	}
	return s
}
