package cube

import "lukechampine.com/frand"

// Scramble applies depth random face turns to the solved state and
// returns the scrambled state together with the moves that produced
// it. A turn is never followed by its own inverse, so the walk does
// not trivially cancel itself.
func Scramble(depth int) (State, []Move) {
	s := Solved()
	moves := make([]Move, 0, depth)
	last := NumMoves // sentinel: no previous move
	for len(moves) < depth {
		m := Move(frand.Intn(int(NumMoves)))
		if last != NumMoves && m == last.Inverse() {
			continue
		}
		s = Rotate(s, m)
		moves = append(moves, m)
		last = m
	}
	return s, moves
}
