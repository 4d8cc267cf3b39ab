package cube

import "testing"

func TestSolved(t *testing.T) {
	s := Solved()
	if !s.IsSolved() {
		t.Fatal("solved state should report solved")
	}
	for m := Move(0); m < NumMoves; m++ {
		if Rotate(s, m).IsSolved() {
			t.Errorf("move %v should leave the cube unsolved", m)
		}
	}
}

func TestMoveInverse(t *testing.T) {
	s, _ := Scramble(30)
	for m := Move(0); m < NumMoves; m++ {
		got := Rotate(Rotate(s, m), m.Inverse())
		if got != s {
			t.Errorf("move %v followed by %v should be the identity", m, m.Inverse())
		}
	}
}

func TestMoveOrder(t *testing.T) {
	// A quarter turn applied four times returns to the start.
	s, _ := Scramble(20)
	for m := Move(0); m < NumMoves; m++ {
		got := s
		for i := 0; i < 4; i++ {
			got = Rotate(got, m)
		}
		if got != s {
			t.Errorf("move %v applied four times should be the identity", m)
		}
	}
}

func TestMovesAreDistinct(t *testing.T) {
	seen := make(map[string]Move)
	for m := Move(0); m < NumMoves; m++ {
		k := Rotate(Solved(), m).Key()
		if prev, ok := seen[k]; ok {
			t.Errorf("moves %v and %v produce the same state", prev, m)
		}
		seen[k] = m
	}
}

func TestMovesPreserveStickerCounts(t *testing.T) {
	// Turns permute stickers, so each colour count stays at 9.
	s, _ := Scramble(15)
	var counts [numFaces]int
	for _, c := range s {
		counts[c]++
	}
	for _, n := range counts {
		if n != 9 {
			t.Fatalf("expected 9 stickers per colour, got %v", counts)
		}
	}
}

func TestRotateAll(t *testing.T) {
	s, _ := Scramble(10)
	all := RotateAll(s)
	for m := Move(0); m < NumMoves; m++ {
		if all[m] != Rotate(s, m) {
			t.Errorf("RotateAll disagrees with Rotate for move %v", m)
		}
	}
}

func TestScrambleReplay(t *testing.T) {
	state, moves := Scramble(50)
	if len(moves) != 50 {
		t.Fatalf("expected 50 moves, got %d", len(moves))
	}
	if Apply(Solved(), moves) != state {
		t.Fatal("replaying the scramble moves should reproduce the state")
	}

	// Undoing the scramble in reverse solves the cube.
	for i := len(moves) - 1; i >= 0; i-- {
		state = Rotate(state, moves[i].Inverse())
	}
	if !state.IsSolved() {
		t.Fatal("inverse replay should solve the cube")
	}
}

func TestKey(t *testing.T) {
	a, _ := Scramble(10)
	b := Rotate(a, MoveF)
	if a.Key() == b.Key() {
		t.Fatal("distinct states must have distinct keys")
	}
	if a.Key() != a.Key() {
		t.Fatal("key must be deterministic")
	}
	if len(a.Key()) != Stickers {
		t.Fatalf("key length = %d, want %d", len(a.Key()), Stickers)
	}
}

func TestEncode(t *testing.T) {
	enc := Encode(nil, Solved())
	if len(enc) != EncodedSize {
		t.Fatalf("encoded size = %d, want %d", len(enc), EncodedSize)
	}
	ones := 0
	for _, v := range enc {
		if v == 1 {
			ones++
		} else if v != 0 {
			t.Fatalf("encoding must be one-hot, saw %v", v)
		}
	}
	if ones != Stickers {
		t.Fatalf("expected %d hot entries, got %d", Stickers, ones)
	}

	batch := EncodeBatch([]State{Solved(), Rotate(Solved(), MoveR)})
	if len(batch) != 2*EncodedSize {
		t.Fatalf("batch size = %d, want %d", len(batch), 2*EncodedSize)
	}
}
