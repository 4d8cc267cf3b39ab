package timing

import (
	"sync"
	"testing"
	"time"
)

func TestTickTockAggregates(t *testing.T) {
	var tt TickTock
	tt.Observe("expansion", 10*time.Millisecond)
	tt.Observe("expansion", 30*time.Millisecond)
	tt.Observe("selection", 5*time.Millisecond)

	p, ok := tt.Profile("expansion")
	if !ok {
		t.Fatal("expansion profile missing")
	}
	if p.Count != 2 || p.Total != 40*time.Millisecond {
		t.Fatalf("unexpected profile: %+v", p)
	}
	if p.Min != 10*time.Millisecond || p.Max != 30*time.Millisecond {
		t.Fatalf("unexpected min/max: %+v", p)
	}
	if p.Mean() != 20*time.Millisecond {
		t.Fatalf("mean = %v", p.Mean())
	}

	if _, ok := tt.Profile("backup"); ok {
		t.Fatal("unobserved phase should not exist")
	}
	if tt.String() == "" {
		t.Fatal("expected a summary")
	}
}

func TestTickTockConcurrent(t *testing.T) {
	var tt TickTock
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tt.Observe("expansion", time.Millisecond)
			}
		}()
	}
	wg.Wait()

	p, _ := tt.Profile("expansion")
	if p.Count != 800 {
		t.Fatalf("count = %d, want 800", p.Count)
	}
}
