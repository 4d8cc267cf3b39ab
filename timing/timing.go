// Package timing collects named phase durations from long-running
// search code. The engines only report measurements; formatting and
// persistence are up to the caller.
package timing

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Collector receives one duration per completed phase. Implementations
// must be safe for concurrent use.
type Collector interface {
	Observe(phase string, d time.Duration)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) Observe(string, time.Duration) {}

// Profile is the aggregate of all observations for one phase.
type Profile struct {
	Count int
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
}

// Mean returns the average duration of the phase.
func (p Profile) Mean() time.Duration {
	if p.Count == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Count)
}

// TickTock aggregates phase durations by name. The zero value is ready
// to use.
type TickTock struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func (t *TickTock) Observe(phase string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.profiles == nil {
		t.profiles = make(map[string]Profile)
	}
	p := t.profiles[phase]
	if p.Count == 0 || d < p.Min {
		p.Min = d
	}
	if d > p.Max {
		p.Max = d
	}
	p.Count++
	p.Total += d
	t.profiles[phase] = p
}

// Profile returns the aggregate for one phase, and whether the phase
// was ever observed.
func (t *TickTock) Profile(phase string) (Profile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.profiles[phase]
	return p, ok
}

// String renders one line per phase, sorted by total time descending.
func (t *TickTock) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	type entry struct {
		name string
		p    Profile
	}
	entries := make([]entry, 0, len(t.profiles))
	for name, p := range t.profiles {
		entries = append(entries, entry{name, p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].p.Total > entries[j].p.Total })

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%-20s n=%-7d total=%-12v mean=%v\n", e.name, e.p.Count, e.p.Total, e.p.Mean())
	}
	return b.String()
}
