// Command solvestats aggregates solve-record parquet shards into a
// per-solver, per-depth summary table.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nkrogh/deepcube/store"
)

type bucket struct {
	solver string
	depth  int32

	attempts   int
	solved     int
	pathMoves  int64
	states     int64
	durationMS int64
}

func (b bucket) solveRate() float64 {
	if b.attempts == 0 {
		return 0
	}
	return float64(b.solved) / float64(b.attempts) * 100
}

func (b bucket) meanPath() float64 {
	if b.solved == 0 {
		return 0
	}
	return float64(b.pathMoves) / float64(b.solved)
}

func main() {
	inDir := flag.String("in-dir", "data/solves", "Directory containing solve parquet shards")
	flag.Parse()

	absIn, err := filepath.Abs(*inDir)
	if err != nil {
		absIn = *inDir
	}

	var shards []string
	err = filepath.WalkDir(absIn, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip the staging dir; it may hold partial files.
			if d.Name() == "tmp" && path != absIn {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".parquet") {
			shards = append(shards, path)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "walk %s: %v\n", absIn, err)
		os.Exit(1)
	}
	if len(shards) == 0 {
		fmt.Fprintf(os.Stderr, "no parquet shards under %s\n", absIn)
		os.Exit(1)
	}

	buckets := make(map[string]*bucket)
	totalRows := 0
	for _, shard := range shards {
		rows, err := store.ReadSolvesParquet(shard)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", shard, err)
			os.Exit(1)
		}
		totalRows += len(rows)
		for _, r := range rows {
			key := fmt.Sprintf("%s/%d", r.Solver, r.ScrambleDepth)
			b, ok := buckets[key]
			if !ok {
				b = &bucket{solver: r.Solver, depth: r.ScrambleDepth}
				buckets[key] = b
			}
			b.attempts++
			if r.Solved {
				b.solved++
				b.pathMoves += int64(r.PathLength)
			}
			b.states += r.States
			b.durationMS += r.DurationMS
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].solver != ordered[j].solver {
			return ordered[i].solver < ordered[j].solver
		}
		return ordered[i].depth < ordered[j].depth
	})

	fmt.Printf("%d shards, %d solve attempts\n\n", len(shards), totalRows)
	fmt.Printf("%-8s %6s %9s %8s %10s %12s %10s\n",
		"solver", "depth", "attempts", "solved", "rate", "mean states", "mean path")
	for _, b := range ordered {
		fmt.Printf("%-8s %6d %9d %8d %9.1f%% %12.0f %10.1f\n",
			b.solver, b.depth, b.attempts, b.solved, b.solveRate(),
			float64(b.states)/float64(b.attempts), b.meanPath())
	}
}
