// Package store persists solve attempts as parquet batches. Writers
// stage files under a tmp/ directory and rename them into place, so
// readers never observe a partially written batch.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// SolveRecord is one solve attempt. Scramble is the move sequence the
// cube was scrambled with, front first, so an attempt can be replayed
// exactly.
type SolveRecord struct {
	Solver        string  `parquet:"solver,dict"`
	ScrambleDepth int32   `parquet:"scramble_depth"`
	Scramble      []int32 `parquet:"scramble"`
	Solved        bool    `parquet:"solved"`
	PathLength    int32   `parquet:"path_length"`
	Path          []int32 `parquet:"path"`
	States        int64   `parquet:"states"`
	DurationMS    int64   `parquet:"duration_ms"`
	UnixMS        int64   `parquet:"unix_ms"`
}

const schemaMeta = "solve_record_v1"

// WriteSolvesParquet writes rows to outPath via a temp file and an
// atomic rename.
func WriteSolvesParquet(outPath string, rows []SolveRecord) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schemaMeta),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

// WriteSolvesBatchAtomic writes a timestamp-named batch file into
// outDir/tmp and then moves it into outDir, returning the final path.
func WriteSolvesBatchAtomic(outDir string, rows []SolveRecord) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	name := fmt.Sprintf("solves_%d.parquet", time.Now().UnixNano())
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schemaMeta),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

// ReadSolvesParquet loads a batch back, mostly for analysis tooling
// and tests.
func ReadSolvesParquet(path string) ([]SolveRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat parquet: %w", err)
	}
	rows, err := parquet.Read[SolveRecord](f, st.Size())
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows, nil
}
