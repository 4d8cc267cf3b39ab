package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []SolveRecord {
	now := time.Now().UnixMilli()
	return []SolveRecord{
		{
			Solver:        "mcts",
			ScrambleDepth: 4,
			Scramble:      []int32{0, 5, 2, 9},
			Solved:        true,
			PathLength:    4,
			Path:          []int32{8, 3, 4, 1},
			States:        1234,
			DurationMS:    87,
			UnixMS:        now,
		},
		{
			Solver:        "astar",
			ScrambleDepth: 12,
			Scramble:      []int32{1, 1, 7, 3, 10, 2, 4, 4, 0, 11, 6, 8},
			Solved:        false,
			States:        100000,
			DurationMS:    5000,
			UnixMS:        now,
		},
	}
}

func TestWriteReadSolvesParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solves.parquet")
	rows := sampleRecords()

	require.NoError(t, WriteSolvesParquet(path, rows))

	got, err := ReadSolvesParquet(path)
	require.NoError(t, err)
	require.Equal(t, rows, got)

	// No stray temp file once the rename has happened.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestWriteSolvesBatchAtomic(t *testing.T) {
	dir := t.TempDir()
	rows := sampleRecords()

	path, err := WriteSolvesBatchAtomic(dir, rows)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	got, err := ReadSolvesParquet(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)
}

func TestBatchWriter(t *testing.T) {
	dir := t.TempDir()

	w, err := NewBatchWriter(dir)
	require.NoError(t, err)
	rows := sampleRecords()
	require.NoError(t, w.WriteRows(rows[:1]))
	require.NoError(t, w.WriteRows(rows[1:]))
	require.Equal(t, 2, w.BufferedRows())

	path, n, err := w.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := ReadSolvesParquet(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	// Finalize is idempotent and writes refuse a closed writer.
	_, _, err = w.Finalize()
	assert.NoError(t, err)
	assert.Error(t, w.WriteRows(rows))
}

func TestBatchWriterEmptyDiscards(t *testing.T) {
	dir := t.TempDir()

	w, err := NewBatchWriter(dir)
	require.NoError(t, err)

	path, n, err := w.Finalize()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Zero(t, n)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.Equal(t, "tmp", e.Name(), "only the staging dir should remain")
	}
}
