package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFileUpToDate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "texture.bin")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	past := time.Now().Add(-time.Hour)
	require.True(t, FileUpToDate(path, past))

	future := time.Now().Add(time.Hour)
	require.False(t, FileUpToDate(path, future))

	require.False(t, FileUpToDate(filepath.Join(dir, "missing.bin"), past))
}

func TestFileUpToDateEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.False(t, FileUpToDate(path, time.Now().Add(-time.Hour)))
}

func TestSlotTableReuse(t *testing.T) {
	var table SlotTable
	a := table.Acquire("a")
	b := table.Acquire("b")
	require.NotEqual(t, a, b)

	require.NoError(t, table.Release(a))
	c := table.Acquire("c")
	require.Equal(t, a, c, "released slot should be reused before growing")
	require.Equal(t, "c", table.Owner(c))
}

func TestSlotTableReleaseOutOfRange(t *testing.T) {
	var table SlotTable
	table.Acquire("a")
	require.Error(t, table.Release(5))
}
