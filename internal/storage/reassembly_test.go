package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReassemblerOutOfOrderWritesReconstructFile(t *testing.T) {
	dir := t.TempDir()
	const chunkSize = 4
	chunks := [][]byte{[]byte("aaaa"), []byte("bbbb"), []byte("cc")}
	total := int64(0)
	for _, c := range chunks {
		total += int64(len(c))
	}

	r, err := NewReassembler(dir, "out.bin", total, chunkSize)
	require.NoError(t, err)

	// Write out of order: 2, 0, 1.
	require.NoError(t, r.WriteChunk(2, chunks[2]))
	require.NoError(t, r.WriteChunk(0, chunks[0]))
	require.NoError(t, r.WriteChunk(1, chunks[1]))

	finalPath, err := r.Finalize()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.bin"), finalPath)

	got, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, "aaaabbbbcc", string(got))

	_, err = os.Stat(finalPath + ".part")
	assert.True(t, os.IsNotExist(err))
}

func TestReassemblerAbortRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	r, err := NewReassembler(dir, "aborted.bin", 8, 4)
	require.NoError(t, err)
	require.NoError(t, r.WriteChunk(0, []byte("aaaa")))

	require.NoError(t, r.Abort())

	_, err = os.Stat(filepath.Join(dir, "aborted.bin.part"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "aborted.bin"))
	assert.True(t, os.IsNotExist(err))
}
