package storage

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, size int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "input.bin")

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSplitFileChunkSizesAndHashes(t *testing.T) {
	const chunkSize = 512 * 1024
	path := writeTempFile(t, chunkSize*2+1000)

	cm, err := SplitFile(path, chunkSize)
	require.NoError(t, err)

	require.Equal(t, 3, cm.Count())
	assert.Len(t, cm.Chunks[0], chunkSize)
	assert.Len(t, cm.Chunks[1], chunkSize)
	assert.Len(t, cm.Chunks[2], 1000)

	for i, chunk := range cm.Chunks {
		assert.Equal(t, Digest(sha256.Sum256(chunk)), cm.Hashes[i])
	}
}

func TestSplitFileRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := SplitFile(path, 1024)
	assert.Error(t, err)
}

func TestChunkOutOfRange(t *testing.T) {
	path := writeTempFile(t, 10)
	cm, err := SplitFile(path, 1024)
	require.NoError(t, err)

	_, err = cm.Chunk(5)
	assert.Error(t, err)
}

func TestHashFileMatchesWholeFileDigest(t *testing.T) {
	path := writeTempFile(t, 4096)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	digest, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, Digest(sha256.Sum256(data)), digest)
}
