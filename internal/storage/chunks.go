// Package storage implements the file <-> chunk conversions used by
// the seeder (splitting a hosted file into a ChunkMap) and the leecher
// (reassembling downloaded chunks back into a file). It is a rebuild
// of the teacher's pkg/storage package, which the retrieved example
// tree references from peer/peer.go and peer/logic.go
// (storage.HashFile, storage.HashChunk, storage.CreateChunkDirectory,
// storage.DivideToChunk, storage.ReassembleFile) but does not itself
// contain — see DESIGN.md.
package storage

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"

	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// Digest is a chunk or whole-file SHA-256 digest. It shares
// wire.ChunkHash's representation so the two never need converting
// back and forth at the seeder/tracker boundary.
type Digest = wire.ChunkHash

// ChunkMap holds one hosted file's immutable chunk bytes and their
// digests, keyed by index. Once built it is read-only: concurrent
// seeder connections read it without a lock, per spec §5.
type ChunkMap struct {
	ChunkSize int
	FileSize  int64
	Chunks    [][]byte
	Hashes    []Digest
}

// Count returns the number of chunks.
func (c *ChunkMap) Count() int { return len(c.Chunks) }

// Chunk returns the bytes for index i, or an error if out of range.
func (c *ChunkMap) Chunk(index uint32) ([]byte, error) {
	if int(index) >= len(c.Chunks) {
		return nil, fmt.Errorf("storage: chunk index %d out of range [0,%d)", index, len(c.Chunks))
	}
	return c.Chunks[index], nil
}

// HashChunk computes the SHA-256 digest of a single chunk's bytes.
func HashChunk(data []byte) Digest {
	return Digest(sha256.Sum256(data))
}

// HashFile computes the SHA-256 digest of an entire file's contents.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("storage: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, fmt.Errorf("storage: hash %s: %w", path, err)
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// SplitFile reads path fully and divides it into fixed-size chunks
// (the last one short but never empty), computing a digest for each.
// The chunk bytes and digests are retained in memory for the lifetime
// of the ChunkMap, matching spec §3's ChunkMap lifecycle (created at
// ingest, destroyed on process exit).
func SplitFile(path string, chunkSize int) (*ChunkMap, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("storage: chunk size must be positive, got %d", chunkSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("storage: %s is empty", path)
	}

	numChunks := int((info.Size() + int64(chunkSize) - 1) / int64(chunkSize))
	cm := &ChunkMap{
		ChunkSize: chunkSize,
		FileSize:  info.Size(),
		Chunks:    make([][]byte, 0, numChunks),
		Hashes:    make([]Digest, 0, numChunks),
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(f, buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			cm.Chunks = append(cm.Chunks, chunk)
			cm.Hashes = append(cm.Hashes, HashChunk(chunk))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", path, err)
		}
	}

	if len(cm.Chunks) != numChunks {
		return nil, fmt.Errorf("storage: split %s into %d chunks, expected %d", path, len(cm.Chunks), numChunks)
	}
	return cm, nil
}
