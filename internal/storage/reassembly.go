package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Reassembler collects verified chunks for one download into a
// ".part" file inside the output directory, writing each chunk
// positionally as it arrives (chunks may complete out of order, per
// spec §4.4) and renaming atomically to the final name once every
// chunk has landed.
type Reassembler struct {
	finalPath string
	partPath  string
	file      *os.File
	chunkSize int64
}

// NewReassembler creates (or truncates) the ".part" file for fileName
// inside dir, pre-sized to fileSize so positional writes never need to
// extend the file.
func NewReassembler(dir, fileName string, fileSize int64, chunkSize int) (*Reassembler, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create download dir %s: %w", dir, err)
	}

	finalPath := filepath.Join(dir, fileName)
	partPath := finalPath + ".part"

	f, err := os.Create(partPath)
	if err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", partPath, err)
	}
	if err := f.Truncate(fileSize); err != nil {
		f.Close()
		os.Remove(partPath)
		return nil, fmt.Errorf("storage: truncate %s to %d: %w", partPath, fileSize, err)
	}

	return &Reassembler{
		finalPath: finalPath,
		partPath:  partPath,
		file:      f,
		chunkSize: int64(chunkSize),
	}, nil
}

// WriteChunk writes data at the position implied by index into the
// in-progress file. Safe for concurrent callers writing disjoint
// indices.
func (r *Reassembler) WriteChunk(index uint32, data []byte) error {
	offset := int64(index) * r.chunkSize
	if _, err := r.file.WriteAt(data, offset); err != nil {
		return fmt.Errorf("storage: write chunk %d at offset %d: %w", index, offset, err)
	}
	return nil
}

// Truncate resizes the in-progress file to size. Used once the exact
// final chunk length is known, since the leecher only learns the total
// chunk count up front, not the exact byte length of a possibly-short
// last chunk (spec §3 ChunkMap: "the final chunk may be shorter").
func (r *Reassembler) Truncate(size int64) error {
	if err := r.file.Truncate(size); err != nil {
		return fmt.Errorf("storage: truncate %s to %d: %w", r.partPath, size, err)
	}
	return nil
}

// Finalize closes the part file and atomically renames it to the
// final name.
func (r *Reassembler) Finalize() (string, error) {
	if err := r.file.Close(); err != nil {
		return "", fmt.Errorf("storage: close %s: %w", r.partPath, err)
	}
	if err := os.Rename(r.partPath, r.finalPath); err != nil {
		return "", fmt.Errorf("storage: rename %s to %s: %w", r.partPath, r.finalPath, err)
	}
	return r.finalPath, nil
}

// Abort closes and deletes the partial file. Used on cancellation or
// a fatal integrity/retry failure, per spec §4.4 and §7.
func (r *Reassembler) Abort() error {
	_ = r.file.Close()
	if err := os.Remove(r.partPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove %s: %w", r.partPath, err)
	}
	return nil
}
