package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// seederKey identifies a SeederEntry by (address, port) per spec §3.
type seederKey struct {
	address string
	port    uint16
}

// seederEntry is the Tracker's live record of one seeder, refreshed on
// every KEEPALIVE and REGISTER.
type seederEntry struct {
	address  string
	port     uint16
	lastSeen time.Time
}

// fileEntry is a FileRegistry record: the authoritative chunk count and
// hash vector for a file, plus its live seeder set.
type fileEntry struct {
	chunkCount  uint32
	chunkHashes []wire.ChunkHash
	seeders     map[seederKey]*seederEntry
}

// Registry is the Tracker's mapping from file name to live seeders, per
// spec §3/§4.2. All mutation and snapshotting goes through a single
// mutex; the reaper takes the same lock, matching §5's concurrency
// model.
type Registry struct {
	mu    sync.Mutex
	files map[string]*fileEntry
	// byAddr lists the file names each (address,port) pair serves, so
	// KEEPALIVE can refresh across every file without a per-file scan.
	byAddr map[seederKey][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		files:  make(map[string]*fileEntry),
		byAddr: make(map[seederKey][]string),
	}
}

// Register upserts a SeederEntry for fileName and validates chunkCount
// (and chunkHashes, if supplied) against the file's existing record, if
// any. Returns an error on conflict (spec §3 FileRegistry invariant).
func (r *Registry) Register(fileName, address string, port uint16, chunkCount uint32, chunkHashes []wire.ChunkHash) error {
	if chunkCount == 0 {
		return fmt.Errorf("tracker: chunk_count must be >= 1")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.files[fileName]
	if !ok {
		entry = &fileEntry{
			chunkCount:  chunkCount,
			chunkHashes: chunkHashes,
			seeders:     make(map[seederKey]*seederEntry),
		}
		r.files[fileName] = entry
	} else if entry.chunkCount != chunkCount {
		return fmt.Errorf("tracker: chunk_count conflict for %q: have %d, got %d", fileName, entry.chunkCount, chunkCount)
	} else if len(chunkHashes) > 0 && len(entry.chunkHashes) > 0 {
		conflict := len(chunkHashes) != len(entry.chunkHashes)
		for i := 0; !conflict && i < len(chunkHashes); i++ {
			conflict = chunkHashes[i] != entry.chunkHashes[i]
		}
		if conflict {
			return fmt.Errorf("tracker: chunk_hashes conflict for %q", fileName)
		}
	}

	key := seederKey{address, port}
	entry.seeders[key] = &seederEntry{address: address, port: port, lastSeen: time.Now()}
	r.indexAddr(key, fileName)
	return nil
}

// Keepalive refreshes last_seen for (address, port) across every file it
// serves. A keepalive for an unknown seeder is a silent no-op per spec
// §4.2's table.
func (r *Registry) Keepalive(address string, port uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seederKey{address, port}
	now := time.Now()
	for _, fileName := range r.byAddr[key] {
		if entry, ok := r.files[fileName]; ok {
			if se, ok := entry.seeders[key]; ok {
				se.lastSeen = now
			}
		}
	}
}

// PeerList returns a snapshot of live seeders for fileName. The order
// of the returned peers is not defined: it follows Go map iteration
// and may differ between calls. The returned slice may be empty but is
// never nil.
func (r *Registry) PeerList(fileName string) []wire.PeerEndpoint {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.files[fileName]
	if !ok {
		return []wire.PeerEndpoint{}
	}

	peers := make([]wire.PeerEndpoint, 0, len(entry.seeders))
	for key := range entry.seeders {
		peers = append(peers, wire.PeerEndpoint{Address: key.address, Port: key.port})
	}
	return peers
}

// ChunkInfo returns the chunk count and hash vector recorded for
// fileName, and whether the file is known at all.
func (r *Registry) ChunkInfo(fileName string) (count uint32, hashes []wire.ChunkHash, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.files[fileName]
	if !ok {
		return 0, nil, false
	}
	return entry.chunkCount, entry.chunkHashes, true
}

// Reap removes every seeder whose last_seen is older than now minus
// livenessTimeout, returning how many were removed. A file entry whose
// seeder set becomes empty is removed too (spec §3 lifecycle).
func (r *Registry) Reap(livenessTimeout time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-livenessTimeout)
	removed := 0
	for fileName, entry := range r.files {
		for key, se := range entry.seeders {
			if se.lastSeen.Before(cutoff) {
				delete(entry.seeders, key)
				r.deindexAddr(key, fileName)
				removed++
			}
		}
		if len(entry.seeders) == 0 {
			delete(r.files, fileName)
		}
	}
	return removed
}

func (r *Registry) indexAddr(key seederKey, fileName string) {
	for _, f := range r.byAddr[key] {
		if f == fileName {
			return
		}
	}
	r.byAddr[key] = append(r.byAddr[key], fileName)
}

func (r *Registry) deindexAddr(key seederKey, fileName string) {
	files := r.byAddr[key]
	for i, f := range files {
		if f == fileName {
			r.byAddr[key] = append(files[:i], files[i+1:]...)
			break
		}
	}
	if len(r.byAddr[key]) == 0 {
		delete(r.byAddr, key)
	}
}
