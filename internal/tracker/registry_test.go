package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

func TestRegisterThenPeerListContainsSeeder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("hello.bin", "10.0.0.1", 6000, 3, nil))

	peers := r.PeerList("hello.bin")
	require.Len(t, peers, 1)
	assert.Equal(t, wire.PeerEndpoint{Address: "10.0.0.1", Port: 6000}, peers[0])
}

func TestRegisterConflictingChunkCountRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("x.bin", "10.0.0.1", 6000, 5, nil))

	err := r.Register("x.bin", "10.0.0.2", 6001, 6, nil)
	require.Error(t, err)

	peers := r.PeerList("x.bin")
	require.Len(t, peers, 1)
	assert.Equal(t, "10.0.0.1", peers[0].Address)
}

func TestKeepaliveRefreshesAcrossFiles(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a.bin", "10.0.0.1", 6000, 1, nil))
	require.NoError(t, r.Register("b.bin", "10.0.0.1", 6000, 1, nil))

	r.Keepalive("10.0.0.1", 6000)

	entryA := r.files["a.bin"]
	entryB := r.files["b.bin"]
	require.NotNil(t, entryA)
	require.NotNil(t, entryB)
	assert.WithinDuration(t, time.Now(), entryA.seeders[seederKey{"10.0.0.1", 6000}].lastSeen, time.Second)
	assert.WithinDuration(t, time.Now(), entryB.seeders[seederKey{"10.0.0.1", 6000}].lastSeen, time.Second)
}

func TestReapRemovesStaleSeedersAndEmptyFileEntries(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stale.bin", "10.0.0.1", 6000, 1, nil))

	// Force the entry's last_seen into the past.
	r.mu.Lock()
	r.files["stale.bin"].seeders[seederKey{"10.0.0.1", 6000}].lastSeen = time.Now().Add(-time.Hour)
	r.mu.Unlock()

	removed := r.Reap(time.Minute)
	assert.Equal(t, 1, removed)
	assert.Empty(t, r.PeerList("stale.bin"))

	r.mu.Lock()
	_, exists := r.files["stale.bin"]
	r.mu.Unlock()
	assert.False(t, exists)
}

func TestChunkInfoReturnsHashesAndUnknownFlag(t *testing.T) {
	r := NewRegistry()
	hashes := []wire.ChunkHash{{1}, {2}}
	require.NoError(t, r.Register("y.bin", "10.0.0.1", 6000, 2, hashes))

	count, gotHashes, ok := r.ChunkInfo("y.bin")
	require.True(t, ok)
	assert.Equal(t, uint32(2), count)
	assert.Equal(t, hashes, gotHashes)

	_, _, ok = r.ChunkInfo("missing.bin")
	assert.False(t, ok)
}
