package leecher

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/seeder"
	"github.com/dist-torrent/p2p-torrent/internal/storage"
	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// fakeTracker answers REGISTER/KEEPALIVE with ACK, REQUEST with the
// fixed peer list it was given, and GET_COUNT with the fixed count and
// hashes it was given. Good enough to drive an end-to-end download
// without a real tracker package dependency.
func fakeTracker(t *testing.T, peers []wire.PeerEndpoint, count uint32, hashes []wire.ChunkHash) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 65536)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			msg, err := wire.Decode(buf[:n])
			if err != nil {
				continue
			}
			switch msg.Header.Command {
			case wire.CommandRegister, wire.CommandKeepalive:
				reply(conn, src, wire.NewAck())
			case wire.CommandRequest:
				reply(conn, src, wire.NewPeerListMessage(peers))
			case wire.CommandGetCount:
				reply(conn, src, wire.NewChunkCountMessage(count))
				reply(conn, src, wire.NewChunkHashesMessage(hashes))
			}
		}
	}()
	return conn
}

func reply(conn *net.UDPConn, dst *net.UDPAddr, msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		return
	}
	conn.WriteToUDP(data, dst)
}

func TestDownloadSingleSeederReassemblesExactly(t *testing.T) {
	srcDir := t.TempDir()
	srcPath := filepath.Join(srcDir, "hello.bin")
	content := make([]byte, 20)
	for i := range content {
		content[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(srcPath, content, 0o644))

	log := zap.NewNop().Sugar()

	// Stand up a real seeder hosting the file, using a throwaway
	// tracker UDP port so Host's register round trip succeeds.
	bootstrapTracker, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	go func() {
		buf := make([]byte, 65536)
		for {
			n, src, err := bootstrapTracker.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_ = n
			reply(bootstrapTracker, src, wire.NewAck())
		}
	}()
	defer bootstrapTracker.Close()

	seederCfg := config.Seeder{
		TrackerAddr:       bootstrapTracker.LocalAddr().String(),
		BindAddr:          "127.0.0.1:0",
		ChunkSize:         8,
		KeepaliveInterval: time.Hour,
		ServeTimeout:      5 * time.Second,
		MaxInflightServes: 4,
	}
	sv := seeder.New(seederCfg, log)
	require.NoError(t, sv.Host("hello.bin", srcPath))
	go sv.Run()
	defer sv.Stop()

	cm, err := storage.SplitFile(srcPath, 8)
	require.NoError(t, err)

	_, portStr, err := net.SplitHostPort(sv.ListenAddr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	peers := []wire.PeerEndpoint{{Address: "127.0.0.1", Port: uint16(port)}}
	tracker := fakeTracker(t, peers, uint32(cm.Count()), cm.Hashes)
	defer tracker.Close()

	dlDir := t.TempDir()
	lcfg := config.Leecher{
		TrackerAddr:        tracker.LocalAddr().String(),
		DownloadDir:        dlDir,
		Parallelism:        4,
		ChunkTimeout:       5 * time.Second,
		DiscoveryTimeout:   5 * time.Second,
		RetryBudgetPerItem: 3,
	}
	d := New(lcfg, seederCfg, log)

	result, err := d.Download(context.Background(), "hello.bin", nil)
	require.NoError(t, err)
	defer result.Seeder.Stop()

	got, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	require.Equal(t, content, got)
}
