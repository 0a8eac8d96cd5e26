package seeder

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/frame"
	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// fakeTracker answers REGISTER/KEEPALIVE with ACK so Host/heartbeat
// tests don't need a real tracker package dependency.
func fakeTracker(t *testing.T) *net.UDPConn {
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
			data, err := wire.Encode(wire.NewAck())
			if err != nil {
				continue
			}
			_ = n
			conn.WriteToUDP(data, src)
		}
	}()
	return conn
}

func TestHostAndServeChunk(t *testing.T) {
	tracker := fakeTracker(t)
	defer tracker.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "input.bin")
	content := []byte("hello world, this is chunk content")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	log := zap.NewNop().Sugar()
	cfg := config.Seeder{
		TrackerAddr:       tracker.LocalAddr().String(),
		BindAddr:          "127.0.0.1:0",
		ChunkSize:         8,
		KeepaliveInterval: time.Hour,
		ServeTimeout:      5 * time.Second,
		MaxInflightServes: 4,
	}
	s := New(cfg, log)
	require.NoError(t, s.Host("hello.bin", path))

	go s.Run()
	defer s.Stop()

	conn, err := net.Dial("tcp", s.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, frame.WriteMessage(conn, wire.NewGet("hello.bin", 0)))
	resp, err := frame.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, wire.ControlChunkData, resp.Header.Control)
	require.Equal(t, content[:8], resp.Body)
}

func TestServeUnknownFileReturnsError(t *testing.T) {
	tracker := fakeTracker(t)
	defer tracker.Close()

	log := zap.NewNop().Sugar()
	cfg := config.Seeder{
		TrackerAddr:       tracker.LocalAddr().String(),
		BindAddr:          "127.0.0.1:0",
		ChunkSize:         8,
		KeepaliveInterval: time.Hour,
		ServeTimeout:      5 * time.Second,
		MaxInflightServes: 4,
	}
	s := New(cfg, log)
	require.NoError(t, s.listen())

	go s.Run()
	defer s.Stop()

	conn, err := net.Dial("tcp", s.listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, frame.WriteMessage(conn, wire.NewGet("ghost.bin", 0)))
	resp, err := frame.ReadMessage(conn)
	require.NoError(t, err)
	require.Equal(t, wire.ControlError, resp.Header.Control)
}
