// Package seeder implements the Seeder role: ingest local files, a
// liveness heartbeat to the Tracker, and a concurrent chunk-serving TCP
// acceptor, per spec §4.3. Grounded on the teacher's peer/peer.go for
// its registration/heartbeat shape and peer/logic.go for its
// per-connection request handling, rebuilt around the wire codec and
// internal/storage instead of gob-based protocol.FileMetaData.
package seeder

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/frame"
	"github.com/dist-torrent/p2p-torrent/internal/monitor"
	"github.com/dist-torrent/p2p-torrent/internal/storage"
	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// hostedFile holds one hosted file's chunk map; the name it is
// announced under is its key in Server.files.
type hostedFile struct {
	chunkMap *storage.ChunkMap
}

// Server is the Seeder role: a TCP chunk server plus a heartbeat
// activity, serving every file passed to Host.
type Server struct {
	cfg config.Seeder
	log *zap.SugaredLogger

	mu    sync.RWMutex
	files map[string]*hostedFile

	listener net.Listener
	sem      chan struct{} // bounds max_inflight_serves

	metrics *monitor.Metrics
	done    chan struct{}
}

// New creates a Seeder server bound to no files yet.
func New(cfg config.Seeder, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:     cfg,
		log:     log,
		files:   make(map[string]*hostedFile),
		sem:     make(chan struct{}, cfg.MaxInflightServes),
		metrics: monitor.New(log),
		done:    make(chan struct{}),
	}
}

// Host splits path into chunks, stores it under fileName, and registers
// it with the Tracker. Call before Run, or while Run is already serving
// other files — Host is safe to call concurrently with Run.
func (s *Server) Host(fileName, path string) error {
	cm, err := storage.SplitFile(path, s.cfg.ChunkSize)
	if err != nil {
		return fmt.Errorf("seeder: ingest %s: %w", path, err)
	}

	s.mu.Lock()
	s.files[fileName] = &hostedFile{chunkMap: cm}
	s.mu.Unlock()

	s.log.Infow("file ingested", "file", fileName, "chunks", cm.Count(), "size", cm.FileSize)

	port, err := s.listenPort()
	if err != nil {
		return err
	}
	return s.register(fileName, port, cm)
}

// listenPort returns the bound TCP port, starting the listener first if
// Run has not been called yet (so Host can be used standalone in
// tests).
func (s *Server) listenPort() (uint16, error) {
	if s.listener == nil {
		if err := s.listen(); err != nil {
			return 0, err
		}
	}
	_, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		return 0, err
	}
	var port int
	if _, err := fmt.Sscan(portStr, &port); err != nil {
		return 0, err
	}
	return uint16(port), nil
}

func (s *Server) listen() error {
	ln, err := net.Listen("tcp", s.cfg.BindAddr)
	if err != nil {
		return fmt.Errorf("seeder: listen %s: %w", s.cfg.BindAddr, err)
	}
	s.listener = ln
	return nil
}

func (s *Server) register(fileName string, port uint16, cm *storage.ChunkMap) error {
	conn, err := net.Dial("udp", s.cfg.TrackerAddr)
	if err != nil {
		return fmt.Errorf("seeder: dial tracker %s: %w", s.cfg.TrackerAddr, err)
	}
	defer conn.Close()

	msg := wire.NewRegister(fileName, port, uint32(cm.Count()), cm.Hashes)
	data, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("seeder: encode register: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("seeder: send register: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(s.cfg.ServeTimeout))
	buf := make([]byte, wire.MaxDatagramPayload)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("seeder: read register reply: %w", err)
	}
	reply, err := wire.Decode(buf[:n])
	if err != nil {
		return fmt.Errorf("seeder: decode register reply: %w", err)
	}
	if reply.Header.Control == wire.ControlError {
		return fmt.Errorf("seeder: tracker rejected register for %s: %s", fileName, reply.Header.ErrorText)
	}

	s.log.Infow("registered with tracker", "file", fileName, "port", port)
	return nil
}

// Run starts the heartbeat activity and the accept loop; it blocks
// until Stop is called or the listener fails.
func (s *Server) Run() error {
	if s.listener == nil {
		if err := s.listen(); err != nil {
			return err
		}
	}
	s.log.Infow("seeder listening", "addr", s.listener.Addr().String())

	go s.heartbeatLoop()
	go s.metrics.LogPeriodic(s.done, 30*time.Second)

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return fmt.Errorf("seeder: accept: %w", err)
			}
		}
		go s.serveConn(conn)
	}
}

// ListenAddr returns the seeder's bound TCP address. Valid once Host or
// Run has started the listener.
func (s *Server) ListenAddr() string {
	return s.listener.Addr().String()
}

// Stop closes the listener and background activities.
func (s *Server) Stop() {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
}

func (s *Server) heartbeatLoop() {
	_, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	if err != nil {
		s.log.Errorw("heartbeat: bad listen addr", "err", err)
		return
	}
	var port int
	fmt.Sscan(portStr, &port)

	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sendKeepalive(uint16(port))
		}
	}
}

func (s *Server) sendKeepalive(port uint16) {
	conn, err := net.Dial("udp", s.cfg.TrackerAddr)
	if err != nil {
		s.log.Warnw("keepalive dial failed", "err", err)
		return
	}
	defer conn.Close()

	data, err := wire.Encode(wire.NewKeepalive(port))
	if err != nil {
		s.log.Errorw("keepalive encode failed", "err", err)
		return
	}
	if _, err := conn.Write(data); err != nil {
		s.log.Warnw("keepalive send failed", "err", err)
		return
	}
	s.log.Debugw("keepalive sent", "port", port)
}

// serveConn implements the per-connection state machine from spec
// §4.3: AWAITING_REQUEST -> SENDING_CHUNK|SENDING_ERROR -> CLOSED.
func (s *Server) serveConn(conn net.Conn) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	default:
		conn.Close()
		s.log.Warnw("rejecting connection: max inflight serves reached", "remote", conn.RemoteAddr().String())
		return
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(s.cfg.ServeTimeout))

	msg, err := frame.ReadMessage(conn)
	if err != nil {
		s.log.Warnw("read request failed", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	if msg.Header.Kind != wire.MessageCommand || msg.Header.Command != wire.CommandGet {
		s.sendError(conn, "expected GET command")
		return
	}

	s.mu.RLock()
	hosted, ok := s.files[msg.Header.FileName]
	s.mu.RUnlock()
	if !ok {
		s.sendError(conn, "unknown file: "+msg.Header.FileName)
		return
	}

	chunk, err := hosted.chunkMap.Chunk(msg.Header.ChunkIndex)
	if err != nil {
		s.sendError(conn, err.Error())
		return
	}

	s.metrics.StartTransfer()
	if err := frame.WriteMessage(conn, wire.NewChunkData(msg.Header.ChunkIndex, chunk)); err != nil {
		s.log.Warnw("write chunk data failed", "remote", conn.RemoteAddr().String(), "err", err)
		return
	}
	s.metrics.RecordTransfer(int64(len(chunk)))
	s.log.Debugw("chunk served", "file", msg.Header.FileName, "index", msg.Header.ChunkIndex, "remote", conn.RemoteAddr().String())
}

func (s *Server) sendError(conn net.Conn, text string) {
	if err := frame.WriteMessage(conn, wire.NewErrorMessage(text)); err != nil {
		s.log.Warnw("write error reply failed", "remote", conn.RemoteAddr().String(), "err", err)
	}
}
