// Package tracker implements the Tracker role: a connectionless
// directory server that maps file names to live seeders, per spec
// §4.2. Grounded on the teacher's central-server (central-server/cserver.go)
// for its overall shape (mutex-protected maps, a periodic reaper
// goroutine, optional mDNS advertisement) but rebuilt around a single
// UDP socket and the wire codec instead of the teacher's TCP
// node-transport abstraction, since the spec mandates a connectionless
// directory service.
package tracker

import (
	"errors"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/discovery"
	"github.com/dist-torrent/p2p-torrent/internal/monitor"
	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// maxDatagramSize is the largest UDP datagram payload the tracker will
// read, matching wire.MaxDatagramPayload.
const maxDatagramSize = wire.MaxDatagramPayload

// Server is the Tracker role: one UDP listener, one Registry, one
// reaper goroutine, and an optional mDNS advertiser.
type Server struct {
	cfg      config.Tracker
	log      *zap.SugaredLogger
	registry *Registry
	metrics  *monitor.Metrics
	conn     *net.UDPConn
	advertiser *discovery.Advertiser

	done chan struct{}
}

// New creates a Tracker server. It does not open a socket yet.
func New(cfg config.Tracker, log *zap.SugaredLogger) *Server {
	return &Server{
		cfg:        cfg,
		log:        log,
		registry:   NewRegistry(),
		metrics:    monitor.New(log),
		advertiser: &discovery.Advertiser{},
		done:       make(chan struct{}),
	}
}

// Run binds the UDP socket and serves requests until Stop is called.
// advertiseMDNS controls whether the tracker also broadcasts itself via
// mDNS (spec §AMBIENT-4); failure to advertise is logged, not fatal.
func (s *Server) Run(advertiseMDNS bool) error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	s.conn = conn
	s.log.Infow("tracker listening", "addr", conn.LocalAddr().String())

	if advertiseMDNS {
		if _, port, perr := net.SplitHostPort(conn.LocalAddr().String()); perr == nil {
			if p, serr := strconv.Atoi(port); serr == nil {
				if aerr := s.advertiser.Start("", p); aerr != nil {
					s.log.Warnw("mDNS advertisement failed to start", "err", aerr)
				} else {
					s.log.Infow("mDNS advertisement started", "port", p)
				}
			}
		}
	}

	go s.reapLoop()
	go s.metrics.LogPeriodic(s.done, 30*time.Second)

	s.serveLoop()
	return nil
}

// Stop closes the socket and stops background activities.
func (s *Server) Stop() {
	s.advertiser.Stop()
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *Server) serveLoop() {
	buf := make([]byte, maxDatagramSize)
	for {
		n, src, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warnw("udp read failed", "err", err)
			continue
		}

		msg, err := wire.Decode(buf[:n])
		if err != nil {
			s.log.Warnw("dropping malformed datagram", "from", src.String(), "err", err)
			continue
		}

		s.handle(src, msg)
	}
}

func (s *Server) handle(src *net.UDPAddr, msg wire.Message) {
	if msg.Header.Kind != wire.MessageCommand {
		s.log.Warnw("dropping non-command datagram", "from", src.String(), "kind", msg.Header.Kind.String())
		return
	}

	switch msg.Header.Command {
	case wire.CommandRegister:
		s.handleRegister(src, msg.Header)
	case wire.CommandKeepalive:
		s.handleKeepalive(src, msg.Header)
	case wire.CommandRequest:
		s.handleRequest(src, msg.Header)
	case wire.CommandGetCount:
		s.handleGetCount(src, msg.Header)
	default:
		s.log.Warnw("dropping unsupported command", "from", src.String(), "command", msg.Header.Command.String())
	}
}

func (s *Server) handleRegister(src *net.UDPAddr, h wire.Header) {
	err := s.registry.Register(h.FileName, src.IP.String(), h.PeerPort, h.ChunkCount, h.ChunkHashes)
	if err != nil {
		s.log.Warnw("register rejected", "file", h.FileName, "from", src.String(), "err", err)
		s.reply(src, wire.NewErrorMessage(err.Error()))
		return
	}
	s.log.Infow("seeder registered", "file", h.FileName, "addr", src.IP.String(), "port", h.PeerPort)
	s.reply(src, wire.NewAck())
}

func (s *Server) handleKeepalive(src *net.UDPAddr, h wire.Header) {
	s.registry.Keepalive(src.IP.String(), h.PeerPort)
	s.log.Debugw("keepalive received", "addr", src.IP.String(), "port", h.PeerPort)
	s.reply(src, wire.NewAck())
}

func (s *Server) handleRequest(src *net.UDPAddr, h wire.Header) {
	peers := s.registry.PeerList(h.FileName)
	s.log.Debugw("peer list requested", "file", h.FileName, "from", src.String(), "count", len(peers))
	s.reply(src, wire.NewPeerListMessage(peers))
}

func (s *Server) handleGetCount(src *net.UDPAddr, h wire.Header) {
	count, hashes, ok := s.registry.ChunkInfo(h.FileName)
	if !ok {
		s.reply(src, wire.NewErrorMessage("unknown file: "+h.FileName))
		return
	}
	s.reply(src, wire.NewChunkCountMessage(count))
	s.reply(src, wire.NewChunkHashesMessage(hashes))
}

func (s *Server) reply(dst *net.UDPAddr, msg wire.Message) {
	data, err := wire.Encode(msg)
	if err != nil {
		s.log.Errorw("encode reply failed", "to", dst.String(), "err", err)
		return
	}
	if _, err := s.conn.WriteToUDP(data, dst); err != nil {
		s.log.Warnw("send reply failed", "to", dst.String(), "err", err)
	}
}

func (s *Server) reapLoop() {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.registry.Reap(s.cfg.LivenessTimeout); n > 0 {
				s.log.Infow("reaped stale seeders", "count", n)
			}
		}
	}
}
