// Package leecher implements the Leecher role: discover seeders for a
// file, download its chunks in parallel, verify and reassemble them,
// then promote the local process to a Seeder for that file, per spec
// §4.4. Grounded on the teacher's peer/logic.go (handleChunks /
// fileRequest / saveChunk / assignChunks) for its worker-dispatch shape,
// rebuilt around the wire codec, internal/storage, and a bounded
// chunk-index queue instead of gob RPCs and a generic Job/WorkerPool
// abstraction the retrieved teacher tree references but does not itself
// contain (see DESIGN.md).
package leecher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dist-torrent/p2p-torrent/internal/config"
	"github.com/dist-torrent/p2p-torrent/internal/frame"
	"github.com/dist-torrent/p2p-torrent/internal/seeder"
	"github.com/dist-torrent/p2p-torrent/internal/storage"
	"github.com/dist-torrent/p2p-torrent/internal/wire"
)

// Sentinel errors mirroring spec §7's RESOURCE and INTEGRITY taxonomy.
var (
	ErrNoSeeders   = errors.New("leecher: no seeders available")
	ErrFailedChunk = errors.New("leecher: retry budget exhausted for a chunk")
	ErrFailedFile  = errors.New("leecher: reassembled file failed whole-file integrity check")
	ErrCancelled   = errors.New("leecher: download cancelled")
)

// Downloader is the Leecher role for one process. It can drive many
// sequential downloads; each Download call is independent.
type Downloader struct {
	cfg  config.Seeder // reused for the promoted Seeder's chunk size / bind / limits
	lcfg config.Leecher
	log  *zap.SugaredLogger
}

// New creates a Downloader. seederCfg configures the role this process
// transitions into on a successful download (spec §4.4 step 7).
func New(lcfg config.Leecher, seederCfg config.Seeder, log *zap.SugaredLogger) *Downloader {
	return &Downloader{cfg: seederCfg, lcfg: lcfg, log: log}
}

// Result is what a successful download produces.
type Result struct {
	Path   string
	Seeder *seeder.Server // running Seeder now hosting the downloaded file
}

// Handle represents one in-flight download. Snapshot is safe to call
// from any goroutine while Wait is blocked elsewhere, satisfying spec
// §4.4 step 8's external-pollable progress requirement.
type Handle struct {
	prog *tracker
	done chan struct{}
	res  *Result
	err  error
}

// Snapshot returns the download's current progress.
func (h *Handle) Snapshot() Progress { return h.prog.snapshot() }

// Wait blocks until the download finishes, returning its result or
// error.
func (h *Handle) Wait() (*Result, error) {
	<-h.done
	return h.res, h.err
}

// StartDownload discovers seeders and chunk metadata for fileName
// synchronously, then launches the parallel fetch/verify/reassemble
// pipeline in the background and returns immediately with a Handle the
// caller can poll or wait on. If expectedFileHash is non-nil, the
// reassembled file's whole-file digest is checked against it before the
// download is considered successful.
func (d *Downloader) StartDownload(ctx context.Context, fileName string, expectedFileHash *storage.Digest) (*Handle, error) {
	peers, err := d.discover(fileName)
	if err != nil {
		return nil, err
	}
	if len(peers) == 0 {
		return nil, ErrNoSeeders
	}
	d.log.Infow("discovered seeders", "file", fileName, "count", len(peers))

	count, hashes, err := d.size(fileName)
	if err != nil {
		return nil, err
	}
	if uint32(len(hashes)) != count {
		return nil, fmt.Errorf("leecher: tracker sent %d hashes for %d chunks", len(hashes), count)
	}

	h := &Handle{prog: newTracker(fileName, count), done: make(chan struct{})}
	go func() {
		defer close(h.done)
		h.res, h.err = d.run(ctx, fileName, peers, hashes, count, expectedFileHash, h.prog)
	}()
	return h, nil
}

// Download is the synchronous convenience wrapper over StartDownload
// for callers that don't need a live progress handle.
func (d *Downloader) Download(ctx context.Context, fileName string, expectedFileHash *storage.Digest) (*Result, error) {
	h, err := d.StartDownload(ctx, fileName, expectedFileHash)
	if err != nil {
		return nil, err
	}
	return h.Wait()
}

func (d *Downloader) run(ctx context.Context, fileName string, peers []wire.PeerEndpoint, hashes []wire.ChunkHash, count uint32, expectedFileHash *storage.Digest, prog *tracker) (*Result, error) {
	// Upper-bound allocation; the last chunk may be shorter than
	// chunkSize (spec §3), so the file is truncated to its exact size
	// once that chunk's real length is known.
	upperBound := int64(d.cfg.ChunkSize) * int64(count)
	reassembler, err := storage.NewReassembler(d.lcfg.DownloadDir, fileName, upperBound, d.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	lastChunkSize, err := d.dispatch(ctx, fileName, peers, hashes, reassembler, prog)
	if err != nil {
		_ = reassembler.Abort()
		return nil, err
	}

	exactSize := int64(d.cfg.ChunkSize)*int64(count-1) + lastChunkSize
	if err := reassembler.Truncate(exactSize); err != nil {
		_ = reassembler.Abort()
		return nil, err
	}

	finalPath, err := reassembler.Finalize()
	if err != nil {
		return nil, err
	}

	if expectedFileHash != nil {
		got, err := storage.HashFile(finalPath)
		if err != nil {
			return nil, err
		}
		if got != *expectedFileHash {
			_ = os.Remove(finalPath)
			return nil, ErrFailedFile
		}
	}

	d.log.Infow("download complete", "file", fileName, "path", finalPath)

	s, err := d.promote(fileName, finalPath)
	if err != nil {
		return nil, fmt.Errorf("leecher: promote to seeder: %w", err)
	}

	return &Result{Path: finalPath, Seeder: s}, nil
}

func (d *Downloader) discover(fileName string) ([]wire.PeerEndpoint, error) {
	reply, err := d.roundTrip(wire.NewRequest(fileName))
	if err != nil {
		return nil, err
	}
	if reply.Header.Control != wire.ControlPeerList {
		return nil, fmt.Errorf("leecher: unexpected reply to REQUEST: %s", reply.Header.Control)
	}
	return reply.Header.PeerList, nil
}

func (d *Downloader) size(fileName string) (uint32, []wire.ChunkHash, error) {
	conn, err := net.Dial("udp", d.lcfg.TrackerAddr)
	if err != nil {
		return 0, nil, fmt.Errorf("leecher: dial tracker: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(d.lcfg.DiscoveryTimeout))

	data, err := wire.Encode(wire.NewGetCount(fileName))
	if err != nil {
		return 0, nil, err
	}
	if _, err := conn.Write(data); err != nil {
		return 0, nil, fmt.Errorf("leecher: send get_count: %w", err)
	}

	countMsg, err := readDatagram(conn)
	if err != nil {
		return 0, nil, err
	}
	if countMsg.Header.Control == wire.ControlError {
		return 0, nil, fmt.Errorf("leecher: %s", countMsg.Header.ErrorText)
	}
	if countMsg.Header.Control != wire.ControlChunkCount {
		return 0, nil, fmt.Errorf("leecher: unexpected reply to GET_COUNT: %s", countMsg.Header.Control)
	}

	hashesMsg, err := readDatagram(conn)
	if err != nil {
		return 0, nil, err
	}
	if hashesMsg.Header.Control != wire.ControlChunkHashes {
		return 0, nil, fmt.Errorf("leecher: expected CHUNK_HASHES, got %s", hashesMsg.Header.Control)
	}

	return countMsg.Header.ChunkCount, hashesMsg.Header.ChunkHashes, nil
}

func (d *Downloader) roundTrip(msg wire.Message) (wire.Message, error) {
	conn, err := net.Dial("udp", d.lcfg.TrackerAddr)
	if err != nil {
		return wire.Message{}, fmt.Errorf("leecher: dial tracker: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(d.lcfg.DiscoveryTimeout))

	data, err := wire.Encode(msg)
	if err != nil {
		return wire.Message{}, err
	}
	if _, err := conn.Write(data); err != nil {
		return wire.Message{}, fmt.Errorf("leecher: send: %w", err)
	}
	return readDatagram(conn)
}

func readDatagram(conn net.Conn) (wire.Message, error) {
	buf := make([]byte, wire.MaxDatagramPayload)
	n, err := conn.Read(buf)
	if err != nil {
		return wire.Message{}, fmt.Errorf("leecher: read: %w", err)
	}
	return wire.Decode(buf[:n])
}

// chunkResult is what a worker reports back to the dispatcher for one
// attempted chunk fetch.
type chunkResult struct {
	index uint32
	ok    bool
	fatal error // non-nil aborts the whole download (retry budget exhausted or chunk write failed)
}

// dispatch runs the bounded worker pool over the chunk-index queue
// (spec §4.4 step 3, §5). Chunks may complete out of order; only the
// reassembler cares about final position. Returns the byte length of
// the last chunk (index n-1) as observed on the wire, needed to
// truncate the reassembled file to its exact size.
func (d *Downloader) dispatch(ctx context.Context, fileName string, peers []wire.PeerEndpoint, hashes []wire.ChunkHash, out *storage.Reassembler, prog *tracker) (int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(hashes)
	lastIndex := uint32(n - 1)
	var lastChunkSize int64
	queue := make(chan uint32, n)
	for i := 0; i < n; i++ {
		queue <- uint32(i)
	}

	var retryMu sync.Mutex
	retries := make(map[uint32]int)

	var peerCursor uint32
	nextPeer := func() wire.PeerEndpoint {
		i := atomic.AddUint32(&peerCursor, 1) - 1
		return peers[int(i)%len(peers)]
	}

	workers := d.lcfg.Parallelism
	if workers > len(peers) {
		workers = len(peers)
	}
	if workers < 1 {
		workers = 1
	}

	results := make(chan chunkResult, n)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case index, ok := <-queue:
				if !ok {
					return
				}
				peer := nextPeer()
				prog.markSeederActive(peer.String())

				body, err := d.fetchChunk(ctx, peer, fileName, index)
				if err != nil {
					d.log.Warnw("chunk fetch failed", "index", index, "peer", peer.String(), "err", err)
					results <- d.retryOrFail(&retryMu, retries, queue, index)
					prog.failChunk()
					continue
				}

				got := storage.HashChunk(body)
				if got != hashes[index] {
					d.log.Warnw("chunk hash mismatch", "index", index, "peer", peer.String())
					results <- d.retryOrFail(&retryMu, retries, queue, index)
					prog.failChunk()
					continue
				}

				if err := out.WriteChunk(index, body); err != nil {
					results <- chunkResult{index: index, fatal: err}
					continue
				}
				if index == lastIndex {
					atomic.StoreInt64(&lastChunkSize, int64(len(body)))
				}
				prog.completeChunk(len(body))
				results <- chunkResult{index: index, ok: true}
			}
		}
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go worker()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for r := range results {
		if r.fatal != nil {
			cancel()
			return 0, r.fatal
		}
		if r.ok {
			completed++
			if completed == n {
				cancel()
			}
		}
		select {
		case <-ctx.Done():
			if completed != n {
				return 0, ErrCancelled
			}
		default:
		}
	}

	if completed != n {
		return 0, ErrFailedChunk
	}
	return atomic.LoadInt64(&lastChunkSize), nil
}

// retryOrFail re-enqueues index if its retry budget allows, otherwise
// reports a fatal failure for the whole download (spec §4.4 step 4).
func (d *Downloader) retryOrFail(mu *sync.Mutex, retries map[uint32]int, queue chan uint32, index uint32) chunkResult {
	mu.Lock()
	retries[index]++
	attempts := retries[index]
	mu.Unlock()

	if attempts > d.lcfg.RetryBudgetPerItem {
		return chunkResult{index: index, fatal: fmt.Errorf("%w: chunk %d after %d attempts", ErrFailedChunk, index, attempts)}
	}
	queue <- index
	return chunkResult{index: index}
}

func (d *Downloader) fetchChunk(ctx context.Context, peer wire.PeerEndpoint, fileName string, index uint32) ([]byte, error) {
	dialer := net.Dialer{Timeout: d.lcfg.ChunkTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", peer.String())
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(d.lcfg.ChunkTimeout))

	if err := frame.WriteMessage(conn, wire.NewGet(fileName, index)); err != nil {
		return nil, err
	}
	msg, err := frame.ReadMessage(conn)
	if err != nil {
		return nil, err
	}
	if msg.Header.Control == wire.ControlError {
		return nil, fmt.Errorf("seeder error: %s", msg.Header.ErrorText)
	}
	if msg.Header.Control != wire.ControlChunkData {
		return nil, fmt.Errorf("unexpected control kind: %s", msg.Header.Control)
	}
	return msg.Body, nil
}

// promote transitions this process to the Seeder role for the file it
// just downloaded, per spec §4.4 step 7 / §9's role-transition note.
func (d *Downloader) promote(fileName, path string) (*seeder.Server, error) {
	cfg := d.cfg
	cfg.TrackerAddr = d.lcfg.TrackerAddr
	s := seeder.New(cfg, d.log.Named("promoted-seeder"))
	if err := s.Host(fileName, path); err != nil {
		return nil, err
	}
	go s.Run()
	return s, nil
}

