package leecher

import (
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a read-only snapshot of one download's state, exposed for
// an external collaborator to poll (spec §4.4 step 8, §AMBIENT-1). It
// carries no rendering logic — trimmed down from the teacher's
// peer/progress.go DownloadTracker, which additionally drove a
// terminal renderer that is out of scope here.
type Progress struct {
	FileName        string
	TotalChunks     uint32
	CompletedChunks uint32
	FailedChunks    uint32
	ActiveSeeders   int
	BytesDownloaded uint64
	ThroughputBps   float64
}

// tracker is the mutable state behind a Progress snapshot. Completed
// and failed counts use atomics so workers can update them without
// taking the tracker's mutex; ActiveSeeders and throughput bookkeeping
// share a mutex since they're read together as a set.
type tracker struct {
	fileName    string
	totalChunks uint32

	completed uint32
	failed    uint32
	bytesDone uint64

	mu            sync.Mutex
	start         time.Time
	activeSeeders map[string]struct{}
}

func newTracker(fileName string, totalChunks uint32) *tracker {
	return &tracker{
		fileName:      fileName,
		totalChunks:   totalChunks,
		start:         time.Now(),
		activeSeeders: make(map[string]struct{}),
	}
}

func (t *tracker) markSeederActive(addr string) {
	t.mu.Lock()
	t.activeSeeders[addr] = struct{}{}
	t.mu.Unlock()
}

func (t *tracker) completeChunk(size int) {
	atomic.AddUint32(&t.completed, 1)
	atomic.AddUint64(&t.bytesDone, uint64(size))
}

func (t *tracker) failChunk() {
	atomic.AddUint32(&t.failed, 1)
}

// snapshot returns the current Progress. Failed is a point-in-time
// count of retryable failures observed so far, not a final verdict.
func (t *tracker) snapshot() Progress {
	t.mu.Lock()
	elapsed := time.Since(t.start).Seconds()
	active := len(t.activeSeeders)
	t.mu.Unlock()

	bytesDone := atomic.LoadUint64(&t.bytesDone)
	var throughput float64
	if elapsed > 0 {
		throughput = float64(bytesDone) / elapsed
	}

	return Progress{
		FileName:        t.fileName,
		TotalChunks:     t.totalChunks,
		CompletedChunks: atomic.LoadUint32(&t.completed),
		FailedChunks:    atomic.LoadUint32(&t.failed),
		ActiveSeeders:   active,
		BytesDownloaded: bytesDone,
		ThroughputBps:   throughput,
	}
}
