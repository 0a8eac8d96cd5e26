// Package monitor tracks transfer throughput and runtime stats for the
// seeder and tracker roles (spec §AMBIENT-5). Adapted from the
// teacher's pkg/monitor/metrics.go: the same counters and periodic
// log line, but built as a value type instead of a package-level
// global so a single process hosting multiple roles (tests included)
// doesn't share one clock.
package monitor

import (
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Metrics accumulates transfer counters for one role instance.
type Metrics struct {
	log *zap.SugaredLogger

	transferBytes int64
	transferCount int64
	start         time.Time
	lastStart     int64 // unix nanos, atomic
}

// New creates a Metrics tracker. log should be the role's own
// component logger (internal/telemetry.New).
func New(log *zap.SugaredLogger) *Metrics {
	return &Metrics{
		log:   log,
		start: time.Now(),
	}
}

// LogPeriodic logs runtime and throughput stats at interval until done
// is closed. Intended to run as a background goroutine for the
// lifetime of a seeder or tracker process.
func (m *Metrics) LogPeriodic(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)

			elapsed := time.Since(m.start).Seconds()
			var throughput float64
			if elapsed > 0 {
				throughput = float64(atomic.LoadInt64(&m.transferBytes)) / elapsed / 1024 / 1024
			}

			m.log.Infow("runtime metrics",
				"goroutines", runtime.NumGoroutine(),
				"heap_alloc_mb", mem.HeapAlloc/1024/1024,
				"heap_sys_mb", mem.HeapSys/1024/1024,
				"throughput_mb_s", throughput,
				"transfers", atomic.LoadInt64(&m.transferCount),
			)
		}
	}
}

// StartTransfer marks the beginning of a chunk or file transfer.
func (m *Metrics) StartTransfer() {
	atomic.StoreInt64(&m.lastStart, time.Now().UnixNano())
}

// RecordTransfer records a completed transfer of size bytes, logging
// its duration and speed.
func (m *Metrics) RecordTransfer(size int64) {
	atomic.AddInt64(&m.transferBytes, size)
	atomic.AddInt64(&m.transferCount, 1)

	started := atomic.LoadInt64(&m.lastStart)
	var duration float64
	if started > 0 {
		duration = time.Since(time.Unix(0, started)).Seconds()
	}
	var speed float64
	if duration > 0 {
		speed = float64(size) / duration / 1024 / 1024
	}

	m.log.Infow("transfer complete",
		"size_bytes", size,
		"duration_s", duration,
		"speed_mb_s", speed,
	)
}

// Snapshot returns the current cumulative counters.
func (m *Metrics) Snapshot() (bytes, count int64) {
	return atomic.LoadInt64(&m.transferBytes), atomic.LoadInt64(&m.transferCount)
}
