package util

import (
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/flybywiresim/ndterrain-core/log"
	"github.com/shirou/gopsutil/v3/cpu"
)

// LoggingMutex is a sync.Mutex that logs slow acquisitions and warns if
// held for too long. It guards the render worker's world-map cache,
// which the RPC server's simulator-message handlers and REQ_SHUTDOWN
// reach from net/rpc goroutines, so contention (however rare) is worth
// surfacing. If the lock is still not acquired after 10s it logs CPU
// (via gopsutil), memory and goroutine counts.
type LoggingMutex struct {
	sync.Mutex
	acq time.Time
}

func (m *LoggingMutex) Lock(lg *log.Logger) {
	start := time.Now()
	if !m.Mutex.TryLock() {
		locked := make(chan struct{}, 1)
		go func() {
			m.Mutex.Lock()
			locked <- struct{}{}
		}()

		select {
		case <-locked:
		case <-time.After(10 * time.Second):
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			usage, _ := cpu.Percent(0, false)
			pct := float64(0)
			if len(usage) > 0 {
				pct = usage[0]
			}
			lg.Errorf("world-map cache mutex not acquired after 10s: cpu=%.1f%% alloc=%dMB goroutines=%d",
				pct, mem.Alloc/(1024*1024), runtime.NumGoroutine())
			<-locked
		}
	}

	m.acq = time.Now()
	if w := m.acq.Sub(start); w > time.Second {
		lg.Warn("long wait to acquire world-map cache mutex", slog.Duration("wait", w))
	}
}

func (m *LoggingMutex) Unlock(lg *log.Logger) {
	if d := time.Since(m.acq); d > time.Second {
		lg.Warn("world-map cache mutex held for over 1 second", slog.Duration("held", d))
	}
	m.acq = time.Time{}
	m.Mutex.Unlock()
}

// AtomicBool is a mutex-guarded bool safe for the one place a worker
// field is read from a different goroutine than the one that owns it:
// Core.shuttingDown, set by Shutdown (called from the RPC goroutine)
// and read by Tick (called from the worker goroutine).
type AtomicBool struct {
	mu sync.Mutex
	v  bool
}

func (a *AtomicBool) Store(v bool) {
	a.mu.Lock()
	a.v = v
	a.mu.Unlock()
}

func (a *AtomicBool) Load() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.v
}
