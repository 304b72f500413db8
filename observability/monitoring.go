// Package observability aggregates runtime statistics for the liveness
// surface. Counters are updated from the hot path with atomics; the
// assembled snapshot is refreshed by the health worker.
package observability

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// ServerStats is the latest snapshot served by the liveness endpoint.
type ServerStats struct {
	ConnectedClients int64   `json:"connected_clients"`
	MessagesPosted   uint64  `json:"messages_posted"`
	PersistFailures  uint64  `json:"persist_failures"`
	ReactionsToggled uint64  `json:"reactions_toggled"`
	AllocMemMb       uint64  `json:"alloc_mem_mb"`
	NumGC            uint32  `json:"num_gc"`
	RssBytes         uint64  `json:"rss_bytes"`
	CPUPercent       float64 `json:"cpu_percent"`
	UptimeSeconds    int64   `json:"uptime_seconds"`
}

type Manager struct {
	mu          sync.RWMutex
	latestStats ServerStats
	startedAt   time.Time

	connectedClients int64
	messagesPosted   uint64
	persistFailures  uint64
	reactionsToggled uint64
}

func NewManager() *Manager {
	return &Manager{startedAt: time.Now()}
}

func (m *Manager) IncrConnectedClients(delta int64) {
	atomic.AddInt64(&m.connectedClients, delta)
}

func (m *Manager) IncrMessagesPosted() {
	atomic.AddUint64(&m.messagesPosted, 1)
}

func (m *Manager) IncrPersistFailures() {
	atomic.AddUint64(&m.persistFailures, 1)
}

func (m *Manager) IncrReactionsToggled() {
	atomic.AddUint64(&m.reactionsToggled, 1)
}

// Refresh folds the atomic counters and the Go heap stats into the snapshot.
// Process-level figures (RSS, CPU) are supplied by the health worker.
func (m *Manager) Refresh(rssBytes uint64, cpuPercent float64) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.latestStats = ServerStats{
		ConnectedClients: atomic.LoadInt64(&m.connectedClients),
		MessagesPosted:   atomic.LoadUint64(&m.messagesPosted),
		PersistFailures:  atomic.LoadUint64(&m.persistFailures),
		ReactionsToggled: atomic.LoadUint64(&m.reactionsToggled),
		AllocMemMb:       memStats.Alloc / 1024 / 1024,
		NumGC:            memStats.NumGC,
		RssBytes:         rssBytes,
		CPUPercent:       cpuPercent,
		UptimeSeconds:    int64(time.Since(m.startedAt).Seconds()),
	}
}

func (m *Manager) GetLatest() ServerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latestStats
}

func (m *Manager) Uptime() time.Duration {
	return time.Since(m.startedAt)
}
