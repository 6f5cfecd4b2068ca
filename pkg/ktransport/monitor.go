package ktransport

import (
	"sync"
	"time"
)

// bandwidthMonitor tracks bytes transmitted in a trailing one-second
// window, the way §4.6's send_monitor/receive_monitor enforce
// max_send_bandwidth/max_total_bandwidth. A negative limit disables
// enforcement entirely.
type bandwidthMonitor struct {
	mu         sync.Mutex
	windowOpen time.Time
	windowSent int64
}

func newBandwidthMonitor() *bandwidthMonitor {
	return &bandwidthMonitor{windowOpen: time.Now()}
}

// Allow reports whether sending n more bytes stays within limit
// bytes/sec, resetting the window if a full second has elapsed.
// limit < 0 means unlimited.
func (m *bandwidthMonitor) Allow(n int, limit int64) bool {
	if limit < 0 {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if now.Sub(m.windowOpen) >= time.Second {
		m.windowOpen = now
		m.windowSent = 0
	}
	return m.windowSent+int64(n) <= limit
}

// Record registers n bytes as sent in the current window.
func (m *bandwidthMonitor) Record(n int) {
	m.mu.Lock()
	m.windowSent += int64(n)
	m.mu.Unlock()
}
