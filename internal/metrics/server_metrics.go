package metrics

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramonehamilton/cardtable/internal/events"
)

// ServerMetrics tracks API requests and the state events they cause. It
// is safe for concurrent use and doubles as an event observer.
type ServerMetrics struct {
	RequestLatency *Histogram

	Requests     atomic.Uint64
	ClientErrors atomic.Uint64 // 4xx
	ServerErrors atomic.Uint64 // 5xx

	mu        sync.RWMutex
	events    map[string]uint64
	startTime time.Time
}

// NewServerMetrics creates an empty metrics collector.
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		RequestLatency: NewHistogram(DefaultHistogramSize),
		events:         map[string]uint64{},
		startTime:      time.Now(),
	}
}

// RecordRequest records one served request.
func (m *ServerMetrics) RecordRequest(status int, d time.Duration) {
	m.Requests.Add(1)
	switch {
	case status >= 500:
		m.ServerErrors.Add(1)
	case status >= 400:
		m.ClientErrors.Add(1)
	}
	m.RequestLatency.Record(d)
}

// GetName implements events.Observer.
func (m *ServerMetrics) GetName() string { return "metrics" }

// ShouldHandle implements events.Observer.
func (m *ServerMetrics) ShouldHandle(string) bool { return true }

// OnEvent counts the event by type.
func (m *ServerMetrics) OnEvent(event events.Event) error {
	m.mu.Lock()
	m.events[event.Type]++
	m.mu.Unlock()
	return nil
}

// Stats is a snapshot of the collected metrics.
type Stats struct {
	RequestLatency LatencyStats      `json:"requestLatency"`
	Requests       uint64            `json:"requests"`
	ClientErrors   uint64            `json:"clientErrors"`
	ServerErrors   uint64            `json:"serverErrors"`
	SuccessRate    float64           `json:"successRate"` // percentage of requests below 400
	Events         map[string]uint64 `json:"events"`
	Uptime         string            `json:"uptime"`
}

// GetStats returns a snapshot of the current statistics.
func (m *ServerMetrics) GetStats() *Stats {
	requests := m.Requests.Load()
	clientErrors := m.ClientErrors.Load()
	serverErrors := m.ServerErrors.Load()

	successRate := 0.0
	if requests > 0 {
		successRate = float64(requests-clientErrors-serverErrors) / float64(requests) * 100
	}

	m.mu.RLock()
	eventCounts := maps.Clone(m.events)
	uptime := time.Since(m.startTime).Round(time.Second).String()
	m.mu.RUnlock()

	return &Stats{
		RequestLatency: m.RequestLatency.Stats(),
		Requests:       requests,
		ClientErrors:   clientErrors,
		ServerErrors:   serverErrors,
		SuccessRate:    successRate,
		Events:         eventCounts,
		Uptime:         uptime,
	}
}

// Reset clears all metrics.
func (m *ServerMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RequestLatency.Reset()
	m.Requests.Store(0)
	m.ClientErrors.Store(0)
	m.ServerErrors.Store(0)
	clear(m.events)
	m.startTime = time.Now()
}
