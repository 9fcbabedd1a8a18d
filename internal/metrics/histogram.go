// Package metrics keeps in-process latency and counter statistics for the
// API server and the state event stream.
package metrics

import (
	"math"
	"slices"
	"sync"
	"time"
)

// DefaultHistogramSize is the number of samples a histogram keeps.
const DefaultHistogramSize = 4096

// Histogram keeps the most recent duration samples and computes
// percentiles over them.
type Histogram struct {
	mu      sync.RWMutex
	samples []float64 // milliseconds, ring buffer
	next    int
	full    bool
	total   uint64
}

// NewHistogram creates a histogram holding up to size samples. Older
// samples are overwritten once it is full.
func NewHistogram(size int) *Histogram {
	if size <= 0 {
		size = DefaultHistogramSize
	}
	return &Histogram{samples: make([]float64, size)}
}

// Record adds a duration sample.
func (h *Histogram) Record(d time.Duration) {
	ms := float64(d.Microseconds()) / 1000.0

	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples[h.next] = ms
	h.next++
	if h.next == len(h.samples) {
		h.next = 0
		h.full = true
	}
	h.total++
}

// window returns the retained samples. Callers hold mu.
func (h *Histogram) window() []float64 {
	if h.full {
		return h.samples
	}
	return h.samples[:h.next]
}

// Stats summarizes the retained samples.
func (h *Histogram) Stats() LatencyStats {
	h.mu.RLock()
	sorted := slices.Clone(h.window())
	total := h.total
	h.mu.RUnlock()

	stats := LatencyStats{Count: len(sorted), Total: total}
	if len(sorted) == 0 {
		return stats
	}
	slices.Sort(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	stats.Mean = sum / float64(len(sorted))
	stats.P50 = percentile(sorted, 50)
	stats.P95 = percentile(sorted, 95)
	stats.P99 = percentile(sorted, 99)
	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	return stats
}

// percentile interpolates between the two nearest ranks of sorted.
func percentile(sorted []float64, p float64) float64 {
	index := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}
	fraction := index - float64(lower)
	return sorted[lower]*(1-fraction) + sorted[upper]*fraction
}

// Reset clears all samples.
func (h *Histogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next = 0
	h.full = false
	h.total = 0
}

// LatencyStats contains statistics for a latency histogram, in milliseconds.
type LatencyStats struct {
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"` // retained samples
	Total uint64  `json:"total"` // samples ever recorded
}
