package picolog

import (
	"sync/atomic"
	"time"

	"github.com/go-picolog/picolog/internal/interfaces"
)

// LatencyBuckets defines the flush-latency histogram buckets in
// nanoseconds. Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks performance and operational statistics for a Logger.
type Metrics struct {
	// Append counters
	AppendOps    atomic.Uint64
	AppendBytes  atomic.Uint64
	AppendErrors atomic.Uint64

	// Flush (page write) counters
	FlushOps     atomic.Uint64
	FlushBytes   atomic.Uint64
	FlushErrors  atomic.Uint64
	PageRotates  atomic.Uint64

	// Durability watermark tracking
	AckAdvances   atomic.Uint64
	LastAckSeqID  atomic.Uint64

	// Performance tracking
	TotalLatencyNs atomic.Uint64 // Cumulative flush latency in nanoseconds
	OpCount        atomic.Uint64 // Total flushes (for average latency calculation)

	// Latency histogram buckets (cumulative counts); bucket[i] holds the
	// count of flushes with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Logger lifecycle
	StartTime atomic.Int64 // Start timestamp (UnixNano)
	StopTime  atomic.Int64 // Close timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordAppend records a record append into the active page.
func (m *Metrics) RecordAppend(bytes uint64, success bool) {
	m.AppendOps.Add(1)
	if success {
		m.AppendBytes.Add(bytes)
	} else {
		m.AppendErrors.Add(1)
	}
}

// RecordFlush records a page flush (submission of a direct-I/O write).
func (m *Metrics) RecordFlush(bytes uint64, latencyNs uint64, success bool) {
	m.FlushOps.Add(1)
	if success {
		m.FlushBytes.Add(bytes)
	} else {
		m.FlushErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordPageRotate records that the active page index advanced.
func (m *Metrics) RecordPageRotate(int) {
	m.PageRotates.Add(1)
}

// RecordAckAdvance records that the durability watermark moved to seqID.
func (m *Metrics) RecordAckAdvance(seqID uint64) {
	m.AckAdvances.Add(1)
	for {
		cur := m.LastAckSeqID.Load()
		if seqID <= cur {
			return
		}
		if m.LastAckSeqID.CompareAndSwap(cur, seqID) {
			return
		}
	}
}

// recordLatency records flush latency and updates the histogram.
func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the logger as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of Metrics.
type MetricsSnapshot struct {
	AppendOps    uint64
	AppendBytes  uint64
	AppendErrors uint64

	FlushOps    uint64
	FlushBytes  uint64
	FlushErrors uint64
	PageRotates uint64

	AckAdvances  uint64
	LastAckSeqID uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	FlushIOPS   float64
	Bandwidth   float64
	TotalOps    uint64
	ErrorRate   float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		AppendOps:    m.AppendOps.Load(),
		AppendBytes:  m.AppendBytes.Load(),
		AppendErrors: m.AppendErrors.Load(),
		FlushOps:     m.FlushOps.Load(),
		FlushBytes:   m.FlushBytes.Load(),
		FlushErrors:  m.FlushErrors.Load(),
		PageRotates:  m.PageRotates.Load(),
		AckAdvances:  m.AckAdvances.Load(),
		LastAckSeqID: m.LastAckSeqID.Load(),
	}

	snap.TotalOps = snap.AppendOps + snap.FlushOps

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		uptimeSeconds := float64(snap.UptimeNs) / 1e9
		snap.FlushIOPS = float64(snap.FlushOps) / uptimeSeconds
		snap.Bandwidth = float64(snap.FlushBytes) / uptimeSeconds
	}

	totalErrors := snap.AppendErrors + snap.FlushErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile
// (0.0-1.0) using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.AppendOps.Store(0)
	m.AppendBytes.Store(0)
	m.AppendErrors.Store(0)
	m.FlushOps.Store(0)
	m.FlushBytes.Store(0)
	m.FlushErrors.Store(0)
	m.PageRotates.Store(0)
	m.AckAdvances.Store(0)
	m.LastAckSeqID.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// NoOpObserver is a no-op implementation of interfaces.Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveAppend(uint64, bool)        {}
func (NoOpObserver) ObserveFlush(uint64, uint64, bool) {}
func (NoOpObserver) ObservePageRotate(int)             {}
func (NoOpObserver) ObserveAckAdvance(uint64)           {}

// MetricsObserver implements interfaces.Observer by recording into a
// Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveAppend(bytes uint64, success bool) {
	o.metrics.RecordAppend(bytes, success)
}

func (o *MetricsObserver) ObserveFlush(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordFlush(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObservePageRotate(pageIdx int) {
	o.metrics.RecordPageRotate(pageIdx)
}

func (o *MetricsObserver) ObserveAckAdvance(seqID uint64) {
	o.metrics.RecordAckAdvance(seqID)
}

// Compile-time interface checks.
var _ interfaces.Observer = (*MetricsObserver)(nil)
var _ interfaces.Observer = (NoOpObserver{})
