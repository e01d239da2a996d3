package flashrpc

import (
	"sync/atomic"
	"time"

	"github.com/flashrpc/flashrpc/internal/interfaces"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds,
// log-spaced from 1us to 10s. RPC calls and script runs both live
// comfortably inside this range.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks RPC and script-worker statistics for one appliance
// instance.
type Metrics struct {
	RPCCalls   atomic.Uint64
	RPCErrors  atomic.Uint64
	BytesIn    atomic.Uint64
	BytesOut   atomic.Uint64
	ScriptRuns atomic.Uint64
	ScriptErrs atomic.Uint64

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a metrics instance stamped with the current time.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordCall records one dispatched RPC call.
func (m *Metrics) RecordCall(latencyNs uint64, success bool) {
	m.RPCCalls.Add(1)
	if !success {
		m.RPCErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordScriptRun records one completed script execution.
func (m *Metrics) RecordScriptRun(latencyNs uint64, success bool) {
	m.ScriptRuns.Add(1)
	if !success {
		m.ScriptErrs.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the appliance as stopped for uptime accounting.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time read of Metrics.
type MetricsSnapshot struct {
	RPCCalls   uint64
	RPCErrors  uint64
	BytesIn    uint64
	BytesOut   uint64
	ScriptRuns uint64
	ScriptErrs uint64

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	CallsPerSecond float64
	ErrorRate      float64
}

// Snapshot computes a MetricsSnapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		RPCCalls:   m.RPCCalls.Load(),
		RPCErrors:  m.RPCErrors.Load(),
		BytesIn:    m.BytesIn.Load(),
		BytesOut:   m.BytesOut.Load(),
		ScriptRuns: m.ScriptRuns.Load(),
		ScriptErrs: m.ScriptErrs.Load(),
	}

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
		snap.CallsPerSecond = float64(snap.RPCCalls) / (float64(snap.UptimeNs) / 1e9)
	}
	if snap.RPCCalls > 0 {
		snap.ErrorRate = float64(snap.RPCErrors) / float64(snap.RPCCalls) * 100.0
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

// Reset zeroes all counters, for test isolation.
func (m *Metrics) Reset() {
	m.RPCCalls.Store(0)
	m.RPCErrors.Store(0)
	m.BytesIn.Store(0)
	m.BytesOut.Store(0)
	m.ScriptRuns.Store(0)
	m.ScriptErrs.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// MetricsObserver adapts Metrics to interfaces.Observer, the narrow
// surface the dispatcher and script worker depend on.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver wraps m as an interfaces.Observer.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCall(callset, verb string, latencyNs uint64, status uint8) {
	o.metrics.RecordCall(latencyNs, status == 0)
}

func (o *MetricsObserver) ObserveBytesIn(n uint64)  { o.metrics.BytesIn.Add(n) }
func (o *MetricsObserver) ObserveBytesOut(n uint64) { o.metrics.BytesOut.Add(n) }

func (o *MetricsObserver) ObserveScriptRun(latencyNs uint64, ok bool) {
	o.metrics.RecordScriptRun(latencyNs, ok)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveCall(string, string, uint64, uint8) {}
func (NoOpObserver) ObserveBytesIn(uint64)                     {}
func (NoOpObserver) ObserveBytesOut(uint64)                    {}
func (NoOpObserver) ObserveScriptRun(uint64, bool)              {}

var _ interfaces.Observer = (*MetricsObserver)(nil)
var _ interfaces.Observer = (*NoOpObserver)(nil)
