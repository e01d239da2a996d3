package flashrpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordCall(t *testing.T) {
	m := NewMetrics()
	m.RecordCall(5_000, true)
	m.RecordCall(20_000, false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RPCCalls)
	assert.Equal(t, uint64(1), snap.RPCErrors)
	assert.InDelta(t, 50.0, snap.ErrorRate, 0.01)
}

func TestMetricsRecordScriptRun(t *testing.T) {
	m := NewMetrics()
	m.RecordScriptRun(1_000_000, true)
	m.RecordScriptRun(2_000_000, false)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.ScriptRuns)
	assert.Equal(t, uint64(1), snap.ScriptErrs)
}

func TestMetricsBytesCounters(t *testing.T) {
	m := NewMetrics()
	m.BytesIn.Add(128)
	m.BytesOut.Add(256)

	snap := m.Snapshot()
	assert.Equal(t, uint64(128), snap.BytesIn)
	assert.Equal(t, uint64(256), snap.BytesOut)
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics()
	m.RecordCall(500, true)        // falls in every bucket
	m.RecordCall(50_000_000, true) // falls in buckets >= 100ms

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.LatencyHistogram[len(snap.LatencyHistogram)-1])
	assert.Equal(t, uint64(1), snap.LatencyHistogram[0])
}

func TestMetricsUptimeAdvancesAfterStop(t *testing.T) {
	m := NewMetrics()
	time.Sleep(2 * time.Millisecond)
	m.Stop()

	snap := m.Snapshot()
	assert.Greater(t, snap.UptimeNs, uint64(0))
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordCall(1000, true)
	m.Reset()

	snap := m.Snapshot()
	assert.Equal(t, uint64(0), snap.RPCCalls)
}

func TestMetricsObserverDelegates(t *testing.T) {
	m := NewMetrics()
	obs := NewMetricsObserver(m)

	obs.ObserveCall("filesystem", "getfsinfo", 1000, 0)
	obs.ObserveBytesIn(10)
	obs.ObserveBytesOut(20)
	obs.ObserveScriptRun(500_000, true)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RPCCalls)
	assert.Equal(t, uint64(10), snap.BytesIn)
	assert.Equal(t, uint64(20), snap.BytesOut)
	assert.Equal(t, uint64(1), snap.ScriptRuns)
}

func TestNoOpObserverDoesNothing(t *testing.T) {
	var obs NoOpObserver
	require.NotPanics(t, func() {
		obs.ObserveCall("x", "y", 1, 0)
		obs.ObserveBytesIn(1)
		obs.ObserveBytesOut(1)
		obs.ObserveScriptRun(1, true)
	})
}
