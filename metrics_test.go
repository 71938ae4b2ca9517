package accountauth

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIncAndValue(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricRegisterSuccess)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success counter = %d, want 2", got)
	}
	if got := m.Value(MetricRegisterSuccess); got != 1 {
		t.Fatalf("register success counter = %d, want 1", got)
	}
	if got := m.Value(MetricLoginFailure); got != 0 {
		t.Fatalf("untouched counter = %d, want 0", got)
	}
}

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricLoginSuccess)
	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("disabled metrics counted: %d", got)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	if nilMetrics.Enabled() {
		t.Fatal("nil metrics must report disabled")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 8
	const perWorker = 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricSessionIssued)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricSessionIssued); got != workers*perWorker {
		t.Fatalf("counter = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricsLatencyHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Observe(MetricLoginLatency, 3*time.Millisecond)
	m.Observe(MetricLoginLatency, 30*time.Millisecond)
	m.Observe(MetricLoginLatency, time.Second)

	snap := m.Snapshot()
	buckets, ok := snap.Histograms[MetricLoginLatency]
	if !ok {
		t.Fatal("latency histogram missing from snapshot")
	}
	if buckets[0] != 1 || buckets[2] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket spread: %v", buckets)
	}

	// Only the login latency metric has a histogram.
	m.Observe(MetricRegisterSuccess, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricRegisterSuccess]; ok {
		t.Fatal("unexpected histogram for counter-only metric")
	}
}

func TestMetricsSnapshotIsolated(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)

	snap := m.Snapshot()
	snap.Counters[MetricLoginSuccess] = 999

	if got := m.Value(MetricLoginSuccess); got != 1 {
		t.Fatalf("snapshot mutation leaked into live metrics: %d", got)
	}
}
