package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/pinauth"
	"github.com/MrEthical07/pinauth/metrics/export/internaldefs"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot pinauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() pinauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := pinauth.MetricsSnapshot{
		Counters:   make(map[pinauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[pinauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collectInt64(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterObservesCountersAndHistogram(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("pinauth-test")

	src := &fakeSource{
		snapshot: pinauth.MetricsSnapshot{
			Counters: map[pinauth.MetricID]uint64{
				pinauth.MetricPINVerifySuccess: 3,
				pinauth.MetricPINLockTriggered: 1,
			},
			Histograms: map[pinauth.MetricID][]uint64{
				pinauth.MetricVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 2,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	got := collectInt64(t, reader)
	if got["pinauth_pin_verify_success_total"] != 3 {
		t.Fatalf("verify success = %d, want 3", got["pinauth_pin_verify_success_total"])
	}
	if got["pinauth_pin_lock_triggered_total"] != 1 {
		t.Fatalf("lock triggered = %d, want 1", got["pinauth_pin_lock_triggered_total"])
	}
	if got[internaldefs.AuditDroppedName] != 2 {
		t.Fatalf("audit dropped = %d, want 2", got[internaldefs.AuditDroppedName])
	}
	if got["pinauth_verify_latency_seconds_bucket_le_0_01"] != 2 {
		t.Fatalf("cumulative bucket = %d, want 2", got["pinauth_verify_latency_seconds_bucket_le_0_01"])
	}
	if got["pinauth_verify_latency_seconds_count"] != 8 {
		t.Fatalf("histogram count = %d, want 8", got["pinauth_verify_latency_seconds_count"])
	}
}

func TestExporterSkipsAbsentHistogram(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: pinauth.MetricsSnapshot{
		Counters: map[pinauth.MetricID]uint64{pinauth.MetricSessionIssued: 4},
	}}

	exp, err := NewExporterFromSource(provider.Meter("pinauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	got := collectInt64(t, reader)
	if got["pinauth_session_issued_total"] != 4 {
		t.Fatalf("session issued = %d, want 4", got["pinauth_session_issued_total"])
	}
	if _, ok := got["pinauth_verify_latency_seconds_count"]; ok {
		t.Fatal("histogram must not be observed when absent from the snapshot")
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("pinauth-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("nil source: got %v, want ErrNilSource", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter: got %v, want ErrNilMeter", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("nil engine: got %v, want ErrNilSource", err)
	}

	var exp *Exporter
	if err := exp.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: pinauth.MetricsSnapshot{
			Counters: map[pinauth.MetricID]uint64{pinauth.MetricPINVerifySuccess: 1},
			Histograms: map[pinauth.MetricID][]uint64{
				pinauth.MetricVerifyLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("pinauth-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[pinauth.MetricPINVerifySuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
