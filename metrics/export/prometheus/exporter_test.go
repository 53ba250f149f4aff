package prometheus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/pinauth"
	"github.com/MrEthical07/pinauth/store/memory"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot pinauth.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() pinauth.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func populated() fakeSource {
	return fakeSource{
		snapshot: pinauth.MetricsSnapshot{
			Counters: map[pinauth.MetricID]uint64{
				pinauth.MetricPINVerifySuccess: 7,
				pinauth.MetricPINLockTriggered: 1,
			},
			Histograms: map[pinauth.MetricID][]uint64{
				pinauth.MetricVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	}
}

func scrape(t *testing.T, exp *Exporter) (string, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String(), rec
}

func TestCollectorSilentWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: pinauth.MetricsSnapshot{
			Counters:   map[pinauth.MetricID]uint64{},
			Histograms: map[pinauth.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(exp.Collector()); n != 0 {
		t.Fatalf("expected no series for disabled metrics, got %d", n)
	}

	body, rec := scrape(t, exp)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if strings.Contains(body, "pinauth_") {
		t.Fatalf("expected no pinauth series, got:\n%s", body)
	}
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	c := NewExporterFromSource(populated()).Collector()

	expected := `
# HELP pinauth_pin_verify_success_total Successful PIN verifications.
# TYPE pinauth_pin_verify_success_total counter
pinauth_pin_verify_success_total 7
# HELP pinauth_audit_dropped_total Dropped audit events due to dispatcher backpressure.
# TYPE pinauth_audit_dropped_total counter
pinauth_audit_dropped_total 2
# HELP pinauth_verify_latency_seconds VerifyPIN latency histogram.
# TYPE pinauth_verify_latency_seconds histogram
pinauth_verify_latency_seconds_bucket{le="0.005"} 1
pinauth_verify_latency_seconds_bucket{le="0.01"} 3
pinauth_verify_latency_seconds_bucket{le="0.025"} 6
pinauth_verify_latency_seconds_bucket{le="0.05"} 10
pinauth_verify_latency_seconds_bucket{le="0.1"} 15
pinauth_verify_latency_seconds_bucket{le="0.25"} 21
pinauth_verify_latency_seconds_bucket{le="0.5"} 28
pinauth_verify_latency_seconds_bucket{le="+Inf"} 36
pinauth_verify_latency_seconds_sum 0
pinauth_verify_latency_seconds_count 36
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"pinauth_pin_verify_success_total", "pinauth_audit_dropped_total", "pinauth_verify_latency_seconds"); err != nil {
		t.Fatal(err)
	}

	if n := testutil.CollectAndCount(c, "pinauth_route_deny_total"); n != 1 {
		t.Fatalf("expected zero-valued counters to be published, got %d series", n)
	}
}

func TestCollectorPassesPedanticRegistry(t *testing.T) {
	reg := promclient.NewPedanticRegistry()
	if err := reg.Register(NewExporterFromSource(populated()).Collector()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather: %v", err)
	}
}

func TestHandlerScrape(t *testing.T) {
	body, rec := scrape(t, NewExporterFromSource(populated()))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	for _, want := range []string{
		"pinauth_pin_verify_success_total 7",
		"pinauth_pin_lock_triggered_total 1",
		"pinauth_verify_latency_seconds_count 36",
		"pinauth_audit_dropped_total 2",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape, got:\n%s", want, body)
		}
	}
	if strings.Contains(body, "go_goroutines") {
		t.Fatalf("exporter registry must hold only pinauth series")
	}
}

func TestExporterReadsLiveEngine(t *testing.T) {
	cfg := pinauth.DefaultConfig()
	cfg.Session.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Metrics.Enabled = true

	engine, err := pinauth.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New()).
		WithCapabilityProvider(pinauth.CapabilityFunc(func(context.Context, string, string) (bool, error) {
			return false, nil
		})).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer engine.Close()

	if _, err := engine.VerifyPIN(context.Background(), "emp-1", "bad"); err != nil {
		t.Fatalf("VerifyPIN: %v", err)
	}

	expected := `
# HELP pinauth_pin_invalid_format_total PIN attempts rejected for format before any store access.
# TYPE pinauth_pin_invalid_format_total counter
pinauth_pin_invalid_format_total 1
`
	if err := testutil.GatherAndCompare(NewExporter(engine).Registry(), strings.NewReader(expected),
		"pinauth_pin_invalid_format_total"); err != nil {
		t.Fatal(err)
	}
}

func BenchmarkCollect(b *testing.B) {
	reg := NewExporterFromSource(populated()).Registry()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := reg.Gather(); err != nil {
			b.Fatal(err)
		}
	}
}
