package pinauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricPINVerifySuccess counts successful PIN verifications.
	MetricPINVerifySuccess MetricID = iota
	// MetricPINInvalid counts wrong PINs that did not trigger a lock.
	MetricPINInvalid
	// MetricPINInvalidFormat counts attempts rejected before any store access.
	MetricPINInvalidFormat
	// MetricPINNotEnrolled counts attempts for principals with no credential.
	MetricPINNotEnrolled
	// MetricPINDisabled counts attempts against deactivated credentials.
	MetricPINDisabled
	// MetricPINLocked counts attempts refused inside a lockout window.
	MetricPINLocked
	// MetricPINLockTriggered counts failures that started a lockout window.
	MetricPINLockTriggered
	// MetricPINThrottled counts attempts refused by the per-IP throttle.
	MetricPINThrottled
	// MetricStoreFailure counts credential store faults.
	MetricStoreFailure
	// MetricCredentialIssued counts CreateOrReplaceCredential writes.
	MetricCredentialIssued
	// MetricCredentialDeactivated counts DeactivateCredential writes.
	MetricCredentialDeactivated
	// MetricCredentialUnlocked counts UnlockCredential writes.
	MetricCredentialUnlocked
	// MetricSessionIssued counts issued session tokens.
	MetricSessionIssued
	// MetricSessionInvalid counts session tokens rejected by ValidateSession.
	MetricSessionInvalid
	// MetricSessionDestroyed counts DestroySession calls.
	MetricSessionDestroyed
	// MetricSecondFactorRequired counts logins that hit the second-factor gate.
	MetricSecondFactorRequired
	// MetricSecondFactorTOTPSuccess counts gates passed with a TOTP.
	MetricSecondFactorTOTPSuccess
	// MetricSecondFactorBackupCodeUsed counts gates passed with a backup code.
	MetricSecondFactorBackupCodeUsed
	// MetricSecondFactorFailure counts rejected second-factor codes.
	MetricSecondFactorFailure
	// MetricSecondFactorThrottled counts challenges refused for a spent attempt budget.
	MetricSecondFactorThrottled
	// MetricRouteAllow counts allowed route checks.
	MetricRouteAllow
	// MetricRouteRedirect counts route checks answered with a redirect.
	MetricRouteRedirect
	// MetricRouteDeny counts route checks denied for lack of any capability.
	MetricRouteDeny
	// MetricVerifyLatency is the VerifyPIN latency histogram.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. A nil or disabled Metrics ignores all
// writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
// Histogram buckets are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics builds a Metrics from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only [MetricVerifyLatency] carries a
// histogram; other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, plus the latency histogram when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricVerifyLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
