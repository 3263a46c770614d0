package authflow

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter.
type MetricID uint16

const (
	// MetricLoginSuccess counts interactive logins that stored a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected interactive logins.
	MetricLoginFailure
	// MetricRateLimited counts attempts refused by the attempt limiter.
	MetricRateLimited
	// MetricValidationRejected counts inputs refused before any network call.
	MetricValidationRejected
	// MetricRegisterSuccess counts accepted registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts rejected registrations.
	MetricRegisterFailure
	// MetricOTPVerifySuccess counts verified one-time passcodes.
	MetricOTPVerifySuccess
	// MetricOTPVerifyFailure counts rejected one-time passcodes.
	MetricOTPVerifyFailure
	// MetricRegistrationComplete counts completed registrations.
	MetricRegistrationComplete
	// MetricPasswordResetRequest counts accepted password reset requests.
	MetricPasswordResetRequest
	// MetricPasswordResetSuccess counts completed password resets.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts failed reset requests and completions.
	MetricPasswordResetFailure
	// MetricRefreshSuccess counts access token refreshes.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refreshes that logged the user out.
	MetricRefreshFailure
	// MetricSessionRestored counts session checks that found a usable session.
	MetricSessionRestored
	// MetricSessionMissing counts session checks that ended logged out.
	MetricSessionMissing
	// MetricProfileRefreshFailed counts profile fetches the server rejected.
	MetricProfileRefreshFailed
	// MetricLogout counts completed logouts.
	MetricLogout
	// MetricLogoutFailure counts logouts that left the user signed in.
	MetricLogoutFailure
	// MetricGuardRejected counts events dropped by a transition guard.
	MetricGuardRejected
	// MetricEventIgnored counts events the current state does not accept.
	MetricEventIgnored
	// MetricStaleResult counts invocation results that arrived after their state was left.
	MetricStaleResult
	// MetricOperationTimeout counts client calls that hit their timeout.
	MetricOperationTimeout
	// MetricBackgroundRefresh counts refreshes started by the background refresher.
	MetricBackgroundRefresh
	// MetricOperationLatency is the latency histogram of settled client calls.
	MetricOperationLatency
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

// Metrics holds lock-free counters and one latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of [Metrics].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a metrics set. A disabled set ignores every write.
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

// Observe records d in the histogram id. Only [MetricOperationLatency] has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricOperationLatency {
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

// Snapshot copies every counter, and the histogram when enabled.
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
		if id == MetricOperationLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricOperationLatency].buckets[i])
		}
		s.Histograms[MetricOperationLatency] = buckets
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
