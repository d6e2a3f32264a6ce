package mailgate

import "sync/atomic"

// MetricID identifies one counter in the in-process metrics block.
type MetricID uint16

const (
	// MetricLoginStarted counts successful login starts (challenge posed).
	MetricLoginStarted MetricID = iota
	// MetricLoginFailure counts login starts the platform rejected.
	MetricLoginFailure
	// MetricTokensIssued counts accepted challenge answers.
	MetricTokensIssued
	// MetricAnswerRejected counts rejected challenge answers.
	MetricAnswerRejected
	// MetricRefreshSuccess counts honored refresh exchanges.
	MetricRefreshSuccess
	// MetricRefreshFailure counts refused or failed refresh exchanges.
	MetricRefreshFailure
	// MetricVerifySuccess counts access credentials that verified.
	MetricVerifySuccess
	// MetricVerifyFailure counts access credentials that did not.
	MetricVerifyFailure
	// MetricSignOut counts sign-outs with a revoked refresh token.
	MetricSignOut

	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds one atomic counter per MetricID. When disabled, every
// operation is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// NewMetrics creates a Metrics block.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// Snapshot deep-copies the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{Counters: make(map[MetricID]uint64, metricIDCount)}
	if m == nil {
		return snap
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		snap.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return snap
}
