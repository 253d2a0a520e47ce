// Package metrics records cart engine activity for Prometheus.
// All methods are safe on a nil *Metrics so tests and tools can skip registration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Merge outcomes.
const (
	MergeSynced     = "synced"      // merged cart pushed and guest slot cleared
	MergeEmpty      = "empty"       // nothing on either side
	MergePushFailed = "push_failed" // push failed, fell back
	MergeSkipped    = "skipped"     // session already merged
)

// Metrics holds the collectors for one engine instance.
type Metrics struct {
	gatewayCalls   *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	merges         *prometheus.CounterVec
	rollbacks      *prometheus.CounterVec
	staleIdentity  prometheus.Counter
}

// New registers the cart metrics on reg. A nil registerer yields a no-op Metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsync",
			Name:      "gateway_requests_total",
			Help:      "Cart backend requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cartsync",
			Name:      "gateway_request_duration_seconds",
			Help:      "Cart backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsync",
			Name:      "merges_total",
			Help:      "Guest cart merges by outcome.",
		}, []string{"outcome"}),
		rollbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsync",
			Name:      "rollbacks_total",
			Help:      "Optimistic cart mutations reverted after a persistence failure.",
		}, []string{"op"}),
		staleIdentity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cartsync",
			Name:      "stale_cart_identity_total",
			Help:      "Stored cart identities discarded after a 404.",
		}),
	}
	reg.MustRegister(m.gatewayCalls, m.gatewayLatency, m.merges, m.rollbacks, m.staleIdentity)
	return m
}

// ObserveGateway records one backend call.
func (m *Metrics) ObserveGateway(op string, d time.Duration, err error) {
	if m == nil || m.gatewayCalls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayCalls.WithLabelValues(normalizeLabel(op), outcome).Inc()
	m.gatewayLatency.WithLabelValues(normalizeLabel(op)).Observe(d.Seconds())
}

// IncMerge counts a merge attempt by outcome.
func (m *Metrics) IncMerge(outcome string) {
	if m == nil || m.merges == nil {
		return
	}
	m.merges.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncRollback counts a reverted optimistic mutation.
func (m *Metrics) IncRollback(op string) {
	if m == nil || m.rollbacks == nil {
		return
	}
	m.rollbacks.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncStaleIdentity counts a cart identity dropped after a 404.
func (m *Metrics) IncStaleIdentity() {
	if m == nil || m.staleIdentity == nil {
		return
	}
	m.staleIdentity.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
