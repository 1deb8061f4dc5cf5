package frp

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes Prometheus-compatible counters and gauges for a Context's
// propagation behavior, all namespaced "reactivego_".
//
// Metrics exposed:
//   - transactions_total (counter): committed vs. aborted outermost transactions.
//   - nodes_total (gauge): live node count in the table.
//   - propagation_duration_seconds (histogram): wall time of one commit's
//     topological pass, excluding listener delivery.
//   - dirty_set_size (histogram): size of the expanded dirty closure per commit.
//   - listener_panics_total (counter): recovered panics from listener callbacks.
type Metrics struct {
	transactions        *prometheus.CounterVec
	nodes               prometheus.Gauge
	propagationDuration prometheus.Histogram
	dirtySetSize        prometheus.Histogram
	listenerPanics      prometheus.Counter

	mu      sync.RWMutex
	enabled bool
}

// NewMetrics creates and registers Context metrics against registry (the
// default global registerer if nil).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	m := &Metrics{enabled: true}

	m.transactions = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "reactivego",
		Name:      "transactions_total",
		Help:      "Outermost transactions, labeled by outcome (committed, aborted).",
	}, []string{"outcome"})

	m.nodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "reactivego",
		Name:      "nodes_total",
		Help:      "Current number of live nodes in the node table.",
	})

	m.propagationDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reactivego",
		Name:      "propagation_duration_seconds",
		Help:      "Wall-clock duration of one transaction's topological propagation pass.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	m.dirtySetSize = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "reactivego",
		Name:      "dirty_set_size",
		Help:      "Size of the expanded dirty closure visited during a commit.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	m.listenerPanics = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "reactivego",
		Name:      "listener_panics_total",
		Help:      "Listener callbacks that panicked and were recovered during delivery.",
	})

	return m
}

func (m *Metrics) RecordTransaction(outcome string) {
	if !m.isEnabled() {
		return
	}
	m.transactions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetNodeCount(n int) {
	if !m.isEnabled() {
		return
	}
	m.nodes.Set(float64(n))
}

func (m *Metrics) RecordPropagation(d time.Duration) {
	if !m.isEnabled() {
		return
	}
	m.propagationDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordDirtySetSize(n int) {
	if !m.isEnabled() {
		return
	}
	m.dirtySetSize.Observe(float64(n))
}

func (m *Metrics) RecordListenerPanic() {
	if !m.isEnabled() {
		return
	}
	m.listenerPanics.Inc()
}

func (m *Metrics) isEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Disable stops recording without unregistering collectors; useful in tests
// that construct many short-lived Contexts against one registry.
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}
