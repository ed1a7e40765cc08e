// Package metrics provides Prometheus metrics for the ladder ranking service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome case labels for applied matches.
const (
	CaseNoChange     = "no_change"
	CaseSwap         = "swap"
	CaseDrawExchange = "draw_exchange"
	CaseReshuffle    = "reshuffle"
)

// Staged-write histogram buckets: most matches touch 0 or 2 members,
// reshuffles touch up to the full club.
var stagedWriteBuckets = []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256} //nolint:gochecknoglobals // shared bucket layout

// Manager manages all Prometheus metrics for the ladder service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Core business metrics
	matchesApplied  *prometheus.CounterVec
	matchErrors     prometheus.Counter
	duplicateMatch  prometheus.Counter
	stagedWrites    prometheus.Counter
	stagedPerMatch  prometheus.Histogram
	integrityChecks *prometheus.CounterVec
	repairs         prometheus.Counter

	// Operational health metrics
	memberCount prometheus.Gauge

	// Store metrics
	storeUpdateLatency prometheus.Histogram
	storeQueryLatency  prometheus.Histogram

	// System performance metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ladder",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := registrar{registerer: m.registry}

	m.matchesApplied = factory.counterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_applied_total",
		Help:      "Match outcomes applied, partitioned by displacement case.",
	}, []string{"case"})

	m.matchErrors = factory.counter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "match_errors_total",
		Help:      "Match applications aborted with an error.",
	})

	m.duplicateMatch = factory.counter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_duplicate_total",
		Help:      "Match applications skipped as already-seen match IDs.",
	})

	m.stagedWrites = factory.counter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "staged_writes_total",
		Help:      "Members moved through placeholder ranks.",
	})

	m.stagedPerMatch = factory.histogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "staged_writes_per_apply",
		Help:      "Members staged per permutation update.",
		Buckets:   stagedWriteBuckets,
	})

	m.integrityChecks = factory.counterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "integrity_checks_total",
		Help:      "Integrity validations, partitioned by result.",
	}, []string{"result"})

	m.repairs = factory.counter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repairs_total",
		Help:      "Explicit ranking repair runs.",
	})

	m.memberCount = factory.gauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "members",
		Help:      "Members currently on the ladder.",
	})

	m.storeUpdateLatency = factory.histogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_update_latency_ms",
		Help:      "Store write-transaction latency in milliseconds.",
		Buckets:   m.histogramBuckets,
	})

	m.storeQueryLatency = factory.histogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_query_latency_ms",
		Help:      "Store read-transaction latency in milliseconds.",
		Buckets:   m.histogramBuckets,
	})

	m.systemMemoryUsage = factory.gauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current heap allocation in bytes.",
	})

	m.systemGoroutineCount = factory.gauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Current number of goroutines.",
	})

	m.systemGCPauseTime = factory.histogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_ms",
		Help:      "Average GC pause time in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
}

// registrar is a tiny registration helper bound to the manager's registry.
type registrar struct {
	registerer prometheus.Registerer
}

func (f registrar) counter(opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	f.registerer.MustRegister(c)
	return c
}

func (f registrar) counterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	f.registerer.MustRegister(c)
	return c
}

func (f registrar) gauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	f.registerer.MustRegister(g)
	return g
}

func (f registrar) histogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	f.registerer.MustRegister(h)
	return h
}

// RecordMatchApplied counts an applied match by displacement case.
func RecordMatchApplied(caseLabel string) {
	if globalManager.enabled {
		globalManager.matchesApplied.WithLabelValues(caseLabel).Inc()
	}
}

// RecordMatchError counts a match application aborted with an error.
func RecordMatchError() {
	if globalManager.enabled {
		globalManager.matchErrors.Inc()
	}
}

// RecordMatchDuplicate counts a match skipped as a duplicate match ID.
func RecordMatchDuplicate() {
	if globalManager.enabled {
		globalManager.duplicateMatch.Inc()
	}
}

// RecordStagedWrites counts members staged through placeholder ranks
// during one permutation update.
func RecordStagedWrites(n int) {
	if globalManager.enabled {
		globalManager.stagedWrites.Add(float64(n))
		globalManager.stagedPerMatch.Observe(float64(n))
	}
}

// RecordIntegrityCheck counts an integrity validation by its result.
func RecordIntegrityCheck(ok bool) {
	if globalManager.enabled {
		result := "ok"
		if !ok {
			result = "violation"
		}
		globalManager.integrityChecks.WithLabelValues(result).Inc()
	}
}

// RecordRepair counts an explicit repair run.
func RecordRepair() {
	if globalManager.enabled {
		globalManager.repairs.Inc()
	}
}

// UpdateMemberCount sets the current ladder size gauge.
func UpdateMemberCount(count int) {
	if globalManager.enabled {
		globalManager.memberCount.Set(float64(count))
	}
}

// RecordStoreUpdateLatency records a write-transaction latency in milliseconds.
func RecordStoreUpdateLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.storeUpdateLatency.Observe(latencyMs)
	}
}

// RecordStoreQueryLatency records a read-transaction latency in milliseconds.
func RecordStoreQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.storeQueryLatency.Observe(latencyMs)
	}
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records an average GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
