package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the resourcefactory cache's Prometheus instrumentation,
// wired into the cache core, loader, and reloader (C4/C3/C5 of the
// factory design).
type Metrics struct {
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	ResourcesLoaded prometheus.Gauge
	LoadDuration    *prometheus.HistogramVec
	ReloadsTotal    *prometheus.CounterVec
	TypesRegistered prometheus.Gauge
	Subscribers     prometheus.Gauge
}

// NewMetrics creates the resourcefactory metric set, unregistered with any
// prometheus.Registerer. Callers obtain a wired, registered instance via
// NewMetricsRegistry.
func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "resourcefactory",
				Subsystem: "cache",
				Name:      "hits_total",
				Help:      "Get calls resolved from the primary index without invoking the loader",
			},
		),

		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "resourcefactory",
				Subsystem: "cache",
				Name:      "misses_total",
				Help:      "Get calls that fell through to the loader",
			},
		),

		ResourcesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "resourcefactory",
				Subsystem: "cache",
				Name:      "resources_loaded",
				Help:      "Current number of entries in the primary index",
			},
		),

		LoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "resourcefactory",
				Subsystem: "loader",
				Name:      "load_duration_seconds",
				Help:      "Time spent filling the staging buffer, by backend",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"backend"},
		),

		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "resourcefactory",
				Subsystem: "reload",
				Name:      "total",
				Help:      "Reload attempts, by outcome",
			},
			[]string{"result"},
		),

		TypesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "resourcefactory",
				Subsystem: "registry",
				Name:      "types_registered",
				Help:      "Number of extensions currently registered with RegisterType",
			},
		),

		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "resourcefactory",
				Subsystem: "reload",
				Name:      "subscribers",
				Help:      "Number of reload subscribers currently registered",
			},
		),
	}
}

// RecordCacheHit increments the cache-hit counter.
func (m *Metrics) RecordCacheHit() {
	m.CacheHits.Inc()
}

// RecordCacheMiss increments the cache-miss counter.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// SetResourcesLoaded sets the current primary-index size.
func (m *Metrics) SetResourcesLoaded(n int) {
	m.ResourcesLoaded.Set(float64(n))
}

// RecordLoadDuration records how long a backend took to fill the staging buffer.
func (m *Metrics) RecordLoadDuration(backend string, d time.Duration) {
	m.LoadDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// RecordReload increments the reload counter for the given result.
func (m *Metrics) RecordReload(result string) {
	m.ReloadsTotal.WithLabelValues(result).Inc()
}

// SetTypesRegistered sets the current type-registry size.
func (m *Metrics) SetTypesRegistered(n int) {
	m.TypesRegistered.Set(float64(n))
}

// SetSubscribers sets the current reload-subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	m.Subscribers.Set(float64(n))
}
