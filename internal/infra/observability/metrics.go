package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration      *prometheus.HistogramVec
	externalErrors       *prometheus.CounterVec
	cacheHits            *prometheus.CounterVec
	cacheMisses          *prometheus.CounterVec
	transactionMutations *prometheus.CounterVec
	authEvents           *prometheus.CounterVec
	eventsPublished      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bfa_request_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_external_errors_total",
				Help: "Total errors from external backends.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		transactionMutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_transaction_mutations_total",
				Help: "Transactions created, updated and deleted.",
			},
			[]string{"action"},
		),
		authEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_auth_events_total",
				Help: "Authentication flows by outcome.",
			},
			[]string{"flow", "outcome"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bfa_events_published_total",
				Help: "Domain events handed to the event bus.",
			},
			[]string{"routing_key", "status"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrTransactionMutation counts a successful create, update or delete.
func (m *Metrics) IncrTransactionMutation(action string) {
	m.transactionMutations.WithLabelValues(action).Inc()
}

// IncrAuthEvent counts an auth flow outcome ("success" or "failure").
func (m *Metrics) IncrAuthEvent(flow, outcome string) {
	m.authEvents.WithLabelValues(flow, outcome).Inc()
}

// IncrEventPublished counts a publish attempt ("ok" or "error").
func (m *Metrics) IncrEventPublished(routingKey, status string) {
	m.eventsPublished.WithLabelValues(routingKey, status).Inc()
}

// ObserveCacheSize exports the live entry count of the named cache as
// bfa_cache_entries. size is read on every scrape.
func (m *Metrics) ObserveCacheSize(cache string, size func() int) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "bfa_cache_entries",
			Help:        "Live entries per in-memory cache.",
			ConstLabels: prometheus.Labels{"cache": cache},
		},
		func() float64 { return float64(size()) },
	))
}

// CacheHitRate returns hits / (hits + misses) for the named cache.
func (m *Metrics) CacheHitRate(cache string) float64 {
	hits := getCounterValue(m.cacheHits, cache)
	misses := getCounterValue(m.cacheMisses, cache)
	if hits+misses == 0 {
		return 0
	}
	return hits / (hits + misses)
}

// TransactionMutations returns the cumulative count for an action.
func (m *Metrics) TransactionMutations(action string) float64 {
	return getCounterValue(m.transactionMutations, action)
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
