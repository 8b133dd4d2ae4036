package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup outcome labels for LookupsProcessed.
const (
	StatusSuccess  = "success"
	StatusNotFound = "not_found"
	StatusFailure  = "failure"
)

type Metrics struct {
	LookupsProcessed *prometheus.CounterVec
	APIErrors        prometheus.Counter
	RequestSeconds   *prometheus.HistogramVec
	CacheHits        prometheus.Counter
	CacheFlushes     prometheus.Counter
	ResolvedRecords  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		LookupsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "jobmap_lookups_total",
			Help: "Total number of unique addresses looked up, by outcome.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "jobmap_provider_errors_total",
			Help: "Total number of lookups that ended with a geocoding provider error.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobmap_provider_request_duration_seconds",
			Help:    "Duration of rate-limited requests to the geocoding provider.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		CacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "jobmap_cache_hits_total",
			Help: "Unique addresses answered from the cache file.",
		}),
		CacheFlushes: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "jobmap_cache_flushes_total",
			Help: "Number of times the cache file was rewritten.",
		}),
		ResolvedRecords: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "jobmap_resolved_records",
			Help: "Filtered records that ended up with coordinates.",
		}),
	}
}
