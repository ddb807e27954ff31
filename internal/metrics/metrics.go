package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramawatch",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dramawatch",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	CatalogRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramawatch",
		Name:      "catalog_requests_total",
		Help:      "Total requests to the drama catalog API by endpoint and result status.",
	}, []string{"endpoint", "status"})

	CatalogRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dramawatch",
		Name:      "catalog_request_duration_seconds",
		Help:      "Drama catalog request duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"endpoint"})

	CatalogAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "dramawatch",
		Name:      "catalog_available",
		Help:      "Whether a catalog endpoint is available (1) or blocked by circuit breaker (0).",
	}, []string{"endpoint"})

	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dramawatch",
		Name:      "cache_hits_total",
		Help:      "Total number of watch data cache hits.",
	})

	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dramawatch",
		Name:      "cache_misses_total",
		Help:      "Total number of watch data cache misses.",
	})

	WatchPagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramawatch",
		Name:      "watch_pages_total",
		Help:      "Total watch page renders by outcome.",
	}, []string{"outcome"})

	DownloadsResolvedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dramawatch",
		Name:      "downloads_resolved_total",
		Help:      "Total download link resolutions by outcome.",
	}, []string{"outcome"})

	ProgressUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dramawatch",
		Name:      "progress_updates_total",
		Help:      "Total playback progress writes.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		CatalogRequestsTotal,
		CatalogRequestDuration,
		CatalogAvailable,
		CacheHitsTotal,
		CacheMissesTotal,
		WatchPagesTotal,
		DownloadsResolvedTotal,
		ProgressUpdatesTotal,
	)
}
