package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests            *prometheus.CounterVec
	CounterHandleRequestPanic  prometheus.Counter
	CounterRateLimitedRequests prometheus.Counter
	CounterPostsCreated        prometheus.Counter
	CounterPostsUpdated        prometheus.Counter
	CounterPostsDeleted        prometheus.Counter
	CounterPostLikes           prometheus.Counter
	CounterSlugConflicts       prometheus.Counter
	CounterPostCacheHits       prometheus.Counter
	CounterPostCacheMisses     prometheus.Counter
	CounterImagesStored        prometheus.Counter
	CounterImagesDeleted       prometheus.Counter
	CounterImagesRejected      *prometheus.CounterVec

	// gauges
	GaugeRequests   prometheus.Gauge
	GaugeLifeSignal prometheus.Gauge

	// histograms
	HistogramRequestDuration *prometheus.HistogramVec
}

func NewTestManager() *Manager {
	return NewManager("engblog", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("engblog", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterImagesRejected := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "images_rejected",
		Help:      "The total number of rejected image uploads",
	}, []string{"reason"})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugeLifeSignal := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "life_signal",
		Help:      "Shows whether the service is alive",
	})

	histogramRequestDuration := factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of response time for requests in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method", "status_code"})

	return &Manager{
		CounterRequests:            counterRequests,
		CounterHandleRequestPanic:  counter("handle_request_panic", "The total number of serve request panics"),
		CounterRateLimitedRequests: counter("rate_limited_requests", "The total number of rate limited requests"),
		CounterPostsCreated:        counter("posts_created", "The total number of created blog posts"),
		CounterPostsUpdated:        counter("posts_updated", "The total number of updated blog posts"),
		CounterPostsDeleted:        counter("posts_deleted", "The total number of deleted blog posts"),
		CounterPostLikes:           counter("post_likes", "The total number of blog post likes"),
		CounterSlugConflicts:       counter("slug_conflicts", "The total number of slug collisions detected on write"),
		CounterPostCacheHits:       counter("post_cache_hits", "The total number of post cache hits"),
		CounterPostCacheMisses:     counter("post_cache_misses", "The total number of post cache misses"),
		CounterImagesStored:        counter("images_stored", "The total number of stored images"),
		CounterImagesDeleted:       counter("images_deleted", "The total number of deleted images"),
		CounterImagesRejected:      counterImagesRejected,
		GaugeRequests:              gaugeRequests,
		GaugeLifeSignal:            gaugeLifeSignal,
		HistogramRequestDuration:   histogramRequestDuration,
	}
}
