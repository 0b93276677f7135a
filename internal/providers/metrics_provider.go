package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"carebot/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncEvents(kind string)
	IncAnswersAccepted(questionType string)
	IncAnswersRejected(reason string)
	IncExternalRoutes()
	IncClassifierFailures()
	IncStaleInteractions()
	ObserveClassifierDuration(duration time.Duration)
	ObserveTransitionDuration(duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	eventsTotal        *prometheus.CounterVec
	answersAccepted    *prometheus.CounterVec
	answersRejected    *prometheus.CounterVec
	externalRoutes     prometheus.Counter
	classifierFailures prometheus.Counter
	staleInteractions  prometheus.Counter
	classifierDuration prometheus.Histogram
	transitionDuration prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncEvents(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *MetricsProvider) IncAnswersAccepted(questionType string) {
	m.answersAccepted.WithLabelValues(questionType).Inc()
}

func (m *MetricsProvider) IncAnswersRejected(reason string) {
	m.answersRejected.WithLabelValues(reason).Inc()
}

func (m *MetricsProvider) IncExternalRoutes() {
	m.externalRoutes.Inc()
}

func (m *MetricsProvider) IncClassifierFailures() {
	m.classifierFailures.Inc()
}

func (m *MetricsProvider) IncStaleInteractions() {
	m.staleInteractions.Inc()
}

func (m *MetricsProvider) ObserveClassifierDuration(duration time.Duration) {
	m.classifierDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) ObserveTransitionDuration(duration time.Duration) {
	m.transitionDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebot_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "carebot_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebot_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebot_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		eventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebot_events_total",
			Help: "Inbound questionnaire events by kind",
		}, []string{"kind"}),

		answersAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebot_answers_accepted_total",
			Help: "Accepted answers by question type",
		}, []string{"question_type"}),

		answersRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "carebot_answers_rejected_total",
			Help: "Rejected answers by validation reason",
		}, []string{"reason"}),

		externalRoutes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebot_external_routes_total",
			Help: "Messages routed to the support assistant",
		}),

		classifierFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebot_classifier_failures_total",
			Help: "Classifier errors and timeouts",
		}),

		staleInteractions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "carebot_stale_interactions_total",
			Help: "Button presses rejected due to a superseded prompt token",
		}),

		classifierDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "carebot_classifier_duration_seconds",
			Help:    "External classifier call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		transitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "carebot_transition_duration_seconds",
			Help:    "State machine transition duration in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                  {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration)  {}
func (n *noopMetrics) IncCacheHits()                                     {}
func (n *noopMetrics) IncCacheMisses()                                   {}
func (n *noopMetrics) IncEvents(_ string)                                {}
func (n *noopMetrics) IncAnswersAccepted(_ string)                       {}
func (n *noopMetrics) IncAnswersRejected(_ string)                       {}
func (n *noopMetrics) IncExternalRoutes()                                {}
func (n *noopMetrics) IncClassifierFailures()                            {}
func (n *noopMetrics) IncStaleInteractions()                             {}
func (n *noopMetrics) ObserveClassifierDuration(_ time.Duration)         {}
func (n *noopMetrics) ObserveTransitionDuration(_ time.Duration)         {}
