package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPLatency          *prometheus.HistogramVec
	LifecycleTransitions *prometheus.CounterVec
	RealtimeSubscribers  prometheus.Gauge
	RealtimePublished    *prometheus.CounterVec
	SupabaseRequests     *prometheus.CounterVec
	SupabaseLatency      *prometheus.HistogramVec
	NotifierSends        *prometheus.CounterVec
	EventsDropped        *prometheus.CounterVec
	Errors               *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = newMetrics(namespace)
		prometheus.MustRegister(metricsInstance.collectors()...)
	})
	return metricsInstance
}

// NewUnregistered builds a fresh set of collectors that is not attached to
// the default registry. Tests use it to avoid the process-wide singleton.
func NewUnregistered(namespace string) *Metrics {
	return newMetrics(namespace)
}

func newMetrics(namespace string) *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		LifecycleTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Order and deposit status changes by kind and resulting status.",
		}, []string{"kind", "status"}),
		RealtimeSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_subscribers",
			Help:      "Currently connected realtime subscribers.",
		}),
		RealtimePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_published_total",
			Help:      "Realtime change events published by event type.",
		}, []string{"event_type"}),
		SupabaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "supabase_requests_total",
			Help:      "Total Supabase API requests by endpoint and status.",
		}, []string{"endpoint", "status"}),
		SupabaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "supabase_request_duration_seconds",
			Help:      "Latency distribution for Supabase API requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
		NotifierSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifier_sends_total",
			Help:      "Admin notifications sent by channel and outcome.",
		}, []string{"channel", "status"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Lifecycle events not queued for Kafka, by reason.",
		}, []string{"reason"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors grouped by component.",
		}, []string{"component"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.HTTPRequests,
		m.HTTPLatency,
		m.LifecycleTransitions,
		m.RealtimeSubscribers,
		m.RealtimePublished,
		m.SupabaseRequests,
		m.SupabaseLatency,
		m.NotifierSends,
		m.EventsDropped,
		m.Errors,
	}
}

// IncError bumps the error counter for a component. Safe on a nil receiver.
func (m *Metrics) IncError(component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component).Inc()
}

// IncEventDropped counts an event the producer could not queue. Safe on a nil receiver.
func (m *Metrics) IncEventDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}
