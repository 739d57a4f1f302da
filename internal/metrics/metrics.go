package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for alumnet
type Metrics struct {
	// Delivery counters
	MessagesSentTotal   *prometheus.CounterVec
	MessagesFailedTotal *prometheus.CounterVec
	SendRetriesTotal    *prometheus.CounterVec
	TestSendsTotal      *prometheus.CounterVec

	// Dispatch
	DispatchesTotal          *prometheus.CounterVec
	DispatchDurationSeconds  *prometheus.HistogramVec
	DispatchesActive         prometheus.Gauge
	AudienceResolutionsTotal *prometheus.CounterVec
	AudienceSize             prometheus.Histogram

	// Notification requests by terminal state
	NotificationsTotal *prometheus.CounterVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		MessagesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_messages_sent_total",
				Help: "Total number of messages accepted by the transport",
			},
			[]string{"listing_type"},
		),
		MessagesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_messages_failed_total",
				Help: "Total number of recipients that could not be delivered",
			},
			[]string{"listing_type", "error_type"},
		),
		SendRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_send_retries_total",
				Help: "Total number of extra attempts after temporary failures",
			},
			[]string{"listing_type"},
		),
		TestSendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_test_sends_total",
				Help: "Total number of test sends to administrators",
			},
			[]string{"result"},
		),

		DispatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_dispatches_total",
				Help: "Total number of finished dispatches",
			},
			[]string{"listing_type", "outcome"},
		),
		DispatchDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alumnet_dispatch_duration_seconds",
				Help:    "Wall time of a dispatch in seconds",
				Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
			},
			[]string{"listing_type"},
		),
		DispatchesActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alumnet_dispatches_active",
				Help: "Number of dispatches currently in flight",
			},
		),
		AudienceResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_audience_resolutions_total",
				Help: "Total number of audience resolutions",
			},
			[]string{"result"},
		),
		AudienceSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "alumnet_audience_size",
				Help:    "Number of recipients per resolved audience",
				Buckets: prometheus.ExponentialBuckets(1, 4, 9),
			},
		),

		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_notifications_total",
				Help: "Total number of notification requests by terminal state",
			},
			[]string{"state"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "alumnet_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alumnet_api_errors_total",
				Help: "Total number of API errors",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alumnet_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "alumnet_goroutines",
				Help: "Number of active goroutines",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.MessagesSentTotal,
		m.MessagesFailedTotal,
		m.SendRetriesTotal,
		m.TestSendsTotal,
		m.DispatchesTotal,
		m.DispatchDurationSeconds,
		m.DispatchesActive,
		m.AudienceResolutionsTotal,
		m.AudienceSize,
		m.NotificationsTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncMessagesSent increments the sent message counter
func IncMessagesSent(listingType string) {
	if m := Global(); m != nil {
		m.MessagesSentTotal.WithLabelValues(listingType).Inc()
	}
}

// IncMessagesFailed increments the failed message counter
func IncMessagesFailed(listingType string, temporary bool) {
	if m := Global(); m != nil {
		errorType := "permanent"
		if temporary {
			errorType = "temporary"
		}
		m.MessagesFailedTotal.WithLabelValues(listingType, errorType).Inc()
	}
}

// IncSendRetries increments the retry counter
func IncSendRetries(listingType string) {
	if m := Global(); m != nil {
		m.SendRetriesTotal.WithLabelValues(listingType).Inc()
	}
}

// IncTestSends records a test send outcome
func IncTestSends(success bool) {
	if m := Global(); m != nil {
		result := "failed"
		if success {
			result = "success"
		}
		m.TestSendsTotal.WithLabelValues(result).Inc()
	}
}

// DispatchStarted marks a dispatch as in flight
func DispatchStarted() {
	if m := Global(); m != nil {
		m.DispatchesActive.Inc()
	}
}

// DispatchFinished records a finished dispatch
func DispatchFinished(listingType string, aborted bool, d time.Duration) {
	if m := Global(); m != nil {
		outcome := "completed"
		if aborted {
			outcome = "aborted"
		}
		m.DispatchesActive.Dec()
		m.DispatchesTotal.WithLabelValues(listingType, outcome).Inc()
		m.DispatchDurationSeconds.WithLabelValues(listingType).Observe(d.Seconds())
	}
}

// ObserveResolution records an audience resolution and its size
func ObserveResolution(count int, err error) {
	if m := Global(); m != nil {
		if err != nil {
			m.AudienceResolutionsTotal.WithLabelValues("error").Inc()
			return
		}
		m.AudienceResolutionsTotal.WithLabelValues("ok").Inc()
		m.AudienceSize.Observe(float64(count))
	}
}

// IncNotifications counts a notification request by terminal state
func IncNotifications(state string) {
	if m := Global(); m != nil {
		m.NotificationsTotal.WithLabelValues(state).Inc()
	}
}

// IncAPIErrors increments API error counter
func IncAPIErrors(errorType string) {
	if m := Global(); m != nil {
		m.APIErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
