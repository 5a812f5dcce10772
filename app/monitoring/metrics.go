// Package monitoring exposes Prometheus metrics for the HTTP surface, the
// triage passes and the scheduled jobs.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "replybot"

// Metrics owns a private registry. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	serviceInfo         *prometheus.GaugeVec

	passesTotal    *prometheus.CounterVec
	passDuration   prometheus.Histogram
	commentsTotal  *prometheus.CounterVec
	deliveryErrors *prometheus.CounterVec
	activeJobs     *prometheus.GaugeVec
}

func NewMetrics(version string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	m.serviceInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_info",
			Help:      "Service information",
		},
		[]string{"version"},
	)

	m.passesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triage_passes_total",
			Help:      "Triage passes by stop reason",
		},
		[]string{"stop_reason"},
	)

	m.passDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "triage_pass_duration_seconds",
			Help:      "Duration of triage passes",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	m.commentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_total",
			Help:      "Comments seen by triage passes, by outcome",
		},
		[]string{"outcome"},
	)

	m.deliveryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_errors_total",
			Help:      "Failures while posting replies or writing audit records",
		},
		[]string{"stage"},
	)

	m.activeJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Scheduled jobs currently registered",
		},
		[]string{"mode"},
	)

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.serviceInfo,
		m.passesTotal,
		m.passDuration,
		m.commentsTotal,
		m.deliveryErrors,
		m.activeJobs,
	)

	m.serviceInfo.WithLabelValues(version).Set(1)

	return m
}

// Middleware collects request counts and latencies
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.httpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		m.httpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Status(404) }
	}
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObservePass(stopReason string, duration time.Duration) {
	if m == nil {
		return
	}
	m.passesTotal.WithLabelValues(stopReason).Inc()
	m.passDuration.Observe(duration.Seconds())
}

func (m *Metrics) CommentOutcome(outcome string) {
	if m == nil {
		return
	}
	m.commentsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DeliveryError(stage string) {
	if m == nil {
		return
	}
	m.deliveryErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) SetActiveJobs(mode string, count int) {
	if m == nil {
		return
	}
	m.activeJobs.WithLabelValues(mode).Set(float64(count))
}
