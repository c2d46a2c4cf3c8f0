// Package metrics exposes Prometheus collectors for the HTTP layer and the report pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "mail_digest"

// Metrics holds Prometheus metrics collectors
type Metrics struct {
	registry prometheus.Registerer
	gatherer prometheus.Gatherer

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight prometheus.Gauge

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	fetchedMessages prometheus.Counter
	fallbackDigests prometheus.Counter
	sendsTotal      *prometheus.CounterVec
	runsInProgress  prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg uses a private registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,
		gatherer: reg,
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path", "status"},
		),
		requestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_runs_total",
				Help:      "Report pipeline runs by trigger and outcome",
			},
			[]string{"trigger", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_run_duration_seconds",
				Help:      "Report pipeline run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~7m
			},
			[]string{"trigger"},
		),
		fetchedMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetched_messages_total",
				Help:      "Messages fetched from the mailbox",
			},
		),
		fallbackDigests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_digests_total",
				Help:      "Digests produced by the fallback path instead of the summarizer",
			},
		),
		sendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "emails_sent_total",
				Help:      "Outbound email attempts by result",
			},
			[]string{"result"},
		),
		runsInProgress: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "report_runs_in_progress",
				Help:      "1 while a report run is executing",
			},
		),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.requestsInFlight,
		m.runsTotal,
		m.runDuration,
		m.fetchedMessages,
		m.fallbackDigests,
		m.sendsTotal,
		m.runsInProgress,
	)

	return m
}

// Middleware records request count, latency and in-flight requests.
// The path label is the matched route template so IDs do not explode cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.requestsInFlight.Inc()
			defer m.requestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}

			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			labels := []string{c.Request().Method, path, strconv.Itoa(status)}
			m.requestsTotal.WithLabelValues(labels...).Inc()
			m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// Handler serves the exposition format for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Registry: m.registry})
}

// RunStarted marks a run as in progress
func (m *Metrics) RunStarted() {
	m.runsInProgress.Set(1)
}

// RunFinished records the outcome of one run
func (m *Metrics) RunFinished(trigger, status string, fetched, fallbacks int, d time.Duration) {
	m.runsInProgress.Set(0)
	m.runsTotal.WithLabelValues(trigger, status).Inc()
	m.runDuration.WithLabelValues(trigger).Observe(d.Seconds())
	m.fetchedMessages.Add(float64(fetched))
	m.fallbackDigests.Add(float64(fallbacks))
}

// EmailSent counts one send attempt; result is "success" or a failure kind
func (m *Metrics) EmailSent(result string) {
	m.sendsTotal.WithLabelValues(result).Inc()
}
