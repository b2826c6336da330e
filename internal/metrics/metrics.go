// Package metrics provides Prometheus collectors for the MCP server,
// sandbox pool, and credential proxy.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Code execution
	CodeExecutionsTotal   *prometheus.CounterVec
	CodeExecutionDuration *prometheus.HistogramVec
	ExecutionsInFlight    prometheus.Gauge

	// Credential proxy
	ProxyForwardsTotal   *prometheus.CounterVec
	ProxyForwardDuration *prometheus.HistogramVec
}

// Get returns the singleton Metrics instance.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codemode",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint, method, and status code",
		},
		[]string{"endpoint", "method", "status"},
	)

	m.HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codemode",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint", "method"},
	)

	m.CodeExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codemode",
			Subsystem: "sandbox",
			Name:      "executions_total",
			Help:      "Total code executions by language and outcome",
		},
		[]string{"language", "status"},
	)

	m.CodeExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codemode",
			Subsystem: "sandbox",
			Name:      "execution_duration_seconds",
			Help:      "Code execution duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"language"},
	)

	m.ExecutionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "codemode",
			Subsystem: "sandbox",
			Name:      "executions_in_flight",
			Help:      "Current number of code executions holding a container",
		},
	)

	m.ProxyForwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codemode",
			Subsystem: "proxy",
			Name:      "forwards_total",
			Help:      "Total proxied requests by upstream and status code",
		},
		[]string{"upstream", "status"},
	)

	m.ProxyForwardDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codemode",
			Subsystem: "proxy",
			Name:      "forward_duration_seconds",
			Help:      "Proxied request duration in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"upstream"},
	)

	return m
}

// Middleware records request counts and latencies for every gin route.
func Middleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(endpoint, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(endpoint, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveExecution records one code execution outcome.
func (m *Metrics) ObserveExecution(language, status string, elapsed time.Duration) {
	m.CodeExecutionsTotal.WithLabelValues(language, status).Inc()
	m.CodeExecutionDuration.WithLabelValues(language).Observe(elapsed.Seconds())
}

// ObserveProxyForward records one proxied request outcome.
func (m *Metrics) ObserveProxyForward(upstream string, status int, elapsed time.Duration) {
	m.ProxyForwardsTotal.WithLabelValues(upstream, strconv.Itoa(status)).Inc()
	m.ProxyForwardDuration.WithLabelValues(upstream).Observe(elapsed.Seconds())
}
