package gateway

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes passed to Collector.RecordRefresh.
const (
	RefreshSucceeded = "success"
	RefreshFailed    = "failure"
)

// Collector receives gateway metrics.
type Collector interface {
	RecordRequest(method string, statusCode int, latency time.Duration)
	RecordNetworkError(method string)
	RecordRefresh(outcome string)
	RecordRetry()
	RecordCoalescedRefresh()
}

// NopCollector discards everything.
type NopCollector struct{}

func (NopCollector) RecordRequest(string, int, time.Duration) {}
func (NopCollector) RecordNetworkError(string)                {}
func (NopCollector) RecordRefresh(string)                     {}
func (NopCollector) RecordRetry()                             {}
func (NopCollector) RecordCoalescedRefresh()                  {}

// PrometheusCollector is a Collector backed by prometheus metrics.
type PrometheusCollector struct {
	requests      *prometheus.CounterVec
	networkErrors *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	retries       prometheus.Counter
	coalesced     prometheus.Counter
	latency       *prometheus.HistogramVec
}

// NewPrometheusCollector creates the gateway metrics and registers them with reg.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_gateway_requests_total",
			Help: "API responses by method and status code",
		}, []string{"method", "status_code"}),
		networkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_gateway_network_errors_total",
			Help: "Requests that failed before a response was received",
		}, []string{"method"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "school_gateway_refresh_total",
			Help: "Token refresh exchanges by outcome",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "school_gateway_retries_total",
			Help: "Requests replayed after a 401",
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "school_gateway_refresh_coalesced_total",
			Help: "Callers that waited on a refresh started by another call",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "school_gateway_request_duration_seconds",
			Help:    "API round trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(
		c.requests,
		c.networkErrors,
		c.refreshes,
		c.retries,
		c.coalesced,
		c.latency,
	)
	return c
}

func (c *PrometheusCollector) RecordRequest(method string, statusCode int, latency time.Duration) {
	c.requests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.latency.WithLabelValues(method).Observe(latency.Seconds())
}

func (c *PrometheusCollector) RecordNetworkError(method string) {
	c.networkErrors.WithLabelValues(method).Inc()
}

func (c *PrometheusCollector) RecordRefresh(outcome string) {
	c.refreshes.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) RecordRetry() {
	c.retries.Inc()
}

func (c *PrometheusCollector) RecordCoalescedRefresh() {
	c.coalesced.Inc()
}
