// Package metrics defines the Prometheus collectors exported by the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "url_shortener"

// Metrics groups the HTTP and domain collectors.
type Metrics struct {
	// HTTPRequestsTotal counts finished requests by method, route pattern and status.
	HTTPRequestsTotal *prometheus.CounterVec
	// HTTPRequestDuration observes request latency by method and route pattern.
	HTTPRequestDuration *prometheus.HistogramVec
	// HTTPInflightRequests is the number of requests currently being served.
	HTTPInflightRequests prometheus.Gauge

	LinksCreated   prometheus.Counter
	LinksReused    prometheus.Counter
	CodeCollisions prometheus.Counter
	Resolutions    prometheus.Counter
}

// New creates the collectors and registers them with reg.
// Route labels must be route patterns, never raw paths.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distributions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		HTTPInflightRequests: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		LinksCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Number of new links stored.",
		}),
		LinksReused: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_reused_total",
			Help:      "Number of shorten requests answered with an existing link.",
		}),
		CodeCollisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "short_code_collisions_total",
			Help:      "Number of generated short codes rejected by the store as taken.",
		}),
		Resolutions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_resolutions_total",
			Help:      "Number of successful short code resolutions.",
		}),
	}
}
