package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpstreamRequests counts engine calls by outcome: ok, network_error,
	// timeout, not_configured.
	UpstreamRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "policyforge",
		Subsystem: "gateway",
		Name:      "upstream_requests_total",
		Help:      "Upstream engine calls by outcome.",
	}, []string{"outcome"})

	UpstreamLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "policyforge",
		Subsystem: "gateway",
		Name:      "upstream_request_duration_seconds",
		Help:      "Wall-clock duration of upstream engine calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})

	RateLimitRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "policyforge",
		Subsystem: "gateway",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter, per scope.",
	}, []string{"scope"})
)

func init() {
	prometheus.MustRegister(UpstreamRequests, UpstreamLatency, RateLimitRejections)
}

// ObserveUpstream records one engine call.
func ObserveUpstream(outcome string, duration time.Duration) {
	UpstreamRequests.WithLabelValues(outcome).Inc()
	UpstreamLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
