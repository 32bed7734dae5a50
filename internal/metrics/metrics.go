// Package metrics exposes the resolver's Prometheus counters and
// histograms, registered once at package init the way the teacher's gRPC
// middleware registers its RPC metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueriesTotal counts every client query the handler finishes serving,
	// labeled by the response code sent back.
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speculator_queries_total",
			Help: "Total client queries served, by response code.",
		},
		[]string{"rcode"},
	)

	// UpstreamRoundtripsTotal counts every query sent to an upstream
	// nameserver during iterative resolution, independent of outcome.
	UpstreamRoundtripsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "speculator_upstream_roundtrips_total",
			Help: "Total queries sent to upstream nameservers during resolution.",
		},
	)

	// ResolveDuration measures end-to-end resolution latency, from
	// accepting a client query to having a response ready.
	ResolveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "speculator_resolve_duration_seconds",
			Help:    "Time spent resolving a client query end to end.",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RateLimitedTotal counts queries rejected by the ingress rate limiter.
	RateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "speculator_rate_limited_total",
			Help: "Total queries rejected by the ingress rate limiter.",
		},
	)

	// SpoofRejectedTotal counts upstream responses rejected by the
	// antispoof fingerprint check.
	SpoofRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "speculator_spoof_rejected_total",
			Help: "Total upstream responses rejected as spoofed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		QueriesTotal,
		UpstreamRoundtripsTotal,
		ResolveDuration,
		RateLimitedTotal,
		SpoofRejectedTotal,
	)
}

// Handler serves the default Prometheus registry in the standard exposition
// format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ListenAndServe starts a dedicated metrics HTTP server on addr. It blocks
// until the server fails and returns that error; there is no shutdown
// hook. Callers typically run it in its own goroutine.
func ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}
