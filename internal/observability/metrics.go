// Package observability defines the Prometheus metrics for the chat proxy.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamsStarted counts accepted streaming chat completion requests.
	StreamsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_streams_started_total",
		Help: "Total number of streaming chat completions started",
	})

	// StreamsFinalized counts stream lifecycles by how they ended
	// (done, stopped, error).
	StreamsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaychat_streams_finalized_total",
		Help: "Total number of stream lifecycles finalized, by outcome status",
	}, []string{"status"})

	// UpstreamErrors counts failed initial provider responses by provider.
	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaychat_upstream_errors_total",
		Help: "Total number of failed upstream provider calls, by provider",
	}, []string{"provider"})

	// RateLimitRejections counts requests rejected by the rate limiter.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relaychat_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
)
