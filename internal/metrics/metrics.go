package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APIRequests counts outbound calls to the equipment API by method and status code.
	// Transport failures are recorded with status "error".
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "api_requests_total",
		Help:      "Outbound requests issued by the authenticated request gateway.",
	}, []string{"method", "status"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "console",
		Name:      "api_request_duration_seconds",
		Help:      "Latency of outbound API requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	// QueryCache counts list reads by result: hit, miss or shared.
	QueryCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "query_cache_total",
		Help:      "List reads served by the query cache.",
	}, []string{"result"})

	QueryRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "query_retries_total",
		Help:      "Read retries after a transient failure.",
	})

	// Logins counts login attempts by outcome: success, invalid_credentials, no_tenant, error.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "console",
		Name:      "logins_total",
		Help:      "Console login attempts.",
	}, []string{"outcome"})
)
