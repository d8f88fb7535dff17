package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RequestsTotal tracks calls by method and transport mode, hits included.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finx_dispatch_requests_total",
			Help: "Total number of dispatched calls",
		},
		[]string{"api_method", "mode"},
	)

	// TransmissionsTotal tracks requests actually sent to the API.
	TransmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finx_dispatch_transmissions_total",
			Help: "Total number of requests transmitted to the API",
		},
		[]string{"mode"},
	)

	// ErrorResponsesTotal tracks error payloads received or synthesized.
	ErrorResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finx_dispatch_error_responses_total",
			Help: "Total number of error responses",
		},
		[]string{"api_method"},
	)

	// DuplicateCallsTotal tracks calls that joined an identical call in flight.
	DuplicateCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_dispatch_duplicate_calls_total",
		Help: "Total number of calls attached to an identical in-flight request",
	})

	// PendingRequests tracks socket requests waiting for a response.
	PendingRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finx_dispatch_pending_requests",
		Help: "Number of socket requests awaiting a response",
	})

	// AuthWaitDuration tracks time spent waiting for socket authentication.
	AuthWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finx_dispatch_auth_wait_seconds",
		Help:    "Time calls spent waiting for socket authentication",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	// RoundTripDuration tracks HTTP round trip latency.
	RoundTripDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "finx_dispatch_round_trip_seconds",
			Help:    "HTTP round trip latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api_method"},
	)

	// HTTPStatusTotal tracks HTTP status codes returned by the API.
	HTTPStatusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finx_dispatch_http_status_total",
			Help: "Total number of HTTP responses by status code",
		},
		[]string{"code"},
	)

	// BatchSize tracks the number of securities per batch.
	BatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finx_dispatch_batch_size",
		Help:    "Number of securities per batch",
		Buckets: prometheus.LinearBuckets(0, 10, 11),
	})

	// CacheClearsTotal tracks explicit cache clears.
	CacheClearsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finx_dispatch_cache_clears_total",
		Help: "Total number of cache clears",
	})
)
