// Package metrics holds the Prometheus instruments for the relay.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushrelay_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushrelay_http_request_duration_seconds",
			Help:    "Histogram of response durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	DispatchChunks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushrelay_dispatch_chunks_total",
			Help: "Number of successful or failed tag-chunk sends",
		},
		[]string{"status"},
	)

	Installations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushrelay_installation_writes_total",
			Help: "Installation upserts and deletes by outcome",
		},
		[]string{"op", "status"},
	)
)

func Init() {
	prometheus.MustRegister(HTTPRequests, RequestDuration, DispatchChunks, Installations)
}
