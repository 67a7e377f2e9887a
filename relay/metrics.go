package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// metrics holds the relay's Prometheus instruments on a dedicated registry,
// so embedding the relay never collides with a host process's default
// registry.
type metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authFailures    prometheus.Counter
	rateLimited     prometheus.Counter
	blobBytes       prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "walletmail_relay",
			Name:      "requests_total",
			Help:      "Relay requests by action and outcome.",
		}, []string{"action", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "walletmail_relay",
			Name:      "request_duration_seconds",
			Help:      "Relay request duration by action.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletmail_relay",
			Name:      "auth_failures_total",
			Help:      "Requests rejected for bad signatures or tokens.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletmail_relay",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-wallet rate limiter.",
		}),
		blobBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "walletmail_relay",
			Name:      "blob_bytes_stored_total",
			Help:      "Total encrypted attachment bytes accepted.",
		}),
	}

	reg.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.authFailures,
		m.rateLimited,
		m.blobBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}
