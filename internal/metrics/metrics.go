// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "svllm",
		Subsystem: "llm",
		Name:      "requests_total",
		Help:      "Outbound provider requests by family and outcome.",
	}, []string{"family", "outcome"})

	providerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "svllm",
		Subsystem: "llm",
		Name:      "request_duration_seconds",
		Help:      "Outbound provider request latency.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"family"})

	persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "svllm",
		Subsystem: "store",
		Name:      "persistence_failures_total",
		Help:      "Storage writes that failed; in-memory state stays authoritative.",
	})
)

// ObserveProviderRequest records one outbound provider call.
func ObserveProviderRequest(family string, duration time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	providerRequests.WithLabelValues(family, outcome).Inc()
	providerDuration.WithLabelValues(family).Observe(duration.Seconds())
}

// CountPersistenceFailure records one failed storage write.
func CountPersistenceFailure() {
	persistenceFailures.Inc()
}
