package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts Generate calls.
	// Labels: model, status (ok, error, or the HTTP status code)
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookseek",
			Subsystem: "generation",
			Name:      "requests_total",
			Help:      "Total number of answer generation calls",
		},
		[]string{"model", "status"},
	)

	// requestDuration tracks Generate latency including retries.
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookseek",
			Subsystem: "generation",
			Name:      "request_duration_seconds",
			Help:      "Duration of answer generation calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model"},
	)
)
