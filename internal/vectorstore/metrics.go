package vectorstore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// entriesGauge tracks the number of entries per index.
	entriesGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "bookseek",
			Subsystem: "vectorstore",
			Name:      "entries",
			Help:      "Number of entries in the vector index",
		},
		[]string{"index"},
	)

	// insertsTotal counts inserted entries.
	insertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookseek",
			Subsystem: "vectorstore",
			Name:      "inserts_total",
			Help:      "Total number of entries inserted",
		},
		[]string{"index"},
	)

	// searchesTotal counts searches.
	// Labels: result (ok, empty, error)
	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookseek",
			Subsystem: "vectorstore",
			Name:      "searches_total",
			Help:      "Total number of similarity searches",
		},
		[]string{"index", "result"},
	)

	// persistDuration tracks how long snapshots take to write.
	persistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bookseek",
			Subsystem: "vectorstore",
			Name:      "persist_duration_seconds",
			Help:      "Duration of index persist operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"index", "result"},
	)

	// loadsTotal counts snapshot loads.
	// Labels: result (ok, not_found, corrupt, error)
	loadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookseek",
			Subsystem: "vectorstore",
			Name:      "loads_total",
			Help:      "Total number of snapshot loads",
		},
		[]string{"result"},
	)
)
