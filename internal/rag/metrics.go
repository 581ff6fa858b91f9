package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	questionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookseek",
			Subsystem: "rag",
			Name:      "questions_total",
			Help:      "Questions answered, by result",
		},
		[]string{"result"},
	)

	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookseek",
			Subsystem: "rag",
			Name:      "documents_total",
			Help:      "Documents seen by ingest, by outcome (added, skipped, failed)",
		},
		[]string{"outcome"},
	)

	chunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookseek",
			Subsystem: "rag",
			Name:      "chunks_total",
			Help:      "Document chunks added to the index",
		},
	)
)
