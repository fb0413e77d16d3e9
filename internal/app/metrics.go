package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job lifecycle metrics
var (
	jobsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytgrab_jobs_created_total",
		Help: "Total number of accepted download jobs.",
	})

	jobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ytgrab_jobs_finished_total",
			Help: "Total number of download jobs that reached a terminal state.",
		},
		[]string{"status"},
	)

	jobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ytgrab_jobs_active",
		Help: "Number of download jobs currently running.",
	})

	historyWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ytgrab_history_write_failures_total",
		Help: "Total number of history records that could not be persisted.",
	})
)
