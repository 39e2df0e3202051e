package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikwatch_poll_cycles_total", Help: "Total poll cycles started.",
	})
	PollSuccesses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikwatch_poll_router_successes_total", Help: "Per-router polls that completed and stored samples.",
	})
	PollFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tikwatch_poll_router_failures_total", Help: "Per-router polls that failed.",
	}, []string{"kind"})
	PollSkippedOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikwatch_poll_router_skipped_offline_total", Help: "Polls skipped because the router was cached offline.",
	})
	PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tikwatch_poll_router_duration_seconds",
		Help:    "Wall time of a single router poll.",
		Buckets: prometheus.DefBuckets,
	})

	SamplesStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikwatch_bandwidth_samples_stored_total", Help: "Bandwidth sample rows written.",
	})
	RowsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tikwatch_retention_rows_swept_total", Help: "Rows deleted by the retention sweeper.",
	})
)
