package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_reports_total",
		Help: "Validation reports by terminal status",
	}, []string{"status"})

	ViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "parlay_violations_total",
		Help: "Rule violations by severity and rule id",
	}, []string{"severity", "rule"})

	SnapshotFetchSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parlay_snapshot_fetch_seconds",
		Help:    "Market snapshot fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	HTTPRequestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parlay_http_request_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
