// Package metrics exposes Prometheus metrics and health endpoints for the
// reference controller.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Query outcomes
const (
	OutcomeSnapshot  = "snapshot"
	OutcomeUnchanged = "unchanged"
	OutcomeError     = "error"
)

var (
	// Record metrics
	RecordsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slurmctld_records_total",
			Help: "Total number of records by kind",
		},
		[]string{"kind"},
	)

	NodesByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slurmctld_nodes",
			Help: "Number of nodes by state",
		},
		[]string{"state"},
	)

	// Controller operation metrics
	QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slurmctld_queries_total",
			Help: "Total number of load queries by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	UpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slurmctld_updates_total",
			Help: "Total number of update requests by kind and status",
		},
		[]string{"kind", "status"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slurmctld_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slurmctld_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(RecordsTotal)
	prometheus.MustRegister(NodesByState)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(UpdatesTotal)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
