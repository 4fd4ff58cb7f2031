// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightica",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "insightica",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// BeaconsTotal counts collector beacons by type and what happened to them.
	BeaconsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightica",
			Name:      "beacons_total",
			Help:      "Total number of entry/exit beacons received",
		},
		[]string{"type", "outcome"},
	)

	HeartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insightica",
			Name:      "heartbeats_total",
			Help:      "Total number of live heartbeats received",
		},
		[]string{"status"},
	)

	AnalyticsQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "insightica",
			Name:      "analytics_query_duration_seconds",
			Help:      "Time spent fetching and aggregating analytics for one website",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"scope"},
	)

	AnalyticsRowsAggregated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insightica",
			Name:      "analytics_rows_aggregated_total",
			Help:      "Total number of page view rows fed into aggregation",
		},
	)

	PresenceRowsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insightica",
			Name:      "presence_rows_pruned_total",
			Help:      "Total number of stale live presence rows deleted",
		},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "insightica",
			Name:      "application_info",
			Help:      "Application information",
		},
		[]string{"version", "environment"},
	)
)

// Init records static build information.
func Init(version, environment string) {
	ApplicationInfo.WithLabelValues(version, environment).Set(1)
}
