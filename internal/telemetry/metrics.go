/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry
// tracing for the service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestDuration tracks HTTP handler latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vakt_api_request_duration_seconds",
		Help:    "HTTP request duration by method, endpoint and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIRequestsTotal counts HTTP requests.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vakt_api_requests_total",
		Help: "HTTP requests by method, endpoint and status.",
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections gauges in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vakt_api_active_connections",
		Help: "In-flight HTTP requests.",
	})

	// DatabaseQueryDuration tracks GORM operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vakt_db_query_duration_seconds",
		Help:    "Database operation duration by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts database errors.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vakt_db_errors_total",
		Help: "Database errors by operation and kind.",
	}, []string{"operation", "kind"})

	// DatabaseConnectionsActive gauges open connections.
	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vakt_db_connections_active",
		Help: "Open database connections.",
	})

	// TrackerActionsTotal counts shift actions by outcome.
	TrackerActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vakt_tracker_actions_total",
		Help: "Shift actions by action and outcome.",
	}, []string{"action", "outcome"})

	// SplitSegmentsTotal counts extra rows inserted by close-and-split.
	SplitSegmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vakt_tracker_split_segments_total",
		Help: "Closed segment rows inserted beyond the original block.",
	})

	// OpenShifts gauges workers currently clocked in on this instance.
	OpenShifts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vakt_tracker_open_shifts",
		Help: "Open time blocks tracked by this instance.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
