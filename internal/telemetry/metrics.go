// Package telemetry provides application-level observability for the Comp API.
//
// All metrics are registered against the default Prometheus registry and are
// served on the side-channel HTTP server started by main.go:
//
//	GET http://<host>:<COMP_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090. The endpoint is not served by the Gin router and is
// therefore absent from the public API surface; it is intended to be scraped
// by a Prometheus server every 15–60 seconds.
//
// HTTP metrics use c.FullPath() (route template such as
// /api/v1/organizations/:orgId/risks) rather than the raw request URL to
// prevent unbounded label cardinality from user-supplied path segments.
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - p99 latency per route:             histogram_quantile(0.99, sum by (path, le) (rate(http_request_duration_seconds_bucket[5m])))
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Authentication metrics — recorded by the guard middleware and the token
// verifier. The type label is "api-key" or "jwt"; the result label is
// "success" or a short failure class ("invalid", "missing_org", "no_access",
// "config", "idp_unreachable").
//
// Example PromQL queries:
//   - Failed auth rate by type:  sum by (type) (rate(auth_attempts_total{result!="success"}[5m]))
//   - Alert on auth error spike: increase(auth_attempts_total{result="invalid"}[10m]) > 100
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of request authentication attempts, by credential type and result.",
		},
		[]string{"type", "result"},
	)

	// JWKSRefreshesTotal counts remote key-set fetches by trigger: "expiry"
	// for normal TTL-driven refreshes, "forced" for the key-rotation retry
	// path. A sustained "forced" rate means tokens are being signed with keys
	// the issuer is not publishing.
	JWKSRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jwks_refreshes_total",
			Help: "Total number of remote JWKS fetches, by trigger (expiry or forced).",
		},
		[]string{"trigger"},
	)

	// APIKeyValidationsTotal counts API key validation calls by outcome
	// ("matched", "no_match", "error"). The full-scan validator makes this a
	// useful proxy for key-table growth pressure.
	APIKeyValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apikey_validations_total",
			Help: "Total number of API key validation attempts, by outcome.",
		},
		[]string{"outcome"},
	)
)

// Integration check metrics — recorded by the integration check background job.
//
// Example PromQL queries:
//   - p95 check duration:     histogram_quantile(0.95, rate(integration_check_duration_seconds_bucket[1h]))
//   - Failing integrations:   rate(integration_check_failures_total[1h])
var (
	IntegrationCheckDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "integration_check_duration_seconds",
			Help:    "Duration of a single integration connectivity check.",
			Buckets: prometheus.DefBuckets,
		},
	)

	IntegrationCheckFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_check_failures_total",
			Help: "Total number of failed integration connectivity checks, by integration ID.",
		},
		[]string{"integration_id"},
	)
)

// APIKeyExpiryNotificationsSentTotal is a plain Counter incremented once per
// email successfully delivered by the api_key_expiry_notifier background job.
// A stalled counter combined with keys approaching expiry is a useful alert
// signal for SMTP delivery failures.
var APIKeyExpiryNotificationsSentTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "apikey_expiry_notifications_sent_total",
		Help: "Total number of API key expiry warning emails successfully sent.",
	},
)

// DBOpenConnections tracks the number of open connections currently held by
// the sql.DB connection pool. It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of
// sql.DB.Stats().
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB
// connection pool statistics every 30 seconds and updates the
// DBOpenConnections gauge. The goroutine exits cleanly when the database
// becomes unreachable (db.Ping fails), which happens automatically when the
// application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go.
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
