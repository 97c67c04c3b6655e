package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Database/Repository Metrics
var (
	// DBOperations tracks total storage operations
	DBOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionshare_db_operations_total",
			Help: "Total storage operations by backend repository, operation, and status",
		},
		[]string{"repo", "operation", "status"},
	)

	// DBDuration tracks storage operation latency
	DBDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "sessionshare_db_operation_duration_ms",
			Help:                            "Storage operation duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBRowsAffected tracks rows affected by write operations
	DBRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "sessionshare_db_rows_affected",
			Help:                            "Number of rows affected by storage write operations",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"repo", "operation"},
	)

	// DBErrors tracks storage errors by type
	DBErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionshare_db_errors_total",
			Help: "Total storage errors by repository, operation, and error type",
		},
		[]string{"repo", "operation", "error_type"},
	)
)

// Session sharing pipeline metrics
var (
	// LoginAttempts counts cookie logins by outcome:
	// success, verification_failed, payload_invalid, storage_error, creation_error, not_ready
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionshare_login_attempts_total",
			Help: "Total shared-session login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Resolutions counts identity resolutions by the branch taken: existing, merged, created
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionshare_identity_resolutions_total",
			Help: "Total identity resolutions by branch",
		},
		[]string{"branch"},
	)

	// ResolutionDuration tracks end-to-end resolution latency
	ResolutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "sessionshare_identity_resolution_duration_ms",
			Help:                            "Identity resolution duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"branch"},
	)

	// CreateRaces counts account creations that lost the mapping write to a concurrent login
	CreateRaces = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionshare_identity_create_races_total",
			Help: "Accounts created whose mapping write lost to a concurrent resolution",
		},
	)

	// GuestRedirects counts cookie-less guests sent to the guest redirect URL
	GuestRedirects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionshare_guest_redirects_total",
			Help: "Total cookie-less guests redirected to the configured guest redirect",
		},
	)

	// SettingsReloads counts settings reloads by status (ok, not_ready, error)
	SettingsReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionshare_settings_reloads_total",
			Help: "Total settings reloads by status",
		},
		[]string{"status"},
	)

	// PipelineReady is 1 when a usable secret is configured
	PipelineReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionshare_pipeline_ready",
			Help: "Whether the session sharing pipeline is ready (0=disabled, 1=ready)",
		},
	)
)

// HTTP/Web Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionshare_http_requests_total",
			Help: "Total HTTP requests by method, route, and status",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "sessionshare_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)

	// HTTPActiveRequests tracks active HTTP requests
	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionshare_http_active_requests",
			Help: "Number of active HTTP requests",
		},
	)
)
