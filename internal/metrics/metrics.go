// Package metrics defines the Prometheus instrumentation for the
// orchestration core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Auth metrics
var (
	// LoginsTotal tracks login attempts by outcome (success/failure/rejected)
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// LogoutsTotal tracks logout attempts by outcome
	LogoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_logouts_total",
			Help: "Logout attempts by outcome",
		},
		[]string{"outcome"},
	)

	// HydrationsTotal tracks startup hydrations by result (hit/miss)
	HydrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_hydrations_total",
			Help: "Session hydrations by result",
		},
		[]string{"result"},
	)
)

// Stream metrics
var (
	// StreamCreationsTotal tracks stream creation requests by outcome
	// (success/failure/superseded/rejected)
	StreamCreationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_creations_total",
			Help: "Stream creation requests by outcome",
		},
		[]string{"outcome"},
	)

	// StreamCreationDuration tracks streaming provider call latency in seconds
	StreamCreationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_creation_duration_seconds",
			Help:    "Streaming provider creation call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)
)

// Notification metrics
var (
	// NotificationsTotal tracks broadcast dispatches by outcome
	// (acknowledged/failed/breaker_open)
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Broadcast dispatches by outcome",
		},
		[]string{"outcome"},
	)

	// NotificationDuration tracks notification provider call latency in seconds
	NotificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_duration_seconds",
			Help:    "Notification provider call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5},
		},
	)
)

// Snapshot store metrics
var (
	// StoreOpsTotal tracks snapshot store operations by operation and status
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshot_store_operations_total",
			Help: "Snapshot store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	// StoreOpDuration tracks snapshot store operation latency in seconds
	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "snapshot_store_operation_duration_seconds",
			Help:    "Snapshot store operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// StoreConnectionErrors tracks redis connection errors
	StoreConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshot_store_connection_errors_total",
			Help: "Total snapshot store connection errors",
		},
	)
)

// Circuit breaker metrics
var (
	// CircuitBreakerStateChanges tracks circuit breaker state transitions
	CircuitBreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_changes_total",
			Help: "Circuit breaker state transitions by component and new state",
		},
		[]string{"component", "state"},
	)

	// CircuitBreakerState tracks current circuit breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)
