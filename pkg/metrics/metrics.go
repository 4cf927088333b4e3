// Package metrics defines and registers all custom Prometheus metrics for the
// backoffice console. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "console"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginAttemptsTotal counts credential and MFA logins by outcome.
// Label:
//   - outcome: "authenticated", "mfa_setup_required", "mfa_challenged",
//     "invalid", "rejected", "network", "pending"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login submissions, by outcome.",
	},
	[]string{"outcome"},
)

// MFAVerificationsTotal counts submitted one-time codes.
// Labels:
//   - flow: "enrollment" or "challenge"
//   - result: "accepted", "rejected" or "invalid"
var MFAVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mfa_verifications_total",
		Help:      "Total number of MFA code submissions, by flow and result.",
	},
	[]string{"flow", "result"},
)

// BackendRequestDuration measures calls to the authentication backend.
// Labels:
//   - endpoint: backend path (e.g. "/auth/login")
//   - result: "ok", "rejected" or "unreachable"
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of calls to the authentication backend.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"endpoint", "result"},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// GuardDecisionsTotal counts access guard verdicts.
// Label:
//   - verdict: "wait", "redirect_login", "redirect_dashboard", "render"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of access guard decisions, by verdict.",
	},
	[]string{"verdict"},
)

// SessionsExpiredTotal counts sessions cleared by the idle timer.
var SessionsExpiredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Total number of sessions cleared after the idle timeout.",
	},
)

// ConsolesActive tracks the number of console sessions held in memory.
var ConsolesActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "consoles_active",
		Help:      "Current number of console sessions held in memory.",
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of auth events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of auth events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsDroppedTotal counts auth events discarded because a worker
// channel was full.
var AuditEventsDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_dropped_total",
		Help:      "Total number of auth events dropped on a full dispatcher queue.",
	},
)

// AuditEventsErrorsTotal counts auth events that failed to persist.
var AuditEventsErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_errors_total",
		Help:      "Total number of auth events that failed to persist.",
	},
)
