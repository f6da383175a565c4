// ABOUTME: Prometheus metrics for calendar requests, retries, refreshes, and reconciliation
// ABOUTME: Collectors register with the default registry at package init
package sync

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	calendarRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypilot_calendar_requests_total",
			Help: "Total Google Calendar API attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	calendarRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypilot_calendar_retries_total",
			Help: "Total retried Google Calendar API attempts by operation",
		},
		[]string{"operation"},
	)

	credentialRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypilot_credential_refresh_total",
			Help: "Total OAuth credential refreshes by outcome",
		},
		[]string{"outcome"},
	)

	reconcileRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypilot_reconcile_runs_total",
			Help: "Total reconciliation runs by outcome",
		},
		[]string{"outcome"},
	)

	reconcileDeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studypilot_reconcile_deletions_total",
			Help: "Total records deleted by reconciliation, by kind",
		},
		[]string{"kind"},
	)

	circuitBreakersOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "studypilot_calendar_circuit_breakers_open",
			Help: "Number of per-user calendar circuit breakers currently open",
		},
	)
)

func init() {
	prometheus.MustRegister(calendarRequestsTotal)
	prometheus.MustRegister(calendarRetriesTotal)
	prometheus.MustRegister(credentialRefreshTotal)
	prometheus.MustRegister(reconcileRunsTotal)
	prometheus.MustRegister(reconcileDeletionsTotal)
	prometheus.MustRegister(circuitBreakersOpen)
}

// outcomeLabel names an error for metric labels.
func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrTransient):
		return "transient"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrNotConnected):
		return "not_connected"
	case errors.Is(err, ErrRefreshFailed):
		return "refresh_failed"
	}
	return "error"
}
