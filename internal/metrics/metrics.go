// Package metrics holds the Prometheus collectors of the wager engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the service.
type Metrics struct {
	// --- Wagers ---
	WagersPlaced  *prometheus.CounterVec
	WagerAmount   *prometheus.CounterVec
	WagersSettled *prometheus.CounterVec

	// --- Settlement ---
	Settlements        *prometheus.CounterVec
	SettlementDuration *prometheus.HistogramVec

	// --- Ledger ---
	LedgerPostings        *prometheus.CounterVec
	LedgerInconsistencies prometheus.Counter
	QuarantinedUsers      prometheus.Gauge

	// --- Notifications ---
	NotificationsQueued  *prometheus.CounterVec
	NotificationsDropped prometheus.Counter
	NotificationErrors   *prometheus.CounterVec
	LiveConnections      prometheus.Gauge

	// --- HTTP ---
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		WagersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_placed_total",
			Help: "Wagers accepted, by target kind and game type",
		}, []string{"target_kind", "game_type"}),

		WagerAmount: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_amount_total",
			Help: "Sum of accepted wager amounts in minor units",
		}, []string{"target_kind"}),

		WagersSettled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wager_settled_total",
			Help: "Wagers settled, by outcome",
		}, []string{"outcome"}),

		Settlements: f.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_runs_total",
			Help: "Settlement passes, by target kind and result",
		}, []string{"target_kind", "result"}),

		SettlementDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "settlement_duration_seconds",
			Help:    "Time to settle all pending wagers of a target",
			Buckets: prometheus.DefBuckets,
		}, []string{"target_kind"}),

		LedgerPostings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_postings_total",
			Help: "Ledger entries written, by kind and status",
		}, []string{"kind", "status"}),

		LedgerInconsistencies: f.NewCounter(prometheus.CounterOpts{
			Name: "ledger_inconsistencies_total",
			Help: "Detected mismatches between cached balance and ledger",
		}),

		QuarantinedUsers: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_quarantined_users",
			Help: "Users blocked from balance mutations until reconciled",
		}),

		NotificationsQueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_events_queued_total",
			Help: "Events accepted by the dispatcher, by event type",
		}, []string{"type"}),

		NotificationsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "notify_events_dropped_total",
			Help: "Events dropped because the dispatch queue was full",
		}),

		NotificationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_sink_errors_total",
			Help: "Delivery failures, by sink",
		}, []string{"sink"}),

		LiveConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "notify_live_connections",
			Help: "Open WebSocket connections",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests, by route and status code",
		}, []string{"route", "code"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// NewNop returns metrics registered on a private registry. Used by tests
// and by components constructed without a registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
