// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Monitor metrics
	SwapsDetected    *prometheus.CounterVec
	WalletPollErrors prometheus.Counter
	TrackedWallets   prometheus.Gauge
	DedupSetSize     prometheus.Gauge

	// Copy trading metrics
	CopyDecisions  *prometheus.CounterVec
	CopiesExecuted prometheus.Counter

	// Execution metrics
	TradesExecuted   *prometheus.CounterVec
	TradesSimulated  prometheus.Counter
	ExecutionLatency *prometheus.HistogramVec

	// Position metrics
	OpenPositions   prometheus.Gauge
	PositionsClosed *prometheus.CounterVec

	// Limit order metrics
	PendingOrders    prometheus.Gauge
	OrderTransitions *prometheus.CounterVec

	// Latency metrics
	RPCCallLatency *prometheus.HistogramVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulPoll prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_copy_trader"
	}

	return &Metrics{
		SwapsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "swaps_detected_total",
			Help:      "Total number of swaps detected by direction",
		}, []string{"direction"}),
		WalletPollErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "wallet_poll_errors_total",
			Help:      "Total number of failed wallet poll attempts",
		}),
		TrackedWallets: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tracked_wallets",
			Help:      "Current number of tracked wallets",
		}),
		DedupSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "dedup_set_size",
			Help:      "Current number of signatures in the dedup set",
		}),

		CopyDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "copytrade",
			Name:      "decisions_total",
			Help:      "Total number of copy decisions by outcome",
		}, []string{"outcome"}),
		CopiesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "copytrade",
			Name:      "copies_executed_total",
			Help:      "Total number of copy trades forwarded to execution",
		}),

		TradesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "trades_executed_total",
			Help:      "Total number of executed trades by backend and status",
		}, []string{"backend", "status"}),
		TradesSimulated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "trades_simulated_total",
			Help:      "Total number of dry-run trades",
		}),
		ExecutionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "execution_latency_seconds",
			Help:      "Trade execution latency in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"backend"}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),
		PositionsClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "position",
			Name:      "positions_closed_total",
			Help:      "Total number of closed positions by terminal status",
		}, []string{"status"}),

		PendingOrders: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "limitorder",
			Name:      "pending_orders",
			Help:      "Current number of pending limit orders",
		}),
		OrderTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "limitorder",
			Name:      "order_transitions_total",
			Help:      "Total number of limit order transitions by status",
		}, []string{"status"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulPoll: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_poll_timestamp",
			Help:      "Unix timestamp of last successful monitor cycle",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordSwapDetected increments the swaps detected counter.
func RecordSwapDetected(direction string) {
	DefaultMetrics.SwapsDetected.WithLabelValues(direction).Inc()
}

// RecordWalletPollError increments the wallet poll error counter.
func RecordWalletPollError() {
	DefaultMetrics.WalletPollErrors.Inc()
}

// UpdateTrackedWallets updates the tracked wallets gauge.
func UpdateTrackedWallets(n int) {
	DefaultMetrics.TrackedWallets.Set(float64(n))
}

// UpdateDedupSetSize updates the dedup set size gauge.
func UpdateDedupSetSize(n int) {
	DefaultMetrics.DedupSetSize.Set(float64(n))
}

// RecordCopyDecision records a copy decision outcome ("copied" or a skip reason).
func RecordCopyDecision(outcome string) {
	DefaultMetrics.CopyDecisions.WithLabelValues(outcome).Inc()
}

// RecordCopyExecuted increments the copies executed counter.
func RecordCopyExecuted() {
	DefaultMetrics.CopiesExecuted.Inc()
}

// RecordTradeExecuted records a completed execution attempt.
func RecordTradeExecuted(backend, status string, seconds float64) {
	DefaultMetrics.TradesExecuted.WithLabelValues(backend, status).Inc()
	DefaultMetrics.ExecutionLatency.WithLabelValues(backend).Observe(seconds)
}

// RecordTradeSimulated increments the dry-run trade counter.
func RecordTradeSimulated() {
	DefaultMetrics.TradesSimulated.Inc()
}

// UpdateOpenPositions updates the open positions gauge.
func UpdateOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordPositionClosed records a position reaching a terminal status.
func RecordPositionClosed(status string) {
	DefaultMetrics.PositionsClosed.WithLabelValues(status).Inc()
}

// UpdatePendingOrders updates the pending orders gauge.
func UpdatePendingOrders(n int) {
	DefaultMetrics.PendingOrders.Set(float64(n))
}

// RecordOrderTransition records a limit order status transition.
func RecordOrderTransition(status string) {
	DefaultMetrics.OrderTransitions.WithLabelValues(status).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
