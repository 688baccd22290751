package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Broker metrics
	MessagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_messages_published_total",
			Help: "Total number of messages published by kind",
		},
		[]string{"kind"},
	)

	MessagesDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_messages_delivered_total",
			Help: "Total number of inbox deliveries by kind",
		},
		[]string{"kind"},
	)

	MessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_messages_dropped_total",
			Help: "Total number of messages dropped for unregistered recipients",
		},
		[]string{"kind"},
	)

	InboxDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ftba_inbox_depth",
			Help: "Pending messages per agent inbox",
		},
		[]string{"agent"},
	)

	// Agent runtime metrics
	AgentCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_agent_cycles_total",
			Help: "Total number of completed process cycles by agent",
		},
		[]string{"agent"},
	)

	AgentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_agent_errors_total",
			Help: "Total number of swallowed agent errors by agent and origin",
		},
		[]string{"agent", "origin"},
	)

	BatchFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_batch_flushes_total",
			Help: "Total number of outbound batch flushes by trigger",
		},
		[]string{"agent", "trigger"},
	)

	// Workflow metrics
	ProposalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_proposals_total",
			Help: "Total number of trade proposals by decision",
		},
		[]string{"decision"},
	)

	TradesExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_trades_executed_total",
			Help: "Total number of trade executions by status",
		},
		[]string{"status"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_trades_closed_total",
			Help: "Total number of closed trades by reason",
		},
		[]string{"reason"},
	)

	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ftba_open_positions",
			Help: "Number of currently open positions",
		},
	)

	AccountBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ftba_account_balance",
			Help: "Current account balance in account currency",
		},
	)

	DailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ftba_daily_pnl",
			Help: "Realized profit and loss for the current day",
		},
	)

	// Gateway metrics
	GatewayOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ftba_gateway_orders_total",
			Help: "Total number of gateway order requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	GatewayLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ftba_gateway_latency_seconds",
			Help:    "Gateway round-trip latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(MessagesPublished)
	prometheus.MustRegister(MessagesDelivered)
	prometheus.MustRegister(MessagesDropped)
	prometheus.MustRegister(InboxDepth)
	prometheus.MustRegister(AgentCycles)
	prometheus.MustRegister(AgentErrors)
	prometheus.MustRegister(BatchFlushes)
	prometheus.MustRegister(ProposalsTotal)
	prometheus.MustRegister(TradesExecuted)
	prometheus.MustRegister(TradesClosed)
	prometheus.MustRegister(OpenPositions)
	prometheus.MustRegister(AccountBalance)
	prometheus.MustRegister(DailyPnL)
	prometheus.MustRegister(GatewayOrders)
	prometheus.MustRegister(GatewayLatency)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram with labels
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}
