// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Scheduler metrics
	RoundsTotal     *prometheus.CounterVec
	RoundDuration   prometheus.Histogram
	TokensEvaluated prometheus.Counter
	NoPriceTotal    prometheus.Counter

	// Signal and trade metrics
	SignalsTotal *prometheus.CounterVec
	TradesTotal  *prometheus.CounterVec

	// External API metrics
	APICallLatency *prometheus.HistogramVec
	SyncFailures   prometheus.Counter

	// Portfolio metrics
	PortfolioValue   *prometheus.GaugeVec
	AvailableBalance *prometheus.GaugeVec
	PoolSize         *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trading_experiment_lab"
	}

	return &Metrics{
		RoundsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rounds_total",
			Help:      "Total number of scheduler rounds by mode",
		}, []string{"mode"}),
		RoundDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "round_duration_seconds",
			Help:      "Round pipeline execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		TokensEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tokens_evaluated_total",
			Help:      "Total number of per-token strategy evaluations",
		}),
		NoPriceTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "no_price_total",
			Help:      "Total number of tokens skipped for missing price",
		}),

		SignalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "signals_total",
			Help:      "Total number of strategy signals by action and outcome",
		}, []string{"action", "outcome"}),
		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "trades_total",
			Help:      "Total number of executed trades by direction",
		}, []string{"direction"}),

		APICallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "api_call_latency_seconds",
			Help:      "External API call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"api"}),
		SyncFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "holding_sync_failures_total",
			Help:      "Total number of failed holding syncs",
		}),

		PortfolioValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "total_value",
			Help:      "Current total portfolio value by experiment",
		}, []string{"experiment_id"}),
		AvailableBalance: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "available_balance",
			Help:      "Current available native balance by experiment",
		}, []string{"experiment_id"}),
		PoolSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tokens",
			Help:      "Current number of pooled tokens by experiment",
		}, []string{"experiment_id"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
