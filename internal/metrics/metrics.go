// Package metrics registers the Prometheus instruments for the backtest
// service. Everything lives in the default registry and is served by the
// HTTP server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BacktestRuns counts completed backtest runs by outcome.
	// Labels: symbol, status (ok, error)
	BacktestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quant",
		Subsystem: "backtest",
		Name:      "runs_total",
		Help:      "Total backtest runs",
	}, []string{"symbol", "status"})

	// BacktestDuration measures wall-clock run duration.
	// Labels: symbol
	BacktestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quant",
		Subsystem: "backtest",
		Name:      "duration_seconds",
		Help:      "Backtest run duration in seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"symbol"})

	// DecisionRounds counts decision rounds by final action label.
	// Labels: symbol, action
	DecisionRounds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quant",
		Subsystem: "backtest",
		Name:      "decision_rounds_total",
		Help:      "Total decision rounds executed",
	}, []string{"symbol", "action"})

	// MemoryWrites counts long-term memory write outcomes.
	// Labels: role, outcome (inserted, deduped, skipped, error)
	MemoryWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quant",
		Subsystem: "memory",
		Name:      "writes_total",
		Help:      "Total memory write attempts",
	}, []string{"role", "outcome"})

	// MemorySearchResults tracks how many memories each search returned.
	// Labels: ticker
	MemorySearchResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quant",
		Subsystem: "memory",
		Name:      "search_results",
		Help:      "Number of memories returned per search",
		Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
	}, []string{"ticker"})

	// FeedbackSweeps counts background feedback sweep iterations.
	// Labels: status (ok, error)
	FeedbackSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quant",
		Subsystem: "feedback",
		Name:      "sweeps_total",
		Help:      "Total feedback sweep iterations",
	}, []string{"status"})
)
