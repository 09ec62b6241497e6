package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RunSummary holds the aggregated performance statistics of one backtest run
// together with the configuration that produced it. It is written once to the
// results folder and never modified.
type RunSummary struct {
	// ID is the unique identifier for this backtest run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this backtest run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol of the traded instrument.
	Symbol string `yaml:"symbol" json:"symbol"`
	// Interval of the price series.
	Interval Interval `yaml:"interval" json:"interval"`
	// Window is the lookback window size in bars.
	Window int `yaml:"window" json:"window"`
	// Step is the stride between decision bars.
	Step int `yaml:"step" json:"step"`
	// Seed used for all generation calls in this run.
	Seed int64 `yaml:"seed" json:"seed"`
	// InitialCapital in account currency.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital"`
	// FeeBps and SlippageBps are the per-trade transaction cost basis points.
	FeeBps      float64 `yaml:"fee_bps" json:"fee_bps"`
	SlippageBps float64 `yaml:"slippage_bps" json:"slippage_bps"`
	// StopLoss and TakeProfit are signed fractional thresholds.
	StopLoss   float64 `yaml:"stop_loss" json:"stop_loss"`
	TakeProfit float64 `yaml:"take_profit" json:"take_profit"`

	// FinalEquity at the last processed bar.
	FinalEquity float64 `yaml:"final_equity" json:"final_equity"`
	// TotalReturn is final_equity / initial_capital - 1.
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	// CAGR annualized over the elapsed calendar days of the run.
	CAGR float64 `yaml:"cagr" json:"cagr"`
	// AnnualizedVolatility of the per-step return series.
	AnnualizedVolatility float64 `yaml:"annualized_volatility" json:"annualized_volatility"`
	// Sharpe is mean(step returns)/stdev(step returns) * sqrt(n).
	Sharpe float64 `yaml:"sharpe" json:"sharpe"`
	// MaxDrawdown is the worst fractional fall from an equity peak, <= 0.
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	// Calmar is CAGR / |MaxDrawdown|.
	Calmar float64 `yaml:"calmar" json:"calmar"`
	// Turnover is total traded notional / initial capital.
	Turnover float64 `yaml:"turnover" json:"turnover"`
	// TradeCount is the number of bars on which shares actually changed hands.
	TradeCount int `yaml:"trade_count" json:"trade_count"`
}

// WriteRunSummary marshals the summary to YAML at the given path.
func WriteRunSummary(path string, summary RunSummary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run summary to file: %w", err)
	}

	return nil
}
