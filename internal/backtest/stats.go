package backtest

import (
	"math"
	"time"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

const daysPerYear = 365.25

// computeStats derives the summary statistics from the completed run. Every
// ratio is guarded: a degenerate run produces zeros, never NaN or Inf.
func computeStats(cfg Config, trades []types.TradeRecord, stepReturns []float64, pf types.Portfolio, first, last time.Time) types.RunSummary {
	summary := types.RunSummary{
		Symbol:         cfg.Symbol,
		Interval:       cfg.Interval,
		Window:         cfg.Window,
		Step:           cfg.Step,
		Seed:           int64(cfg.Seed),
		InitialCapital: cfg.InitialCapital,
		FeeBps:         cfg.FeeBps,
		SlippageBps:    cfg.SlippageBps,
		StopLoss:       cfg.StopLoss,
		TakeProfit:     cfg.TakeProfit,
		FinalEquity:    pf.Equity,
		MaxDrawdown:    pf.MaxDrawdown,
	}

	summary.TotalReturn = pf.Equity/cfg.InitialCapital - 1

	summary.CAGR = cagr(cfg.InitialCapital, pf.Equity, first, last)

	mean, sd := meanStdev(stepReturns)

	if sd > 0 {
		summary.Sharpe = mean / sd * math.Sqrt(float64(len(stepReturns)))
		summary.AnnualizedVolatility = sd * math.Sqrt(stepsPerYear(cfg.Interval, cfg.Step))
	}

	if pf.MaxDrawdown < 0 {
		summary.Calmar = summary.CAGR / math.Abs(pf.MaxDrawdown)
	}

	var notional float64

	for _, trade := range trades {
		if trade.TradeShares != 0 {
			summary.TradeCount++
			notional += math.Abs(trade.TradeShares * trade.Price)
		}
	}

	summary.Turnover = notional / cfg.InitialCapital

	return summary
}

// cagr annualizes growth over elapsed calendar days, returning 0 when the
// elapsed time is zero or either equity endpoint is non-positive.
func cagr(initial, final float64, first, last time.Time) float64 {
	days := last.Sub(first).Hours() / 24
	if days <= 0 || initial <= 0 || final <= 0 {
		return 0
	}

	return math.Pow(final/initial, daysPerYear/days) - 1
}

func meanStdev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	mean := sum / float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}

	var sq float64

	for _, v := range values {
		d := v - mean
		sq += d * d
	}

	return mean, math.Sqrt(sq / float64(len(values)-1))
}

// stepsPerYear converts the bar interval and stride into an annualization
// factor for volatility.
func stepsPerYear(interval types.Interval, step int) float64 {
	if step < 1 {
		step = 1
	}

	per := time.Duration(step) * interval.Duration()

	return daysPerYear * 24 * float64(time.Hour) / float64(per)
}
