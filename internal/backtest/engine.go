package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/agent"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/market"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/metrics"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// feedbackSalienceScale converts the run's relative return into a salience
// value for the feedback memory.
const feedbackSalienceScale = 10

// RoundRunner produces one decision round per bar. *agent.Runner is the
// production implementation.
type RoundRunner interface {
	RunRound(ctx context.Context, input agent.RoundInput) (agent.RoundResult, error)
}

// Engine replays a price series bar by bar, consulting the round runner on
// each step and maintaining the cash/position ledger.
type Engine struct {
	provider market.Provider
	runner   RoundRunner
	mem      *memory.Engine
	log      *logger.Logger

	// OnStep, when set, observes loop progress for UI purposes.
	OnStep func(done, total int)
}

// NewEngine creates a backtest engine. mem may be nil to run memoryless.
func NewEngine(provider market.Provider, runner RoundRunner, mem *memory.Engine, log *logger.Logger) *Engine {
	return &Engine{
		provider: provider,
		runner:   runner,
		mem:      mem,
		log:      log,
	}
}

// Result is the full outcome of a run: the summary statistics and the
// append-only trade audit trail.
type Result struct {
	Summary types.RunSummary
	Trades  []types.TradeRecord
}

// Run executes the backtest described by cfg.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()

	result, err := e.run(ctx, cfg)

	status := "ok"
	if err != nil {
		status = "error"
	}

	metrics.BacktestRuns.WithLabelValues(cfg.Symbol, status).Inc()
	metrics.BacktestDuration.WithLabelValues(cfg.Symbol).Observe(time.Since(started).Seconds())

	return result, err
}

func (e *Engine) run(ctx context.Context, cfg Config) (*Result, error) {
	bars, firstIdx, err := e.fetchBars(ctx, cfg)
	if err != nil {
		return nil, err
	}

	state, err := NewState(e.log)
	if err != nil {
		return nil, err
	}
	defer state.Close()

	pf := types.NewPortfolio(cfg.InitialCapital)

	var stepReturns []float64

	total := (len(bars) - firstIdx + cfg.Step - 1) / cfg.Step
	done := 0

	for i := firstIdx; i < len(bars); i += cfg.Step {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		bar := bars[i]

		// Working memory is scoped to one step: each bar's round starts
		// with an empty transcript.
		round, err := e.runner.RunRound(ctx, agent.RoundInput{
			Ticker:    cfg.Symbol,
			Bar:       bar,
			Portfolio: pf,
			Working:   agent.NewWorkingMemory(cfg.Round.WorkingCapacity),
		})
		if err != nil {
			// The runner's own fallbacks make this unreachable in
			// practice; degrade to HOLD if it ever happens.
			e.log.Warn("Decision round failed, holding",
				zap.Time("bar", bar.Time),
				zap.Error(err),
			)

			round = agent.RoundResult{Decision: agent.DefaultTraderPayload()}
		}

		metrics.DecisionRounds.WithLabelValues(cfg.Symbol, round.Decision.Action).Inc()

		action := e.resolveAction(cfg, &pf, bar.Close, round.Decision.Action)

		prevEquity := pf.Equity
		trade := executeAction(cfg, &pf, bar, action)
		trade.MemoriesUsed = len(round.MemoriesUsed)

		if prevEquity > 0 {
			stepReturns = append(stepReturns, trade.PnL/prevEquity)
		}

		state.Record(trade)

		done++
		if e.OnStep != nil {
			e.OnStep(done, total)
		}
	}

	summary := computeStats(cfg, state.Trades(), stepReturns, pf, bars[firstIdx].Time, bars[len(bars)-1].Time)
	summary.ID = state.RunID()
	summary.Timestamp = time.Now().UTC()

	e.persistFeedback(ctx, cfg, summary, bars[len(bars)-1].Time)

	if cfg.ArtifactDir != "" {
		if err := state.WriteArtifact(cfg.ArtifactDir, summary); err != nil {
			// The in-memory result is intact; the artifact is a copy.
			e.log.Warn("Failed to write run artifact", zap.Error(err))
		}
	}

	return &Result{Summary: summary, Trades: state.Trades()}, nil
}

// fetchBars loads the series and locates the first tradeable index, which
// must have a full window of history behind it.
func (e *Engine) fetchBars(ctx context.Context, cfg Config) ([]types.Bar, int, error) {
	bars, err := e.provider.Fetch(ctx, market.FetchRequest{
		Symbol:   cfg.Symbol,
		Window:   cfg.Window,
		Interval: cfg.Interval,
		Start:    cfg.Start,
		End:      cfg.End,
	})
	if err != nil {
		return nil, 0, err
	}

	if len(bars) == 0 {
		return nil, 0, errors.New(errors.ErrCodeNoTradableBars, "provider returned no bars")
	}

	firstIdx := cfg.Window

	if cfg.Start.IsSome() {
		start := cfg.Start.Unwrap()
		firstIdx = len(bars)

		for i, bar := range bars {
			if !bar.Time.Before(start) {
				firstIdx = i

				break
			}
		}
	}

	if firstIdx < cfg.Window {
		return nil, 0, errors.Newf(errors.ErrCodeInsufficientHistory,
			"only %d bars of history before the requested start, need %d", firstIdx, cfg.Window)
	}

	if firstIdx >= len(bars) {
		return nil, 0, errors.New(errors.ErrCodeNoTradableBars, "no tradeable bars in the requested range")
	}

	return bars, firstIdx, nil
}

// resolveAction applies the risk check, which takes priority over whatever
// the round proposed, then falls through to normal action parsing.
func (e *Engine) resolveAction(cfg Config, pf *types.Portfolio, price float64, proposed string) Action {
	if pf.Position > 0 && pf.EntryPrice > 0 {
		ret := pf.ReturnSinceEntry(price)

		if cfg.StopLoss < 0 && ret <= cfg.StopLoss {
			return Action{Label: types.ActionStopLoss, SellPct: 100}
		}

		if cfg.TakeProfit > 0 && ret >= cfg.TakeProfit {
			return Action{Label: types.ActionTakeProfit, SellPct: 100}
		}
	}

	return ParseAction(proposed)
}

// executeAction moves the ledger at the bar's close price and returns the
// trade record. Decimal arithmetic keeps the cash column exact under
// repeated percentage trades.
func executeAction(cfg Config, pf *types.Portfolio, bar types.Bar, action Action) types.TradeRecord {
	price := decimal.NewFromFloat(bar.Close)
	cash := decimal.NewFromFloat(pf.Cash)
	position := decimal.NewFromFloat(pf.Position)
	oldPosition := position
	hundred := decimal.NewFromInt(100)

	switch {
	case action.BuyPct > 0 && price.IsPositive():
		spend := cash.Mul(decimal.NewFromFloat(action.BuyPct)).Div(hundred)
		position = position.Add(spend.Div(price))
		cash = cash.Sub(spend)
	case action.SellPct > 0:
		// Clamp to held shares; a sell on an empty book is a no-op.
		sold := position.Mul(decimal.NewFromFloat(action.SellPct)).Div(hundred)
		position = position.Sub(sold)
		cash = cash.Add(sold.Mul(price))
	}

	delta := position.Sub(oldPosition)

	bps := decimal.NewFromFloat(cfg.FeeBps + cfg.SlippageBps)
	fee := delta.Mul(price).Abs().Mul(bps).Div(decimal.NewFromInt(10000))
	cash = cash.Sub(fee)

	pf.Cash, _ = cash.Float64()
	pf.Position, _ = position.Float64()

	if oldPosition.IsZero() && position.IsPositive() {
		pf.EntryPrice = bar.Close
	}

	if position.IsZero() {
		pf.EntryPrice = 0
	}

	prevEquity := pf.Equity
	pf.MarkToMarket(bar.Close)

	feeF, _ := fee.Float64()
	deltaF, _ := delta.Float64()

	return types.TradeRecord{
		Ts:             bar.Time,
		Action:         action.Label,
		Price:          bar.Close,
		TradeShares:    deltaF,
		PositionShares: pf.Position,
		Cash:           pf.Cash,
		Equity:         pf.Equity,
		Fee:            feeF,
		PnL:            pf.Equity - prevEquity,
		CumulativePnL:  pf.Equity - cfg.InitialCapital,
	}
}

// persistFeedback writes the run's outcome as a feedback memory so future
// rounds on the same symbol can recall how this configuration fared.
// Best-effort: failures are logged and swallowed.
func (e *Engine) persistFeedback(ctx context.Context, cfg Config, summary types.RunSummary, at time.Time) {
	if e.mem == nil || !cfg.UseMemory {
		return
	}

	content := fmt.Sprintf(
		"Backtest %s on %s finished with equity %.2f on %.2f initial, total return %+.4f, max drawdown %.4f over %d trades.",
		summary.ID, cfg.Symbol, summary.FinalEquity, cfg.InitialCapital,
		summary.TotalReturn, summary.MaxDrawdown, summary.TradeCount,
	)

	res, err := e.mem.Add(ctx, memory.AddRequest{
		Ticker:   cfg.Symbol,
		Role:     types.RoleFeedback,
		Content:  content,
		Salience: summary.TotalReturn * feedbackSalienceScale,
		At:       at,
	})
	if err != nil {
		metrics.MemoryWrites.WithLabelValues(string(types.RoleFeedback), "error").Inc()
		e.log.Warn("Failed to persist run feedback", zap.Error(err))

		return
	}

	outcome := "inserted"

	switch {
	case res.Deduped:
		outcome = "deduped"
	case res.Skipped:
		outcome = "skipped"
	}

	metrics.MemoryWrites.WithLabelValues(string(types.RoleFeedback), outcome).Inc()
}

// EvaluatePoint runs a single decision round at the most recent bar of the
// configured range: the same machinery as a full run, with window history
// feeding the round but no ledger mutation and no trade recorded.
func (e *Engine) EvaluatePoint(ctx context.Context, cfg Config) (*agent.RoundResult, types.Bar, error) {
	if err := cfg.Validate(); err != nil {
		return nil, types.Bar{}, err
	}

	bars, _, err := e.fetchBars(ctx, cfg)
	if err != nil {
		return nil, types.Bar{}, err
	}

	bar := bars[len(bars)-1]

	round, err := e.runner.RunRound(ctx, agent.RoundInput{
		Ticker:    cfg.Symbol,
		Bar:       bar,
		Portfolio: types.NewPortfolio(cfg.InitialCapital),
		Working:   agent.NewWorkingMemory(cfg.Round.WorkingCapacity),
	})
	if err != nil {
		return nil, types.Bar{}, err
	}

	metrics.DecisionRounds.WithLabelValues(cfg.Symbol, round.Decision.Action).Inc()

	return &round, bar, nil
}
