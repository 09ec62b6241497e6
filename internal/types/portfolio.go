package types

// Portfolio is the cash/position ledger mutated once per bar by the backtest
// simulator. It is never shared between concurrent runs.
type Portfolio struct {
	// Cash in the account currency. Conceptually non-negative; it may dip
	// below zero only through fees.
	Cash float64 `json:"cash" yaml:"cash"`
	// Position is the number of shares held. Spot model only, never negative.
	Position float64 `json:"position" yaml:"position"`
	// EntryPrice is the price at which the current position was opened.
	// Zero whenever Position is zero.
	EntryPrice float64 `json:"entry_price" yaml:"entry_price"`
	// Equity is Cash + Position x latest close, recomputed every bar.
	Equity float64 `json:"equity" yaml:"equity"`
	// Peak is the highest equity observed so far.
	Peak float64 `json:"peak" yaml:"peak"`
	// MaxDrawdown is the worst fractional fall from Peak, always <= 0.
	MaxDrawdown float64 `json:"max_drawdown" yaml:"max_drawdown"`
}

// NewPortfolio returns a ledger holding only cash.
func NewPortfolio(initialCapital float64) Portfolio {
	return Portfolio{
		Cash:        initialCapital,
		Position:    0,
		EntryPrice:  0,
		Equity:      initialCapital,
		Peak:        initialCapital,
		MaxDrawdown: 0,
	}
}

// MarkToMarket recomputes equity at the given price and updates the running
// peak and drawdown. Drawdown is monotone: it only worsens or stays put.
func (p *Portfolio) MarkToMarket(price float64) {
	p.Equity = p.Cash + p.Position*price

	if p.Equity > p.Peak {
		p.Peak = p.Equity
	}

	if p.Peak > 0 {
		drawdown := p.Equity/p.Peak - 1
		if drawdown < p.MaxDrawdown {
			p.MaxDrawdown = drawdown
		}
	}
}

// ReturnSinceEntry returns the signed fractional move from the entry price to
// the given price, or zero when no position is open.
func (p *Portfolio) ReturnSinceEntry(price float64) float64 {
	if p.Position <= 0 || p.EntryPrice <= 0 {
		return 0
	}

	return (price - p.EntryPrice) / p.EntryPrice
}
