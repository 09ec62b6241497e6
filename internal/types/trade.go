package types

import "time"

// Action labels recorded in the trade audit trail. BUY/SELL actions carry a
// percentage suffix (e.g. BUY_50) and are parsed by the simulator; the two
// synthetic actions are produced by risk checks, never by the decision round.
const (
	ActionHold       = "HOLD"
	ActionStopLoss   = "STOP_LOSS"
	ActionTakeProfit = "TAKE_PROFIT"
)

// TradeRecord is one row of the backtest audit trail: exactly one per
// processed bar, append-only. Field names follow the persisted run artifact.
type TradeRecord struct {
	Ts             time.Time `json:"ts" yaml:"ts"`
	Action         string    `json:"action" yaml:"action"`
	Price          float64   `json:"price" yaml:"price"`
	TradeShares    float64   `json:"trade_shares" yaml:"trade_shares"`
	PositionShares float64   `json:"position_shares" yaml:"position_shares"`
	Cash           float64   `json:"cash" yaml:"cash"`
	Equity         float64   `json:"equity" yaml:"equity"`
	Fee            float64   `json:"fee" yaml:"fee"`
	PnL            float64   `json:"pnl" yaml:"pnl"`
	CumulativePnL  float64   `json:"cumulative_pnl" yaml:"cumulative_pnl"`
	// MemoriesUsed counts the long-term entries consulted for this bar's
	// decision round.
	MemoriesUsed int `json:"memories_used" yaml:"memories_used"`
}
