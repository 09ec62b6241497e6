package backtest

import (
	"strconv"
	"strings"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

// Action is a normalized trade instruction for one bar.
type Action struct {
	// Label is what the trade record carries: HOLD, BUY_n, SELL_n, or a
	// synthetic STOP_LOSS/TAKE_PROFIT.
	Label string
	// BuyPct and SellPct are in (0, 100]. At most one is non-zero.
	BuyPct  float64
	SellPct float64
}

// Hold is the no-op action.
func Hold() Action {
	return Action{Label: types.ActionHold}
}

// ParseAction normalizes a raw action string. BUY_n spends n percent of cash,
// SELL_n sells n percent of held shares, HOLD does nothing. Anything
// malformed, out of range, or unrecognized degrades to HOLD so a garbled
// decision can never move the portfolio.
func ParseAction(raw string) Action {
	s := strings.ToUpper(strings.TrimSpace(raw))

	switch {
	case s == types.ActionHold:
		return Hold()
	case strings.HasPrefix(s, "BUY_"):
		if pct, ok := parsePct(strings.TrimPrefix(s, "BUY_")); ok {
			return Action{Label: s, BuyPct: pct}
		}
	case strings.HasPrefix(s, "SELL_"):
		if pct, ok := parsePct(strings.TrimPrefix(s, "SELL_")); ok {
			return Action{Label: s, SellPct: pct}
		}
	}

	return Hold()
}

func parsePct(s string) (float64, bool) {
	pct, err := strconv.ParseFloat(s, 64)
	if err != nil || pct <= 0 || pct > 100 {
		return 0, false
	}

	return pct, true
}
