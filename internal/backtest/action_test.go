package backtest

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type ActionTestSuite struct {
	suite.Suite
}

func TestActionSuite(t *testing.T) {
	suite.Run(t, new(ActionTestSuite))
}

func (suite *ActionTestSuite) TestParseAction() {
	cases := []struct {
		raw  string
		want Action
	}{
		{"HOLD", Hold()},
		{"hold", Hold()},
		{" BUY_25 ", Action{Label: "BUY_25", BuyPct: 25}},
		{"buy_100", Action{Label: "BUY_100", BuyPct: 100}},
		{"SELL_50", Action{Label: "SELL_50", SellPct: 50}},
		{"BUY_0", Hold()},
		{"BUY_150", Hold()},
		{"SELL_-10", Hold()},
		{"BUY_abc", Hold()},
		{"SHORT_50", Hold()},
		{"", Hold()},
		{"do nothing", Hold()},
	}

	for _, tc := range cases {
		suite.Equal(tc.want, ParseAction(tc.raw), "raw %q", tc.raw)
	}
}
