package types

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type PortfolioTestSuite struct {
	suite.Suite
}

func TestPortfolioSuite(t *testing.T) {
	suite.Run(t, new(PortfolioTestSuite))
}

func (suite *PortfolioTestSuite) TestNewPortfolio() {
	p := NewPortfolio(10000)
	suite.Equal(10000.0, p.Cash)
	suite.Zero(p.Position)
	suite.Zero(p.EntryPrice)
	suite.Equal(10000.0, p.Equity)
	suite.Equal(10000.0, p.Peak)
	suite.Zero(p.MaxDrawdown)
}

func (suite *PortfolioTestSuite) TestMarkToMarketEquityIdentity() {
	p := NewPortfolio(10000)
	p.Cash = 1000
	p.Position = 90

	p.MarkToMarket(100)
	suite.InDelta(1000+90*100, p.Equity, 1e-9)
}

func (suite *PortfolioTestSuite) TestDrawdownMonotone() {
	p := NewPortfolio(10000)
	p.Position = 100
	p.Cash = 0

	// New peak at 110, trough at 90, partial recovery at 100.
	p.MarkToMarket(110)
	suite.Equal(11000.0, p.Peak)

	p.MarkToMarket(90)
	firstDrawdown := p.MaxDrawdown
	suite.InDelta(9000.0/11000.0-1, firstDrawdown, 1e-9)

	p.MarkToMarket(100)
	suite.Equal(firstDrawdown, p.MaxDrawdown, "recovery must not shrink max drawdown")

	p.MarkToMarket(80)
	suite.Less(p.MaxDrawdown, firstDrawdown, "new trough must deepen max drawdown")
}

func (suite *PortfolioTestSuite) TestReturnSinceEntry() {
	p := NewPortfolio(10000)
	suite.Zero(p.ReturnSinceEntry(100), "flat portfolio has no entry return")

	p.Position = 10
	p.EntryPrice = 100
	suite.InDelta(-0.10, p.ReturnSinceEntry(90), 1e-9)
	suite.InDelta(0.05, p.ReturnSinceEntry(105), 1e-9)
}
