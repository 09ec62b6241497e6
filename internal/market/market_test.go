package market

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

type MarketTestSuite struct {
	suite.Suite
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(MarketTestSuite))
}

func (suite *MarketTestSuite) TestValidateRejectsBadRequests() {
	cases := []struct {
		name string
		req  FetchRequest
		code errors.ErrorCode
	}{
		{
			name: "missing symbol",
			req:  FetchRequest{Window: 10, Interval: types.Interval1H},
			code: errors.ErrCodeMissingParameter,
		},
		{
			name: "non-positive window",
			req:  FetchRequest{Symbol: "AAPL", Window: 0, Interval: types.Interval1H},
			code: errors.ErrCodeInvalidParameter,
		},
		{
			name: "unknown interval",
			req:  FetchRequest{Symbol: "AAPL", Window: 10, Interval: types.Interval("3week")},
			code: errors.ErrCodeInvalidInterval,
		},
		{
			name: "start after end",
			req: FetchRequest{
				Symbol:   "AAPL",
				Window:   10,
				Interval: types.Interval1H,
				Start:    optional.Some(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)),
				End:      optional.Some(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			},
			code: errors.ErrCodeInvalidDateRange,
		},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			err := tc.req.Validate()
			suite.Require().Error(err)

			var typed *errors.Error
			suite.Require().ErrorAs(err, &typed)
			suite.Equal(tc.code, typed.Code)
		})
	}
}

func (suite *MarketTestSuite) TestNormalizeSortsAndDeduplicates() {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Time: t0.Add(2 * time.Hour), Close: 3},
		{Time: t0, Close: 1},
		{Time: t0.Add(time.Hour), Close: 2},
		{Time: t0.Add(time.Hour), Close: 99},
		{Time: t0, Close: 98},
	}

	got := normalize(bars)

	suite.Require().Len(got, 3)
	suite.Equal(1.0, got[0].Close)
	suite.Equal(2.0, got[1].Close)
	suite.Equal(3.0, got[2].Close)

	for i := 1; i < len(got); i++ {
		suite.True(got[i-1].Time.Before(got[i].Time))
	}
}

func (suite *MarketTestSuite) TestIndicatorsRespectWarmup() {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]types.Bar, 60)
	for i := range bars {
		bars[i] = types.Bar{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Close: 100 + float64(i),
		}
	}

	got := AddIndicators(bars)

	// Bars before the window fills keep zero values.
	suite.Zero(got[18].SMA20)
	suite.Zero(got[48].SMA50)
	suite.Zero(got[13].RSI14)
	suite.Zero(got[18].BollingerUpper)

	// Linear closes 100..119 average to 109.5 at index 19.
	suite.InDelta(109.5, got[19].SMA20, 1e-9)
	suite.InDelta(124.5, got[49].SMA50, 1e-9)

	// Monotonically rising closes saturate RSI near 100.
	suite.Greater(got[20].RSI14, 99.0)

	// Bands bracket the mid for any non-constant window.
	suite.Greater(got[25].BollingerUpper, got[25].SMA20)
	suite.Less(got[25].BollingerLower, got[25].SMA20)
}

func (suite *MarketTestSuite) TestStubProviderIsDeterministic() {
	req := FetchRequest{Symbol: "AAPL", Window: 30, Interval: types.Interval1H}

	first, err := NewStubProvider().Fetch(context.Background(), req)
	suite.Require().NoError(err)

	second, err := NewStubProvider().Fetch(context.Background(), req)
	suite.Require().NoError(err)

	suite.Require().Equal(len(first), len(second))
	suite.Equal(first, second)
	suite.Len(first, 60)

	other, err := NewStubProvider().Fetch(context.Background(), FetchRequest{
		Symbol:   "MSFT",
		Window:   30,
		Interval: types.Interval1H,
	})
	suite.Require().NoError(err)
	suite.NotEqual(first[0].Close, other[0].Close)
}

func (suite *MarketTestSuite) TestStubProviderCoversRequestedSpan() {
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC)

	bars, err := NewStubProvider().Fetch(context.Background(), FetchRequest{
		Symbol:   "AAPL",
		Window:   12,
		Interval: types.Interval1H,
		Start:    optional.Some(start),
		End:      optional.Some(end),
	})
	suite.Require().NoError(err)

	suite.Require().NotEmpty(bars)
	suite.False(bars[0].Time.After(start), "series must include lookback history before start")
	suite.Equal(end, bars[len(bars)-1].Time)

	var before int

	for _, bar := range bars {
		if bar.Time.Before(start) {
			before++
		}
	}

	suite.GreaterOrEqual(before, 12)
}

type failingProvider struct{}

func (failingProvider) Fetch(context.Context, FetchRequest) ([]types.Bar, error) {
	return nil, errors.New(errors.ErrCodeMarketDataFetchFailed, "upstream exploded")
}

func (suite *MarketTestSuite) TestFallbackDegradesToStub() {
	var seen error

	provider := &WithFallback{
		Primary: failingProvider{},
		OnError: func(err error) { seen = err },
	}

	bars, err := provider.Fetch(context.Background(), FetchRequest{
		Symbol:   "AAPL",
		Window:   20,
		Interval: types.Interval1H,
	})
	suite.Require().NoError(err)
	suite.NotEmpty(bars)
	suite.Require().Error(seen)
}

func (suite *MarketTestSuite) TestFallbackPropagatesValidationErrors() {
	provider := &WithFallback{Primary: failingProvider{}}

	_, err := provider.Fetch(context.Background(), FetchRequest{Window: 20, Interval: types.Interval1H})
	suite.Require().Error(err)

	var typed *errors.Error
	suite.Require().ErrorAs(err, &typed)
	suite.Equal(errors.ErrCodeMissingParameter, typed.Code)
}
