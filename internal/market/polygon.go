package market

import (
	"context"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// PolygonProvider fetches aggregate bars from the Polygon REST API. The aggs
// iterator paginates internally; Fetch merges all pages into one sorted,
// deduplicated series.
type PolygonProvider struct {
	client *polygon.Client
	log    *logger.Logger
}

// NewPolygonProvider creates a Polygon-backed provider.
func NewPolygonProvider(apiKey string, log *logger.Logger) (*PolygonProvider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "polygon api key is required")
	}

	return &PolygonProvider{
		client: polygon.New(apiKey),
		log:    log,
	}, nil
}

// Fetch implements Provider.
func (p *PolygonProvider) Fetch(ctx context.Context, req FetchRequest) ([]types.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	multiplier, timespan := polygonTimespan(req.Interval)

	end := time.Now().UTC()
	if req.End.IsSome() {
		end = req.End.Unwrap()
	}

	start := end.Add(-time.Duration(2*req.Window) * req.Interval.Duration())
	if padded := req.lookbackStart(); padded.IsSome() {
		start = padded.Unwrap()
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     req.Symbol,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(50000)

	iter := p.client.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		bars = append(bars, types.Bar{
			Time:   time.Time(agg.Timestamp),
			Open:   agg.Open,
			High:   agg.High,
			Low:    agg.Low,
			Close:  agg.Close,
			Volume: agg.Volume,
		})
	}

	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err,
			"failed to fetch polygon aggregates for %s", req.Symbol)
	}

	p.log.Debug("Fetched polygon aggregates",
		zap.String("symbol", req.Symbol),
		zap.Int("bars", len(bars)),
	)

	return AddIndicators(normalize(bars)), nil
}

func polygonTimespan(interval types.Interval) (int, models.Timespan) {
	switch interval {
	case types.Interval1Min:
		return 1, models.Minute
	case types.Interval5Min:
		return 5, models.Minute
	case types.Interval15Min:
		return 15, models.Minute
	case types.Interval1H:
		return 1, models.Hour
	case types.Interval1Day:
		return 1, models.Day
	default:
		return 1, models.Hour
	}
}
