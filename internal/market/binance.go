package market

import (
	"context"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// binancePageSize is the maximum number of klines Binance returns per request.
const binancePageSize = 500

// BinanceProvider fetches klines from the Binance public API. Historical
// klines do not require credentials.
type BinanceProvider struct {
	client *binance.Client
	log    *logger.Logger
}

// NewBinanceProvider creates a Binance-backed provider.
func NewBinanceProvider(log *logger.Logger) *BinanceProvider {
	return &BinanceProvider{
		client: binance.NewClient("", ""),
		log:    log,
	}
}

// Fetch implements Provider. Binance caps each response at 500 klines, so the
// fetch paginates using the close time of the last kline plus one millisecond
// as the next start.
func (b *BinanceProvider) Fetch(ctx context.Context, req FetchRequest) ([]types.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	interval, err := binanceInterval(req.Interval)
	if err != nil {
		return nil, err
	}

	end := time.Now().UTC()
	if req.End.IsSome() {
		end = req.End.Unwrap()
	}

	start := end.Add(-time.Duration(2*req.Window) * req.Interval.Duration())
	if padded := req.lookbackStart(); padded.IsSome() {
		start = padded.Unwrap()
	}

	endMillis := end.UnixMilli()
	currentStart := start.UnixMilli()

	var bars []types.Bar

	for {
		klines, err := b.client.NewKlinesService().
			Symbol(req.Symbol).
			Interval(interval).
			StartTime(currentStart).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err,
				"failed to fetch klines for %s", req.Symbol)
		}

		for _, k := range klines {
			bar, err := klineToBar(k)
			if err != nil {
				return nil, err
			}

			bars = append(bars, bar)
		}

		if len(klines) < binancePageSize {
			break
		}

		// Advance past the close time of the last kline to avoid duplicates.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	b.log.Debug("Fetched binance klines",
		zap.String("symbol", req.Symbol),
		zap.Int("bars", len(bars)),
	)

	return AddIndicators(normalize(bars)), nil
}

func klineToBar(k *binance.Kline) (types.Bar, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid open price %q", k.Open)
	}

	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid high price %q", k.High)
	}

	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid low price %q", k.Low)
	}

	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid close price %q", k.Close)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err, "invalid volume %q", k.Volume)
	}

	return types.Bar{
		Time:   time.UnixMilli(k.OpenTime).UTC(),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}

func binanceInterval(interval types.Interval) (string, error) {
	switch interval {
	case types.Interval1Min:
		return "1m", nil
	case types.Interval5Min:
		return "5m", nil
	case types.Interval15Min:
		return "15m", nil
	case types.Interval1H:
		return "1h", nil
	case types.Interval1Day:
		return "1d", nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", interval)
	}
}
