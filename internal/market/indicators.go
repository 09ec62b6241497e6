package market

import (
	"math"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

const (
	smaShortPeriod  = 20
	smaLongPeriod   = 50
	rsiPeriod       = 14
	bollingerPeriod = 20
	bollingerWidth  = 2.0
)

// AddIndicators derives SMA, RSI and Bollinger bands for every bar using only
// the bars at or before it. Bars without enough history keep zero values.
func AddIndicators(bars []types.Bar) []types.Bar {
	out := make([]types.Bar, len(bars))
	copy(out, bars)

	for i := range out {
		if i+1 >= smaShortPeriod {
			out[i].SMA20 = mean(closes(out[i+1-smaShortPeriod : i+1]))
		}

		if i+1 >= smaLongPeriod {
			out[i].SMA50 = mean(closes(out[i+1-smaLongPeriod : i+1]))
		}

		if i+1 >= bollingerPeriod {
			window := closes(out[i+1-bollingerPeriod : i+1])
			mid := mean(window)
			sd := stdev(window, mid)
			out[i].BollingerUpper = mid + bollingerWidth*sd
			out[i].BollingerLower = mid - bollingerWidth*sd
		}

		if i >= rsiPeriod {
			out[i].RSI14 = rsi(out[i-rsiPeriod:i+1])
		}
	}

	return out
}

func closes(bars []types.Bar) []float64 {
	values := make([]float64, len(bars))
	for i, bar := range bars {
		values[i] = bar.Close
	}

	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

func stdev(values []float64, avg float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		d := v - avg
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)-1))
}

// rsi computes a simple-average RSI over the closes of the given bars, the
// last bar being the one the value is attached to.
func rsi(bars []types.Bar) float64 {
	var gains, losses float64

	for i := 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	n := float64(len(bars) - 1)
	if n == 0 {
		return 0
	}

	avgGain := gains / n
	avgLoss := losses / n

	rs := avgGain / (avgLoss + 1e-9)

	return 100 - 100/(1+rs)
}
