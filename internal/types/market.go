package types

import "time"

// Bar is one OHLCV record at a fixed timestamp plus the derived indicators
// computed from the bars before it. Bars are immutable once fetched and
// always ordered by Time ascending.
type Bar struct {
	Time   time.Time `json:"time" csv:"time"`
	Open   float64   `json:"open" csv:"open"`
	High   float64   `json:"high" csv:"high"`
	Low    float64   `json:"low" csv:"low"`
	Close  float64   `json:"close" csv:"close"`
	Volume float64   `json:"volume" csv:"volume"`

	// Derived indicators. Zero until enough history exists for the window.
	SMA20          float64 `json:"sma_20" csv:"sma_20"`
	SMA50          float64 `json:"sma_50" csv:"sma_50"`
	RSI14          float64 `json:"rsi_14" csv:"rsi_14"`
	BollingerUpper float64 `json:"bollinger_upper" csv:"bollinger_upper"`
	BollingerLower float64 `json:"bollinger_lower" csv:"bollinger_lower"`
}

// Interval is the bar interval of a price series.
type Interval string

const (
	Interval1Min  Interval = "1min"
	Interval5Min  Interval = "5min"
	Interval15Min Interval = "15min"
	Interval1H    Interval = "1h"
	Interval1Day  Interval = "1day"
)

// SupportedIntervals lists every interval the price providers accept.
var SupportedIntervals = []Interval{Interval1Min, Interval5Min, Interval15Min, Interval1H, Interval1Day}

// IsValid reports whether the interval is one of the supported values.
func (i Interval) IsValid() bool {
	for _, v := range SupportedIntervals {
		if i == v {
			return true
		}
	}

	return false
}

// Duration returns the wall-clock length of one bar.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval1Min:
		return time.Minute
	case Interval5Min:
		return 5 * time.Minute
	case Interval15Min:
		return 15 * time.Minute
	case Interval1H:
		return time.Hour
	case Interval1Day:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}
