package market

import (
	"context"
	"sort"
	"time"

	"github.com/moznion/go-optional"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// FetchRequest describes one price series request. Window is the number of
// lookback bars the caller needs before Start; providers extend the fetched
// range so the caller receives at least that much prior history when it
// exists.
type FetchRequest struct {
	Symbol   string
	Window   int
	Interval types.Interval
	Start    optional.Option[time.Time]
	End      optional.Option[time.Time]
}

// Provider supplies an ordered, indexed OHLCV series with derived indicators.
// Implementations must return a single merged, deduplicated, time-sorted
// slice regardless of how many pages they fetched internally.
type Provider interface {
	Fetch(ctx context.Context, req FetchRequest) ([]types.Bar, error)
}

// Validate rejects malformed requests before any network call.
func (r FetchRequest) Validate() error {
	if r.Symbol == "" {
		return errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if r.Window <= 0 {
		return errors.Newf(errors.ErrCodeInvalidParameter, "window must be positive, got %d", r.Window)
	}

	if !r.Interval.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", r.Interval)
	}

	if r.Start.IsSome() && r.End.IsSome() && r.Start.Unwrap().After(r.End.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidDateRange, "start date is after end date")
	}

	return nil
}

// lookbackStart returns the point providers should begin fetching from so the
// requested Start keeps Window bars of history behind it.
func (r FetchRequest) lookbackStart() optional.Option[time.Time] {
	if r.Start.IsNone() {
		return optional.None[time.Time]()
	}

	pad := time.Duration(r.Window) * r.Interval.Duration()

	return optional.Some(r.Start.Unwrap().Add(-pad))
}

// normalize sorts bars ascending by time and drops duplicate timestamps,
// keeping the first occurrence. Providers call this on their merged pages.
func normalize(bars []types.Bar) []types.Bar {
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Time.Before(bars[j].Time)
	})

	out := bars[:0]

	var last time.Time

	for _, bar := range bars {
		if !last.IsZero() && bar.Time.Equal(last) {
			continue
		}

		out = append(out, bar)
		last = bar.Time
	}

	return out
}
