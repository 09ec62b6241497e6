package market

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

// stubAnchor is the fixed end time for open-ended stub requests so the series
// is identical across processes.
var stubAnchor = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// StubProvider generates a deterministic synthetic price series seeded by the
// symbol name. It stands in for a real provider when the network is
// unavailable so pipelines remain testable offline.
type StubProvider struct {
	// BasePrice for the random walk. Defaults to 100 when zero.
	BasePrice float64
}

// NewStubProvider returns a stub provider with the default base price.
func NewStubProvider() *StubProvider {
	return &StubProvider{BasePrice: 100}
}

// Fetch implements Provider. The walk depends only on the symbol and the
// requested range, never on wall-clock time.
func (s *StubProvider) Fetch(_ context.Context, req FetchRequest) ([]types.Bar, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	step := req.Interval.Duration()

	end := stubAnchor
	if req.End.IsSome() {
		end = req.End.Unwrap().Truncate(step)
	}

	count := 2 * req.Window
	if req.Start.IsSome() {
		span := int(end.Sub(req.Start.Unwrap())/step) + 1
		if span > 0 {
			count = span + req.Window
		}
	}

	base := s.BasePrice
	if base <= 0 {
		base = 100
	}

	h := fnv.New64a()
	h.Write([]byte(req.Symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	bars := make([]types.Bar, 0, count)
	price := base

	start := end.Add(-time.Duration(count-1) * step)

	for i := 0; i < count; i++ {
		drift := (rng.Float64() - 0.5) * 0.02 * price
		open := price
		price += drift

		high := open
		if price > high {
			high = price
		}

		low := open
		if price < low {
			low = price
		}

		bars = append(bars, types.Bar{
			Time:   start.Add(time.Duration(i) * step),
			Open:   open,
			High:   high * 1.001,
			Low:    low * 0.999,
			Close:  price,
			Volume: 1000 + rng.Float64()*500,
		})
	}

	return AddIndicators(normalize(bars)), nil
}

// WithFallback wraps a provider so fetch failures degrade to the
// deterministic stub series instead of propagating to the simulator.
type WithFallback struct {
	Primary Provider
	Stub    *StubProvider
	OnError func(error)
}

// Fetch implements Provider.
func (w *WithFallback) Fetch(ctx context.Context, req FetchRequest) ([]types.Bar, error) {
	if err := req.Validate(); err != nil {
		// Validation failures propagate; the stub never masks caller bugs.
		return nil, err
	}

	bars, err := w.Primary.Fetch(ctx, req)
	if err == nil && len(bars) > 0 {
		return bars, nil
	}

	if err != nil && w.OnError != nil {
		w.OnError(err)
	}

	stub := w.Stub
	if stub == nil {
		stub = NewStubProvider()
	}

	return stub.Fetch(ctx, req)
}
