package feedback

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/metrics"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

const (
	defaultSweepInterval = time.Minute
	defaultSweepBatch    = 50
	salienceScale        = 10.0
)

// PriceFunc resolves the market price for a ticker at or after the given
// time.
type PriceFunc func(ctx context.Context, ticker string, at time.Time) (float64, error)

// Sweeper polls the store for due checks, scores each decision against the
// later price, and records the outcome in long-term memory.
type Sweeper struct {
	store    Store
	mem      *memory.Engine
	price    PriceFunc
	log      *logger.Logger
	interval time.Duration
	batch    int
	now      func() time.Time
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval overrides the polling interval.
func WithSweepInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = d
	}
}

// WithSweepBatch overrides how many due checks one sweep handles.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		s.batch = n
	}
}

func withClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		s.now = now
	}
}

// NewSweeper builds a Sweeper. Run must be called to start polling.
func NewSweeper(store Store, mem *memory.Engine, price PriceFunc, log *logger.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		mem:      mem,
		price:    price,
		log:      log,
		interval: defaultSweepInterval,
		batch:    defaultSweepBatch,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run polls until ctx is cancelled. Errors inside a sweep are logged and do
// not stop the loop; the next tick tries again.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("feedback sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("batch", s.batch),
	)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("feedback sweeper stopped")

			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep processes one batch of due checks. Exported so callers can force a
// pass outside the polling loop.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()

	due, err := s.store.Due(ctx, now, s.batch)
	if err != nil {
		s.log.Warn("failed to fetch due checks", zap.Error(err))
		metrics.FeedbackSweeps.WithLabelValues("error").Inc()

		return
	}

	if len(due) == 0 {
		metrics.FeedbackSweeps.WithLabelValues("ok").Inc()

		return
	}

	var done []string

	for _, check := range due {
		if err := s.evaluate(ctx, check); err != nil {
			s.log.Warn("failed to evaluate check",
				zap.String("id", check.ID),
				zap.String("ticker", check.Ticker),
				zap.Error(err),
			)

			continue
		}

		done = append(done, check.ID)
	}

	if len(done) > 0 {
		if err := s.store.Complete(ctx, done); err != nil {
			s.log.Warn("failed to mark checks complete", zap.Error(err))
			metrics.FeedbackSweeps.WithLabelValues("error").Inc()

			return
		}
	}

	if len(done) < len(due) {
		metrics.FeedbackSweeps.WithLabelValues("error").Inc()
	} else {
		metrics.FeedbackSweeps.WithLabelValues("ok").Inc()
	}
}

func (s *Sweeper) evaluate(ctx context.Context, check Check) error {
	price, err := s.price(ctx, check.Ticker, check.CheckAt)
	if err != nil {
		return err
	}

	ret := realizedReturn(check, price)

	result, err := s.mem.Add(ctx, memory.AddRequest{
		Ticker:   check.Ticker,
		Role:     types.RoleFeedback,
		Content:  feedbackContent(check, price, ret),
		Salience: ret * salienceScale,
		At:       check.CheckAt,
	})
	if err != nil {
		return err
	}

	s.log.Info("recorded feedback",
		zap.String("ticker", check.Ticker),
		zap.String("action", check.Action),
		zap.Float64("return", ret),
		zap.String("memory_id", result.ID),
		zap.Bool("deduped", result.Deduped),
	)

	return nil
}

// realizedReturn measures how well the decision worked out: buys profit when
// the price rises, sells when it falls. Holds track raw price movement.
func realizedReturn(check Check, price float64) float64 {
	if check.DecisionPrice <= 0 {
		return 0
	}

	ret := (price - check.DecisionPrice) / check.DecisionPrice

	if strings.HasPrefix(strings.ToUpper(check.Action), "SELL") {
		return -ret
	}

	return ret
}

func feedbackContent(check Check, price float64, ret float64) string {
	verdict := "was correct"
	if ret < 0 {
		verdict = "was wrong"
	}

	return fmt.Sprintf(
		"Feedback on %s decision %s for %s on %s: price moved from %.2f to %.2f (%.2f%% realized), the decision %s.",
		check.Action,
		check.ID,
		check.Ticker,
		check.DecidedAt.Format("2006-01-02"),
		check.DecisionPrice,
		price,
		ret*100,
		verdict,
	)
}
