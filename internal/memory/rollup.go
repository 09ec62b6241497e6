package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/llm"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

// rollup runs the compaction pass for one ticker. It is best-effort by
// contract: a failed summary or garbage collection leaves the index as it was
// and never fails the insert that triggered it.
func (e *Engine) rollup(ctx context.Context, ticker string, at time.Time) {
	if e.summ != nil {
		if err := e.summarizeOversight(ctx, ticker, at); err != nil {
			e.log.Warn("Rollup summary failed",
				zap.String("ticker", ticker),
				zap.Error(err),
			)
		}
	}

	if err := e.collectExpired(ctx, ticker, at); err != nil {
		e.log.Warn("Memory garbage collection failed",
			zap.String("ticker", ticker),
			zap.Error(err),
		)
	}
}

// summarizeOversight condenses the most recent oversight memories into one
// synthesized memory so long runs retain their arc after the raw entries age
// out.
func (e *Engine) summarizeOversight(ctx context.Context, ticker string, at time.Time) error {
	recent, err := e.index.Recent(ctx, Filter{Ticker: ticker, Roles: []types.Role{types.RoleOversight}}, e.cfg.RollupRecent)
	if err != nil {
		return err
	}

	if len(recent) < 2 {
		return nil
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "Condense the following %d oversight notes about %s into a single paragraph that preserves the strategy, the open risks, and how the stance changed over time.\n\n", len(recent), ticker)

	for i, rec := range recent {
		fmt.Fprintf(&sb, "Note %d (%s): %s\n", i+1, rec.CreatedAt.Format("2006-01-02"), rec.Content)
	}

	summary, err := e.summ.Generate(ctx, llm.GenerateRequest{Prompt: sb.String()})
	if err != nil {
		return err
	}

	summary = strings.TrimSpace(summary)
	if len(summary) < e.cfg.MinContentLen {
		return nil
	}

	vector, err := e.embedder.Embed(ctx, summary)
	if err != nil {
		return err
	}

	rec := Record{
		ID:        rollupID(ticker, at),
		Ticker:    ticker,
		Role:      types.RoleOversight,
		Content:   summary,
		Salience:  avgSalience(recent),
		CreatedAt: at,
	}

	if err := e.index.Insert(ctx, rec, vector); err != nil {
		return err
	}

	e.log.Info("Rolled up oversight memories",
		zap.String("ticker", ticker),
		zap.Int("condensed", len(recent)),
		zap.String("summary_id", rec.ID),
	)

	return nil
}

// collectExpired deletes memories past the TTL, at most GCBatch per pass.
func (e *Engine) collectExpired(ctx context.Context, ticker string, at time.Time) error {
	cutoff := at.Add(-time.Duration(e.cfg.TTLDays) * hoursPerDay * time.Hour)

	expired, err := e.index.Oldest(ctx, Filter{Ticker: ticker}, cutoff, e.cfg.GCBatch)
	if err != nil {
		return err
	}

	if len(expired) == 0 {
		return nil
	}

	ids := make([]string, len(expired))
	for i, rec := range expired {
		ids[i] = rec.ID
	}

	if err := e.index.Delete(ctx, ids); err != nil {
		return err
	}

	e.log.Info("Collected expired memories",
		zap.String("ticker", ticker),
		zap.Int("deleted", len(ids)),
	)

	return nil
}

// rollupID is deterministic so retried rollups overwrite rather than pile up.
func rollupID(ticker string, at time.Time) string {
	name := fmt.Sprintf("rollup-%s-%d", strings.ToLower(ticker), at.Unix())

	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func avgSalience(records []Record) float64 {
	if len(records) == 0 {
		return 0
	}

	var sum float64
	for _, rec := range records {
		sum += rec.Salience
	}

	return sum / float64(len(records))
}
