package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/llm"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/metrics"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

// RoundConfig tunes the decision round.
type RoundConfig struct {
	// Debates is how many bull/bear exchanges run before the trading turn.
	Debates int `yaml:"debates" json:"debates" validate:"gt=0"`
	// MaxRetries is how many extra generation attempts a turn gets when the
	// output fails to parse, before the turn falls back to its default.
	MaxRetries int `yaml:"max_retries" json:"max_retries" validate:"gte=0"`
	// Seed pins generation for reproducible runs.
	Seed int `yaml:"seed" json:"seed"`
	// PersistAnalystTurns also writes debate and trading turns to long-term
	// memory. Off by default: only oversight and retrospective survive the
	// round, keeping the index dominated by synthesized reports.
	PersistAnalystTurns bool `yaml:"persist_analyst_turns" json:"persist_analyst_turns"`
	// RetrieveTopK memories feed each round's prompts.
	RetrieveTopK int `yaml:"retrieve_top_k" json:"retrieve_top_k" validate:"gte=0"`
	// WorkingCapacity is the entry limit of the per-run working memory.
	WorkingCapacity int `yaml:"working_capacity" json:"working_capacity" validate:"gt=0"`
}

// DefaultRoundConfig returns the round defaults.
func DefaultRoundConfig() RoundConfig {
	return RoundConfig{
		Debates:         1,
		MaxRetries:      2,
		Seed:            42,
		RetrieveTopK:    5,
		WorkingCapacity: 8,
	}
}

// Runner executes decision rounds: a bull/bear debate, a trading decision,
// an oversight synthesis, and a retrospective, with long-term memory feeding
// the prompts and selected turns written back.
type Runner struct {
	svc llm.Service
	mem *memory.Engine
	cfg RoundConfig
	log *logger.Logger
}

// NewRunner creates a round runner.
func NewRunner(svc llm.Service, mem *memory.Engine, cfg RoundConfig, log *logger.Logger) *Runner {
	return &Runner{svc: svc, mem: mem, cfg: cfg, log: log}
}

// RoundInput is the state of the world for one round.
type RoundInput struct {
	Ticker    string
	Bar       types.Bar
	Portfolio types.Portfolio
	Working   *WorkingMemory
}

// RoundResult is everything a round produced.
type RoundResult struct {
	Decision      TraderPayload
	Oversight     OversightPayload
	Retrospective RetrospectivePayload
	// MemoriesUsed lists the long-term memory IDs that fed the prompts.
	MemoriesUsed []string
}

// RunRound executes one full decision round at the given bar.
func (r *Runner) RunRound(ctx context.Context, input RoundInput) (RoundResult, error) {
	retrieved, err := r.retrieve(ctx, input)
	if err != nil {
		// Retrieval trouble degrades to an empty memory section rather
		// than skipping the round.
		r.log.Warn("Memory retrieval failed for round",
			zap.String("ticker", input.Ticker),
			zap.Error(err),
		)

		retrieved = nil
	}

	pc := promptContext{
		Ticker:    input.Ticker,
		Bar:       input.Bar,
		Portfolio: input.Portfolio,
		Retrieved: retrieved,
	}
	if input.Working != nil {
		pc.Working = input.Working.Snapshot()
	}

	bullCase, bearCase := r.debate(ctx, pc, input)

	decision := r.decide(ctx, pc, input, bullCase, bearCase)

	oversight := r.oversee(ctx, pc, input, decision)

	retrospective := r.reflect(ctx, pc, input, decision, oversight)

	result := RoundResult{
		Decision:      decision,
		Oversight:     oversight,
		Retrospective: retrospective,
	}

	for _, hit := range retrieved {
		result.MemoriesUsed = append(result.MemoriesUsed, hit.Record.ID)
	}

	return result, nil
}

func (r *Runner) retrieve(ctx context.Context, input RoundInput) ([]memory.ScoredMemory, error) {
	if r.mem == nil || r.cfg.RetrieveTopK == 0 {
		return nil, nil
	}

	query := fmt.Sprintf("%s price %.4f trend and positioning", input.Ticker, input.Bar.Close)

	hits, err := r.mem.Search(ctx, memory.SearchRequest{
		Ticker: input.Ticker,
		Query:  query,
		TopK:   r.cfg.RetrieveTopK,
		AsOf:   input.Bar.Time,
	})
	if err != nil {
		return nil, err
	}

	metrics.MemorySearchResults.WithLabelValues(input.Ticker).Observe(float64(len(hits)))

	return hits, nil
}

// debate runs the bull side Debates times, each pass refining the last, then
// gives the bear side exactly one rebuttal against the final bull case.
func (r *Runner) debate(ctx context.Context, pc promptContext, input RoundInput) (string, string) {
	var bullCase string

	for round := 1; round <= r.cfg.Debates; round++ {
		var bull AnalystPayload
		r.generateInto(ctx, input, types.RoleBullish, bullishSystemPrompt,
			analystPrompt(pc, "bull", round, r.cfg.Debates, bullCase), &bull, DefaultAnalystPayload())
		bullCase = bull.Summary
	}

	var bear AnalystPayload
	r.generateInto(ctx, input, types.RoleBearish, bearishSystemPrompt,
		analystPrompt(pc, "bear", 1, 1, bullCase), &bear, DefaultAnalystPayload())

	return bullCase, bear.Summary
}

func (r *Runner) decide(ctx context.Context, pc promptContext, input RoundInput, bullCase, bearCase string) TraderPayload {
	var decision TraderPayload
	r.generateInto(ctx, input, types.RoleTrading, tradingSystemPrompt,
		tradingPrompt(pc, bullCase, bearCase), &decision, DefaultTraderPayload())

	return decision
}

func (r *Runner) oversee(ctx context.Context, pc promptContext, input RoundInput, decision TraderPayload) OversightPayload {
	var oversight OversightPayload
	r.generateInto(ctx, input, types.RoleOversight, oversightSystemPrompt,
		oversightPrompt(pc, decision), &oversight, DefaultOversightPayload())

	return oversight
}

func (r *Runner) reflect(ctx context.Context, pc promptContext, input RoundInput, decision TraderPayload, oversight OversightPayload) RetrospectivePayload {
	var retrospective RetrospectivePayload
	r.generateInto(ctx, input, types.RoleRetrospective, retrospectiveSystemPrompt,
		retrospectivePrompt(pc, decision, oversight), &retrospective, DefaultRetrospectivePayload())

	return retrospective
}

// generateInto runs one turn: generate, parse, retry on parse failure, fall
// back to the default payload when attempts are exhausted, then apply the
// persistence policy. fallback must be assignable to out's element type.
func (r *Runner) generateInto(ctx context.Context, input RoundInput, role types.Role, system, prompt string, out any, fallback any) {
	parsed := false

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		raw, err := r.svc.Generate(ctx, llm.GenerateRequest{
			SystemPrompt: system,
			Prompt:       prompt,
			Seed:         r.cfg.Seed + attempt,
		})
		if err != nil {
			r.log.Warn("Generation failed",
				zap.String("role", string(role)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)

			continue
		}

		if err := ParsePayload(raw, out); err != nil {
			r.log.Warn("Turn output failed to parse",
				zap.String("role", string(role)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)

			continue
		}

		parsed = true

		break
	}

	if !parsed {
		assign(out, fallback)
	}

	if input.Working != nil {
		input.Working.Push(fmt.Sprintf("[%s %s] %s",
			role, input.Bar.Time.Format("2006-01-02 15:04"), Canonical(out)))
	}

	r.persist(ctx, input, role, out)
}

// persist writes the turn payload to long-term memory per policy: oversight
// and retrospective always, other turns only when configured.
func (r *Runner) persist(ctx context.Context, input RoundInput, role types.Role, payload any) {
	if r.mem == nil {
		return
	}

	always := role == types.RoleOversight || role == types.RoleRetrospective
	if !always && !r.cfg.PersistAnalystTurns {
		return
	}

	res, err := r.mem.Add(ctx, memory.AddRequest{
		Ticker:  input.Ticker,
		Role:    role,
		Content: Canonical(payload),
		At:      input.Bar.Time,
	})
	if err != nil {
		metrics.MemoryWrites.WithLabelValues(string(role), "error").Inc()
		r.log.Warn("Failed to persist turn",
			zap.String("role", string(role)),
			zap.Error(err),
		)

		return
	}

	outcome := "inserted"

	switch {
	case res.Deduped:
		outcome = "deduped"
	case res.Skipped:
		outcome = "skipped"
	}

	metrics.MemoryWrites.WithLabelValues(string(role), outcome).Inc()

	r.log.Debug("Persisted turn",
		zap.String("role", string(role)),
		zap.String("id", res.ID),
		zap.Bool("deduped", res.Deduped),
		zap.Bool("skipped", res.Skipped),
	)
}

func assign(out, fallback any) {
	switch target := out.(type) {
	case *AnalystPayload:
		if v, ok := fallback.(AnalystPayload); ok {
			*target = v
		}
	case *TraderPayload:
		if v, ok := fallback.(TraderPayload); ok {
			*target = v
		}
	case *OversightPayload:
		if v, ok := fallback.(OversightPayload); ok {
			*target = v
		}
	case *RetrospectivePayload:
		if v, ok := fallback.(RetrospectivePayload); ok {
			*target = v
		}
	}
}
