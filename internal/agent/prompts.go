package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

// Persona system prompts. The trading persona deliberately avoids the debate
// role names so transcripts stay unambiguous about who is speaking.
const (
	bullishSystemPrompt       = "You are a bullish equity analyst arguing the strongest credible case for buying."
	bearishSystemPrompt       = "You are a bearish equity analyst arguing the strongest credible case for selling."
	tradingSystemPrompt       = "You are a disciplined trader who turns analyst debate into one concrete position change."
	oversightSystemPrompt     = "You run portfolio oversight for this desk and synthesize strategy from the round."
	retrospectiveSystemPrompt = "You write a candid retrospective on recent decisions for this desk."
)

// toJSONSchema renders a payload struct as an inline JSON schema for prompts.
func toJSONSchema(payload any) string {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(payload)

	data, err := json.Marshal(schema)
	if err != nil {
		return "{}"
	}

	return string(data)
}

// promptContext is everything a round shares across turns.
type promptContext struct {
	Ticker    string
	Bar       types.Bar
	Portfolio types.Portfolio
	Retrieved []memory.ScoredMemory
	Working   []string
}

func (p promptContext) marketSection() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Ticker: %s\n", p.Ticker)
	fmt.Fprintf(&sb, "Bar time: %s\n", p.Bar.Time.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Close: %.4f  Open: %.4f  High: %.4f  Low: %.4f  Volume: %.0f\n",
		p.Bar.Close, p.Bar.Open, p.Bar.High, p.Bar.Low, p.Bar.Volume)

	if p.Bar.SMA20 > 0 {
		fmt.Fprintf(&sb, "SMA20: %.4f  SMA50: %.4f  RSI14: %.2f  Bollinger: [%.4f, %.4f]\n",
			p.Bar.SMA20, p.Bar.SMA50, p.Bar.RSI14, p.Bar.BollingerLower, p.Bar.BollingerUpper)
	}

	fmt.Fprintf(&sb, "Cash: %.2f  Shares: %.4f  Equity: %.2f  Max drawdown: %.4f\n",
		p.Portfolio.Cash, p.Portfolio.Position, p.Portfolio.Equity, p.Portfolio.MaxDrawdown)

	return sb.String()
}

func (p promptContext) memorySection() string {
	if len(p.Retrieved) == 0 && len(p.Working) == 0 {
		return ""
	}

	var sb strings.Builder

	if len(p.Retrieved) > 0 {
		sb.WriteString("Relevant notes from long-term memory:\n")

		for i, hit := range p.Retrieved {
			fmt.Fprintf(&sb, "%d. (%s) %s\n", i+1, hit.Record.CreatedAt.Format("2006-01-02"), hit.Record.Content)
		}
	}

	if len(p.Working) > 0 {
		sb.WriteString("Recent round outcomes, oldest first:\n")

		for _, entry := range p.Working {
			fmt.Fprintf(&sb, "- %s\n", entry)
		}
	}

	return sb.String()
}

func analystPrompt(pc promptContext, stance string, round, rounds int, prior string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Debate round %d of %d. Make the %s case for %s using only the context below.\n\n", round, rounds, stance, pc.Ticker)
	sb.WriteString(pc.marketSection())
	sb.WriteString(pc.memorySection())

	if prior != "" {
		fmt.Fprintf(&sb, "\nEarlier argument to refine or rebut: %s\n", prior)
	}

	fmt.Fprintf(&sb, "\nRespond with a single JSON object matching this schema:\n%s\n", toJSONSchema(&AnalystPayload{}))

	return sb.String()
}

func tradingPrompt(pc promptContext, bullCase, bearCase string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Decide the next trade for %s.\n\n", pc.Ticker)
	sb.WriteString(pc.marketSection())
	sb.WriteString(pc.memorySection())
	fmt.Fprintf(&sb, "\nThe bull case: %s\n", bullCase)
	fmt.Fprintf(&sb, "The bear case: %s\n", bearCase)
	sb.WriteString("\nAction must be HOLD, BUY_n, or SELL_n where n is a whole percentage between 1 and 100. BUY_n spends n percent of available cash; SELL_n sells n percent of held shares.\n")
	fmt.Fprintf(&sb, "Respond with a single JSON object matching this schema:\n%s\n", toJSONSchema(&TraderPayload{}))

	return sb.String()
}

func oversightPrompt(pc promptContext, decision TraderPayload) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Perform portfolio oversight for %s after this round.\n\n", pc.Ticker)
	sb.WriteString(pc.marketSection())
	sb.WriteString(pc.memorySection())
	fmt.Fprintf(&sb, "\nThe trader chose %s with confidence %.2f: %s\n", decision.Action, decision.Confidence, decision.Rationale)
	fmt.Fprintf(&sb, "\nRespond with a single JSON object matching this schema:\n%s\n", toJSONSchema(&OversightPayload{}))

	return sb.String()
}

func retrospectivePrompt(pc promptContext, decision TraderPayload, oversight OversightPayload) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Write a retrospective on the latest decision round for %s.\n\n", pc.Ticker)
	sb.WriteString(pc.marketSection())
	fmt.Fprintf(&sb, "\nThe trader chose %s: %s\n", decision.Action, decision.Rationale)
	fmt.Fprintf(&sb, "The desk strategy is: %s\n", oversight.Strategy)
	fmt.Fprintf(&sb, "\nRespond with a single JSON object matching this schema:\n%s\n", toJSONSchema(&RetrospectivePayload{}))

	return sb.String()
}
