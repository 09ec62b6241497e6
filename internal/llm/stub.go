package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
)

// StubService answers prompts without a network. It recognizes which analyst
// persona a prompt belongs to and returns a well-formed JSON payload for that
// persona, so the full decision pipeline runs offline with the same parsing
// path as a real backend.
//
// Unscripted trading answers are a pure function of the prompt and seed, so a
// rerun with the same inputs replays the same decisions.
type StubService struct {
	mu      sync.Mutex
	actions []string
	calls   int
}

// NewStubService returns a stub with no scripted actions.
func NewStubService() *StubService {
	return &StubService{}
}

// NewScriptedService returns a stub whose trading answers pop from the given
// action queue (for example "BUY_25", "HOLD", "SELL_50"). When the queue
// drains, answers fall back to the seeded default.
func NewScriptedService(actions ...string) *StubService {
	return &StubService{actions: append([]string{}, actions...)}
}

// Calls reports how many prompts the stub has answered.
func (s *StubService) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

// Generate implements Service.
func (s *StubService) Generate(_ context.Context, req GenerateRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++

	// The persona lives in the system prompt; the user prompt quotes other
	// turns and would misroute detection.
	prompt := strings.ToLower(req.SystemPrompt)
	if prompt == "" {
		prompt = strings.ToLower(req.Prompt)
	}

	switch {
	case strings.Contains(prompt, "retrospective"):
		return `{"reflection": "Recent trades tracked the prevailing trend with modest drawdown.", "actions": ["keep position sizing conservative", "revisit stop distance"]}`, nil
	case strings.Contains(prompt, "oversight"):
		return `{"risks": ["concentration in a single symbol", "regime shift risk"], "strategy": "Trade with the trend, scale in gradually.", "next_steps": ["monitor volatility", "review open exposure"]}`, nil
	case strings.Contains(prompt, "bullish"):
		return `{"summary": "Momentum and breadth favor further upside.", "risks": ["extended valuation", "crowded positioning"]}`, nil
	case strings.Contains(prompt, "bearish"):
		return `{"summary": "Momentum is stretched and breadth is narrowing.", "risks": ["policy surprise to the upside", "short squeeze"]}`, nil
	default:
		return s.tradingAnswer(req.SystemPrompt+"\n"+req.Prompt, req.Seed), nil
	}
}

func (s *StubService) tradingAnswer(prompt string, seed int) string {
	action := s.nextScripted()
	if action == "" {
		action = seededAction(prompt, seed)
	}

	return fmt.Sprintf(`{"action": "%s", "rationale": "Stub decision derived from the offered context.", "confidence": 0.5}`, action)
}

func (s *StubService) nextScripted() string {
	if len(s.actions) == 0 {
		return ""
	}

	action := s.actions[0]
	s.actions = s.actions[1:]

	return action
}

func seededAction(prompt string, seed int) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d|%s", seed, prompt)

	switch h.Sum64() % 4 {
	case 0:
		return "BUY_20"
	case 1:
		return "SELL_20"
	case 2:
		return "BUY_10"
	default:
		return "HOLD"
	}
}
