package agent

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

var validate = validator.New()

// AnalystPayload is the structured output of a bull or bear debate turn.
type AnalystPayload struct {
	Summary string   `json:"summary" validate:"required"`
	Risks   []string `json:"risks"`
}

// TraderPayload is the structured output of the trading turn. Action is one
// of HOLD, BUY_n, or SELL_n with n a percentage.
type TraderPayload struct {
	Action     string  `json:"action" validate:"required"`
	Rationale  string  `json:"rationale"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// OversightPayload is the structured output of the oversight turn.
type OversightPayload struct {
	Risks     []string `json:"risks"`
	Strategy  string   `json:"strategy" validate:"required"`
	NextSteps []string `json:"next_steps"`
}

// RetrospectivePayload is the structured output of the retrospective turn.
type RetrospectivePayload struct {
	Reflection string   `json:"reflection" validate:"required"`
	Actions    []string `json:"actions"`
}

// DefaultTraderPayload is the decision used when every generation attempt
// fails to parse: do nothing, with zero confidence.
func DefaultTraderPayload() TraderPayload {
	return TraderPayload{Action: "HOLD", Rationale: "No parseable decision was produced.", Confidence: 0}
}

// DefaultAnalystPayload is the fallback for a failed debate turn.
func DefaultAnalystPayload() AnalystPayload {
	return AnalystPayload{Summary: "No assessment was produced for this turn."}
}

// DefaultOversightPayload is the fallback for a failed oversight turn.
func DefaultOversightPayload() OversightPayload {
	return OversightPayload{Strategy: "Hold the current position until a clear signal appears."}
}

// DefaultRetrospectivePayload is the fallback for a failed retrospective turn.
func DefaultRetrospectivePayload() RetrospectivePayload {
	return RetrospectivePayload{Reflection: "No retrospective was produced for this round."}
}

// ParsePayload extracts the first JSON object from raw model output, strips
// any code fences, unmarshals it into out, and validates it. The caller gets
// back a typed error so retry logic can distinguish parse failures from
// transport failures.
func ParsePayload(raw string, out any) error {
	body := extractJSON(raw)
	if body == "" {
		return errors.New(errors.ErrCodeParseFailed, "no JSON object found in model output")
	}

	if err := json.Unmarshal([]byte(body), out); err != nil {
		return errors.Wrap(errors.ErrCodeParseFailed, "model output is not valid JSON", err)
	}

	if err := validate.Struct(out); err != nil {
		return errors.Wrap(errors.ErrCodeParseFailed, "model output failed validation", err)
	}

	return nil
}

// Canonical re-serializes a payload so two responses that differ only in
// whitespace or key order produce identical memory content.
func Canonical(payload any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return ""
	}

	return string(data)
}

// extractJSON returns the outermost {...} span of the text, tolerating prose
// and markdown fences around it.
func extractJSON(raw string) string {
	cleaned := raw

	if idx := strings.Index(cleaned, "```"); idx >= 0 {
		cleaned = strings.ReplaceAll(cleaned, "```json", "")
		cleaned = strings.ReplaceAll(cleaned, "```", "")
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")

	if start < 0 || end <= start {
		return ""
	}

	return cleaned[start : end+1]
}
