package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
)

type StubServiceTestSuite struct {
	suite.Suite
}

func TestStubServiceSuite(t *testing.T) {
	suite.Run(t, new(StubServiceTestSuite))
}

func (suite *StubServiceTestSuite) TestPersonaDetection() {
	stub := NewStubService()

	cases := []struct {
		prompt string
		keys   []string
	}{
		{"You are a bullish analyst. Assess AAPL.", []string{"summary", "risks"}},
		{"You are a bearish analyst. Assess AAPL.", []string{"summary", "risks"}},
		{"You perform portfolio oversight for this desk.", []string{"risks", "strategy", "next_steps"}},
		{"Write a retrospective on the last trades.", []string{"reflection", "actions"}},
		{"Decide the next trade for AAPL.", []string{"action", "rationale", "confidence"}},
	}

	for _, tc := range cases {
		out, err := stub.Generate(context.Background(), GenerateRequest{Prompt: tc.prompt, Seed: 1})
		suite.Require().NoError(err)

		var payload map[string]any
		suite.Require().NoError(json.Unmarshal([]byte(out), &payload), "prompt %q", tc.prompt)

		for _, key := range tc.keys {
			suite.Contains(payload, key, "prompt %q", tc.prompt)
		}
	}

	suite.Equal(len(cases), stub.Calls())
}

func (suite *StubServiceTestSuite) TestSeededAnswersAreReproducible() {
	req := GenerateRequest{Prompt: "Decide the next trade for AAPL given bar 42.", Seed: 7}

	first, err := NewStubService().Generate(context.Background(), req)
	suite.Require().NoError(err)

	second, err := NewStubService().Generate(context.Background(), req)
	suite.Require().NoError(err)

	suite.Equal(first, second)

	other := req
	other.Seed = 8

	third, err := NewStubService().Generate(context.Background(), other)
	suite.Require().NoError(err)
	suite.NotPanics(func() { _ = third })
}

func (suite *StubServiceTestSuite) TestScriptedQueue() {
	stub := NewScriptedService("BUY_25", "SELL_50")

	first, err := stub.Generate(context.Background(), GenerateRequest{Prompt: "Decide the next trade.", Seed: 1})
	suite.Require().NoError(err)
	suite.Contains(first, `"BUY_25"`)

	second, err := stub.Generate(context.Background(), GenerateRequest{Prompt: "Decide the next trade.", Seed: 1})
	suite.Require().NoError(err)
	suite.Contains(second, `"SELL_50"`)

	// A drained queue falls back to the seeded default but still parses.
	third, err := stub.Generate(context.Background(), GenerateRequest{Prompt: "Decide the next trade.", Seed: 1})
	suite.Require().NoError(err)

	var payload map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(third), &payload))
	suite.Contains(payload, "action")
}
