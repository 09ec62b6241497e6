package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/llm"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

type WorkingMemoryTestSuite struct {
	suite.Suite
}

func TestWorkingMemorySuite(t *testing.T) {
	suite.Run(t, new(WorkingMemoryTestSuite))
}

func (suite *WorkingMemoryTestSuite) TestEvictsOldestFirst() {
	ring := NewWorkingMemory(3)

	ring.Push("a")
	ring.Push("b")
	ring.Push("c")
	suite.Equal([]string{"a", "b", "c"}, ring.Snapshot())

	ring.Push("d")
	suite.Equal([]string{"b", "c", "d"}, ring.Snapshot())
	suite.Equal(3, ring.Len())
}

func (suite *WorkingMemoryTestSuite) TestPartialFill() {
	ring := NewWorkingMemory(4)

	suite.Empty(ring.Snapshot())

	ring.Push("only")
	suite.Equal([]string{"only"}, ring.Snapshot())
	suite.Equal(1, ring.Len())
}

func (suite *WorkingMemoryTestSuite) TestMinimumCapacity() {
	ring := NewWorkingMemory(0)

	ring.Push("a")
	ring.Push("b")
	suite.Equal([]string{"b"}, ring.Snapshot())
}

type PayloadTestSuite struct {
	suite.Suite
}

func TestPayloadSuite(t *testing.T) {
	suite.Run(t, new(PayloadTestSuite))
}

func (suite *PayloadTestSuite) TestParseToleratesFencesAndProse() {
	raw := "Here is my decision:\n```json\n{\"action\": \"BUY_25\", \"rationale\": \"trend\", \"confidence\": 0.8}\n```\nGood luck."

	var payload TraderPayload
	suite.Require().NoError(ParsePayload(raw, &payload))
	suite.Equal("BUY_25", payload.Action)
	suite.InDelta(0.8, payload.Confidence, 1e-9)
}

func (suite *PayloadTestSuite) TestParseRejectsMissingRequiredFields() {
	var payload TraderPayload
	suite.Require().Error(ParsePayload(`{"rationale": "no action"}`, &payload))

	suite.Require().Error(ParsePayload("no json here", &payload))

	suite.Require().Error(ParsePayload(`{"action": "HOLD", "confidence": 1.5}`, &payload))
}

func (suite *PayloadTestSuite) TestCanonicalIsStable() {
	a := TraderPayload{Action: "HOLD", Rationale: "flat", Confidence: 0.5}
	b := TraderPayload{Action: "HOLD", Rationale: "flat", Confidence: 0.5}

	suite.Equal(Canonical(a), Canonical(b))
	suite.NotEmpty(Canonical(a))
}

type RunnerTestSuite struct {
	suite.Suite

	index *memory.InMemIndex
	mem   *memory.Engine
	barAt time.Time
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerTestSuite))
}

func (suite *RunnerTestSuite) SetupTest() {
	suite.index = memory.NewInMemIndex()
	suite.mem = memory.NewEngine(suite.index, memory.NewHashEmbedder(), nil, memory.DefaultConfig(), logger.NewNopLogger())
	suite.barAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (suite *RunnerTestSuite) input() RoundInput {
	return RoundInput{
		Ticker: "AAPL",
		Bar: types.Bar{
			Time:  suite.barAt,
			Open:  100,
			High:  102,
			Low:   99,
			Close: 101,
		},
		Portfolio: types.NewPortfolio(10000),
		Working:   NewWorkingMemory(8),
	}
}

func (suite *RunnerTestSuite) TestRoundProducesScriptedDecision() {
	runner := NewRunner(llm.NewScriptedService("BUY_25"), suite.mem, DefaultRoundConfig(), logger.NewNopLogger())

	input := suite.input()

	result, err := runner.RunRound(context.Background(), input)
	suite.Require().NoError(err)

	suite.Equal("BUY_25", result.Decision.Action)
	suite.NotEmpty(result.Oversight.Strategy)
	suite.NotEmpty(result.Retrospective.Reflection)

	// One entry per generation: bull, bear, trading, oversight, retrospective.
	suite.Equal(5, input.Working.Len())
}

func (suite *RunnerTestSuite) TestOnlySynthesizedTurnsPersistByDefault() {
	runner := NewRunner(llm.NewStubService(), suite.mem, DefaultRoundConfig(), logger.NewNopLogger())

	_, err := runner.RunRound(context.Background(), suite.input())
	suite.Require().NoError(err)

	ctx := context.Background()

	oversight, err := suite.index.Count(ctx, memory.Filter{Ticker: "AAPL", Roles: []types.Role{types.RoleOversight}})
	suite.Require().NoError(err)
	suite.Equal(1, oversight)

	retro, err := suite.index.Count(ctx, memory.Filter{Ticker: "AAPL", Roles: []types.Role{types.RoleRetrospective}})
	suite.Require().NoError(err)
	suite.Equal(1, retro)

	debate, err := suite.index.Count(ctx, memory.Filter{
		Ticker: "AAPL",
		Roles:  []types.Role{types.RoleBullish, types.RoleBearish, types.RoleTrading},
	})
	suite.Require().NoError(err)
	suite.Zero(debate)
}

func (suite *RunnerTestSuite) TestAnalystTurnsPersistWhenEnabled() {
	cfg := DefaultRoundConfig()
	cfg.PersistAnalystTurns = true

	runner := NewRunner(llm.NewStubService(), suite.mem, cfg, logger.NewNopLogger())

	_, err := runner.RunRound(context.Background(), suite.input())
	suite.Require().NoError(err)

	debate, err := suite.index.Count(context.Background(), memory.Filter{
		Ticker: "AAPL",
		Roles:  []types.Role{types.RoleBullish, types.RoleBearish, types.RoleTrading},
	})
	suite.Require().NoError(err)
	suite.Equal(3, debate)
}

type garbageService struct{}

func (garbageService) Generate(context.Context, llm.GenerateRequest) (string, error) {
	return "not json at all", nil
}

func (suite *RunnerTestSuite) TestFallbackDecisionIsHold() {
	runner := NewRunner(garbageService{}, nil, DefaultRoundConfig(), logger.NewNopLogger())

	result, err := runner.RunRound(context.Background(), suite.input())
	suite.Require().NoError(err)

	suite.Equal("HOLD", result.Decision.Action)
	suite.Zero(result.Decision.Confidence)
	suite.NotEmpty(result.Oversight.Strategy)
}

func (suite *RunnerTestSuite) TestRetrievedMemoriesFeedTheRound() {
	_, err := suite.mem.Add(context.Background(), memory.AddRequest{
		Ticker:  "AAPL",
		Role:    types.RoleOversight,
		Content: "AAPL price 101.0000 trend and positioning held steady last week.",
		At:      suite.barAt.AddDate(0, 0, -1),
	})
	suite.Require().NoError(err)

	runner := NewRunner(llm.NewStubService(), suite.mem, DefaultRoundConfig(), logger.NewNopLogger())

	result, err := runner.RunRound(context.Background(), suite.input())
	suite.Require().NoError(err)
	suite.NotEmpty(result.MemoriesUsed)
}
