package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/llm"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

type fakeStore struct {
	checks    map[string]Check
	completed map[string]bool
	dueErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		checks:    make(map[string]Check),
		completed: make(map[string]bool),
	}
}

func (s *fakeStore) Schedule(_ context.Context, check Check) (string, error) {
	s.checks[check.ID] = check

	return check.ID, nil
}

func (s *fakeStore) Due(_ context.Context, now time.Time, limit int) ([]Check, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}

	var due []Check

	for id, c := range s.checks {
		if s.completed[id] || c.CheckAt.After(now) {
			continue
		}

		due = append(due, c)
		if len(due) == limit {
			break
		}
	}

	return due, nil
}

func (s *fakeStore) Complete(_ context.Context, ids []string) error {
	for _, id := range ids {
		s.completed[id] = true
	}

	return nil
}

func (s *fakeStore) Close() error { return nil }

type SweeperTestSuite struct {
	suite.Suite
	store *fakeStore
	index *memory.InMemIndex
	mem   *memory.Engine
}

func TestSweeperTestSuite(t *testing.T) {
	suite.Run(t, new(SweeperTestSuite))
}

func (suite *SweeperTestSuite) SetupTest() {
	suite.store = newFakeStore()
	suite.index = memory.NewInMemIndex()
	suite.mem = memory.NewEngine(
		suite.index,
		memory.NewHashEmbedder(),
		llm.NewStubService(),
		memory.DefaultConfig(),
		logger.NewNopLogger(),
	)
}

func (suite *SweeperTestSuite) sweeper(price PriceFunc) *Sweeper {
	return NewSweeper(
		suite.store,
		suite.mem,
		price,
		logger.NewNopLogger(),
		withClock(func() time.Time { return time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) }),
	)
}

func (suite *SweeperTestSuite) TestDueCheckWritesFeedbackMemory() {
	decided := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := suite.store.Schedule(context.Background(), Check{
		ID:            "chk-1",
		Ticker:        "AAPL",
		Action:        "BUY_20",
		DecisionPrice: 100,
		DecidedAt:     decided,
		CheckAt:       decided.AddDate(0, 0, 5),
	})
	suite.Require().NoError(err)

	sw := suite.sweeper(func(_ context.Context, _ string, _ time.Time) (float64, error) {
		return 110, nil
	})
	sw.Sweep(context.Background())

	suite.True(suite.store.completed["chk-1"])

	count, err := suite.index.Count(context.Background(), memory.Filter{
		Ticker: "AAPL",
		Roles:  []types.Role{types.RoleFeedback},
	})
	suite.Require().NoError(err)
	suite.Equal(1, count)

	records, err := suite.index.Recent(context.Background(), memory.Filter{Ticker: "AAPL"}, 1)
	suite.Require().NoError(err)
	suite.Require().Len(records, 1)
	suite.Contains(records[0].Content, "was correct")
	suite.InDelta(1.0, records[0].Salience, 1e-9)
}

func (suite *SweeperTestSuite) TestFutureChecksAreLeftPending() {
	_, err := suite.store.Schedule(context.Background(), Check{
		ID:            "chk-future",
		Ticker:        "AAPL",
		Action:        "BUY_20",
		DecisionPrice: 100,
		DecidedAt:     time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
		CheckAt:       time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
	})
	suite.Require().NoError(err)

	sw := suite.sweeper(func(_ context.Context, _ string, _ time.Time) (float64, error) {
		return 110, nil
	})
	sw.Sweep(context.Background())

	suite.False(suite.store.completed["chk-future"])

	count, err := suite.index.Count(context.Background(), memory.Filter{Ticker: "AAPL"})
	suite.Require().NoError(err)
	suite.Equal(0, count)
}

func (suite *SweeperTestSuite) TestPriceFailureLeavesCheckForNextSweep() {
	decided := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err := suite.store.Schedule(context.Background(), Check{
		ID:            "chk-err",
		Ticker:        "AAPL",
		Action:        "SELL_50",
		DecisionPrice: 100,
		DecidedAt:     decided,
		CheckAt:       decided.AddDate(0, 0, 2),
	})
	suite.Require().NoError(err)

	calls := 0
	sw := suite.sweeper(func(_ context.Context, _ string, _ time.Time) (float64, error) {
		calls++
		if calls == 1 {
			return 0, context.DeadlineExceeded
		}

		return 90, nil
	})

	sw.Sweep(context.Background())
	suite.False(suite.store.completed["chk-err"], "failed check must stay pending")

	sw.Sweep(context.Background())
	suite.True(suite.store.completed["chk-err"], "next sweep should retry and succeed")
}

func (suite *SweeperTestSuite) TestRunStopsOnCancel() {
	sw := NewSweeper(
		suite.store,
		suite.mem,
		func(_ context.Context, _ string, _ time.Time) (float64, error) { return 0, nil },
		logger.NewNopLogger(),
		WithSweepInterval(time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		sw.Run(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		suite.Fail("sweeper did not stop after cancellation")
	}
}

func TestRealizedReturnDirection(t *testing.T) {
	buy := Check{Action: "BUY_30", DecisionPrice: 100}
	assert.InDelta(t, 0.1, realizedReturn(buy, 110), 1e-9)
	assert.InDelta(t, -0.1, realizedReturn(buy, 90), 1e-9)

	sell := Check{Action: "SELL_50", DecisionPrice: 100}
	assert.InDelta(t, 0.1, realizedReturn(sell, 90), 1e-9)
	assert.InDelta(t, -0.1, realizedReturn(sell, 110), 1e-9)

	hold := Check{Action: "HOLD", DecisionPrice: 100}
	assert.InDelta(t, 0.05, realizedReturn(hold, 105), 1e-9)

	zero := Check{Action: "BUY_10", DecisionPrice: 0}
	assert.Zero(t, realizedReturn(zero, 110))
}

type DuckStoreTestSuite struct {
	suite.Suite
	store *DuckStore
}

func TestDuckStoreTestSuite(t *testing.T) {
	suite.Run(t, new(DuckStoreTestSuite))
}

func (suite *DuckStoreTestSuite) SetupTest() {
	store, err := NewDuckStore(":memory:", logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.store = store
}

func (suite *DuckStoreTestSuite) TearDownTest() {
	suite.Require().NoError(suite.store.Close())
}

func (suite *DuckStoreTestSuite) TestScheduleDueComplete() {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	early, err := suite.store.Schedule(ctx, Check{
		Ticker:        "AAPL",
		Action:        "BUY_20",
		DecisionPrice: 100,
		DecidedAt:     base,
		CheckAt:       base.AddDate(0, 0, 3),
	})
	suite.Require().NoError(err)
	suite.NotEmpty(early)

	late, err := suite.store.Schedule(ctx, Check{
		Ticker:        "MSFT",
		Action:        "SELL_40",
		DecisionPrice: 400,
		DecidedAt:     base,
		CheckAt:       base.AddDate(0, 0, 30),
	})
	suite.Require().NoError(err)

	due, err := suite.store.Due(ctx, base.AddDate(0, 0, 7), 10)
	suite.Require().NoError(err)
	require.Len(suite.T(), due, 1)
	suite.Equal(early, due[0].ID)
	suite.Equal("AAPL", due[0].Ticker)
	suite.Equal("BUY_20", due[0].Action)
	suite.InDelta(100.0, due[0].DecisionPrice, 1e-9)

	suite.Require().NoError(suite.store.Complete(ctx, []string{early}))

	due, err = suite.store.Due(ctx, base.AddDate(0, 0, 7), 10)
	suite.Require().NoError(err)
	suite.Empty(due)

	due, err = suite.store.Due(ctx, base.AddDate(0, 1, 0), 10)
	suite.Require().NoError(err)
	require.Len(suite.T(), due, 1)
	suite.Equal(late, due[0].ID)
}

func (suite *DuckStoreTestSuite) TestDueRespectsLimit() {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, err := suite.store.Schedule(ctx, Check{
			Ticker:        "AAPL",
			Action:        "HOLD",
			DecisionPrice: 100,
			DecidedAt:     base,
			CheckAt:       base.Add(time.Duration(i) * time.Hour),
		})
		suite.Require().NoError(err)
	}

	due, err := suite.store.Due(ctx, base.AddDate(0, 0, 1), 3)
	suite.Require().NoError(err)
	suite.Len(due, 3)
}

func (suite *DuckStoreTestSuite) TestCompleteEmptyIsNoOp() {
	suite.Require().NoError(suite.store.Complete(context.Background(), nil))
}
