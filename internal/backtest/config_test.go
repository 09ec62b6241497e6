package backtest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

type ConfigTestSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigTestSuite))
}

func (suite *ConfigTestSuite) TestDefaultConfigIsValid() {
	suite.Require().NoError(DefaultConfig("AAPL").Validate())
}

func (suite *ConfigTestSuite) TestValidateRejectsBadValues() {
	cfg := DefaultConfig("AAPL")
	cfg.Window = 0
	suite.Error(cfg.Validate())

	cfg = DefaultConfig("AAPL")
	cfg.StopLoss = 0.05
	suite.Error(cfg.Validate(), "stop loss must not be positive")

	cfg = DefaultConfig("AAPL")
	cfg.Interval = types.Interval("fortnight")
	suite.Error(cfg.Validate())

	cfg = DefaultConfig("AAPL")
	cfg.Start = optionalTime(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	cfg.End = optionalTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	suite.Error(cfg.Validate())
}

func (suite *ConfigTestSuite) TestLoadFromYaml() {
	dir := suite.T().TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := []byte(`
symbol: MSFT
window: 30
step: 2
interval: 1day
start: 2024-01-15T00:00:00Z
initial_capital: 25000
fee_bps: 3
slippage_bps: 2
stop_loss: -0.08
take_profit: 0.15
seed: 7
use_memory: true
round:
  debates: 2
  max_retries: 1
  seed: 7
  retrieve_top_k: 3
  working_capacity: 6
`)
	suite.Require().NoError(os.WriteFile(path, content, 0644))

	cfg, err := NewConfigFromYaml(path)
	suite.Require().NoError(err)

	suite.Equal("MSFT", cfg.Symbol)
	suite.Equal(30, cfg.Window)
	suite.Equal(types.Interval1Day, cfg.Interval)
	suite.Require().True(cfg.Start.IsSome())
	suite.Equal(15, cfg.Start.Unwrap().Day())
	suite.True(cfg.End.IsNone())
	suite.Equal(2, cfg.Round.Debates)
}

func (suite *ConfigTestSuite) TestGenerateSchemaJSON() {
	cfg := DefaultConfig("AAPL")

	schema, err := cfg.GenerateSchemaJSON()
	suite.Require().NoError(err)
	suite.Contains(schema, "initial_capital")
	suite.Contains(schema, "stop_loss")
}
