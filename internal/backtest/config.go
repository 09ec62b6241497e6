package backtest

import (
	"encoding/json"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/agent"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
	"github.com/DGU-Capstone-Team5-Quant/backend/pkg/errors"
)

// Config describes one backtest run.
type Config struct {
	Symbol string `yaml:"symbol" json:"symbol" validate:"required" jsonschema:"title=Symbol,description=Ticker to trade"`
	// Window is how many bars of history precede the first tradeable bar.
	Window int `yaml:"window" json:"window" validate:"gt=0" jsonschema:"title=Window,description=History bars required before the first decision,minimum=1"`
	// Step is the bar stride between decision rounds.
	Step     int            `yaml:"step" json:"step" validate:"gt=0" jsonschema:"title=Step,description=Bar stride between decisions,minimum=1"`
	Interval types.Interval `yaml:"interval" json:"interval" validate:"required" jsonschema:"title=Interval"`

	Start optional.Option[time.Time] `yaml:"start" json:"start" jsonschema:"title=Start,description=Optional start of the tradeable range"`
	End   optional.Option[time.Time] `yaml:"end" json:"end" jsonschema:"title=End,description=Optional end of the tradeable range"`

	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0" jsonschema:"title=Initial Capital,minimum=0"`
	FeeBps         float64 `yaml:"fee_bps" json:"fee_bps" validate:"gte=0" jsonschema:"title=Fee Bps"`
	SlippageBps    float64 `yaml:"slippage_bps" json:"slippage_bps" validate:"gte=0" jsonschema:"title=Slippage Bps"`

	// StopLoss is a signed fraction; a position whose return since entry
	// drops to it or below is force-closed. Zero disables the check.
	StopLoss float64 `yaml:"stop_loss" json:"stop_loss" validate:"lte=0" jsonschema:"title=Stop Loss"`
	// TakeProfit is the positive counterpart. Zero disables the check.
	TakeProfit float64 `yaml:"take_profit" json:"take_profit" validate:"gte=0" jsonschema:"title=Take Profit"`

	Seed int `yaml:"seed" json:"seed" jsonschema:"title=Seed"`

	// UseMemory selects whether long-term memory feeds and records rounds.
	UseMemory bool `yaml:"use_memory" json:"use_memory" jsonschema:"title=Use Memory"`

	// ArtifactDir receives the run artifact; empty disables persistence.
	ArtifactDir string `yaml:"artifact_dir" json:"artifact_dir" jsonschema:"title=Artifact Dir"`

	Round agent.RoundConfig `yaml:"round" json:"round" jsonschema:"title=Round"`
}

// DefaultConfig returns a runnable configuration for the given symbol.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:         symbol,
		Window:         20,
		Step:           1,
		Interval:       types.Interval1Day,
		InitialCapital: 10000,
		FeeBps:         5,
		SlippageBps:    5,
		StopLoss:       -0.05,
		TakeProfit:     0.10,
		Seed:           42,
		UseMemory:      true,
		Round:          agent.DefaultRoundConfig(),
	}
}

// UnmarshalYAML maps optional timestamps through pointers, which yaml
// understands, into optional.Option values.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type plain struct {
		Symbol         string            `yaml:"symbol"`
		Window         int               `yaml:"window"`
		Step           int               `yaml:"step"`
		Interval       types.Interval    `yaml:"interval"`
		Start          *time.Time        `yaml:"start"`
		End            *time.Time        `yaml:"end"`
		InitialCapital float64           `yaml:"initial_capital"`
		FeeBps         float64           `yaml:"fee_bps"`
		SlippageBps    float64           `yaml:"slippage_bps"`
		StopLoss       float64           `yaml:"stop_loss"`
		TakeProfit     float64           `yaml:"take_profit"`
		Seed           int               `yaml:"seed"`
		UseMemory      bool              `yaml:"use_memory"`
		ArtifactDir    string            `yaml:"artifact_dir"`
		Round          agent.RoundConfig `yaml:"round"`
	}

	var p plain
	if err := unmarshal(&p); err != nil {
		return err
	}

	c.Symbol = p.Symbol
	c.Window = p.Window
	c.Step = p.Step
	c.Interval = p.Interval
	c.InitialCapital = p.InitialCapital
	c.FeeBps = p.FeeBps
	c.SlippageBps = p.SlippageBps
	c.StopLoss = p.StopLoss
	c.TakeProfit = p.TakeProfit
	c.Seed = p.Seed
	c.UseMemory = p.UseMemory
	c.ArtifactDir = p.ArtifactDir
	c.Round = p.Round

	if p.Start != nil {
		c.Start = optional.Some(*p.Start)
	}

	if p.End != nil {
		c.End = optional.Some(*p.End)
	}

	return nil
}

// NewConfigFromYaml loads and validates a config file.
func NewConfigFromYaml(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config file", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field ordering.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest config", err)
	}

	if !c.Interval.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidInterval, "unsupported interval: %s", c.Interval)
	}

	if c.Start.IsSome() && c.End.IsSome() && c.Start.Unwrap().After(c.End.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidDateRange, "start date is after end date")
	}

	return nil
}

// GenerateSchemaJSON renders the config's JSON schema for editor tooling.
func (c *Config) GenerateSchemaJSON() (string, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
	}

	schema := reflector.Reflect(c)
	schema.Title = "backtest-config"
	schema.Description = "Configuration schema for a backtest run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to marshal schema", err)
	}

	return string(data), nil
}
