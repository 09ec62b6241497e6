// Command backtest runs a memory-driven trading simulation from a YAML
// config and prints the run summary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/agent"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/backtest"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/llm"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/market"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
)

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run memory-driven trading backtests",
		Commands: []*cli.Command{
			runCommand(),
			schemaCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute a backtest described by a YAML config",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the backtest config YAML",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Market data provider (polygon, binance, stub)",
				Value:   "stub",
			},
			&cli.StringFlag{
				Name:    "artifacts",
				Aliases: []string{"a"},
				Usage:   "Override the artifact output directory",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable the progress bar",
			},
		},
		Action: runAction,
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := backtest.NewConfigFromYaml(cmd.String("config"))
	if err != nil {
		return err
	}

	if dir := cmd.String("artifacts"); dir != "" {
		cfg.ArtifactDir = dir
	}

	l, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	provider, err := buildProvider(cmd.String("provider"), l)
	if err != nil {
		return err
	}

	svc, err := buildLLM(l)
	if err != nil {
		return err
	}

	var mem *memory.Engine
	if cfg.UseMemory {
		mem, err = buildMemory(ctx, svc, l)
		if err != nil {
			return err
		}
	}

	roundCfg := cfg.Round
	if cfg.Seed != 0 {
		roundCfg.Seed = cfg.Seed
	}

	runner := agent.NewRunner(svc, mem, roundCfg, l)
	engine := backtest.NewEngine(provider, runner, mem, l)

	if !cmd.Bool("no-progress") {
		var bar *progressbar.ProgressBar

		engine.OnStep = func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total))
				bar.Describe(fmt.Sprintf("Backtesting %s", cfg.Symbol))
			}

			_ = bar.Set(done)
		}
	}

	result, err := engine.Run(ctx, cfg)
	if err != nil {
		return err
	}

	out, err := yaml.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}

	fmt.Println(string(out))

	return nil
}

func schemaCommand() *cli.Command {
	return &cli.Command{
		Name:  "schema",
		Usage: "Print the JSON schema for the backtest config",
		Action: func(_ context.Context, _ *cli.Command) error {
			var cfg backtest.Config

			schema, err := cfg.GenerateSchemaJSON()
			if err != nil {
				return err
			}

			fmt.Println(schema)

			return nil
		},
	}
}

// buildProvider selects the market data source. Real providers fall back to
// the deterministic stub series when a fetch fails, so a missing key or a
// network outage degrades instead of aborting the run.
func buildProvider(name string, l *logger.Logger) (market.Provider, error) {
	onError := func(err error) {
		l.Warn("market data fetch failed, using stub series", zap.Error(err))
	}

	switch name {
	case "polygon":
		apiKey := os.Getenv("POLYGON_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("POLYGON_API_KEY is required for the polygon provider")
		}

		p, err := market.NewPolygonProvider(apiKey, l)
		if err != nil {
			return nil, err
		}

		return &market.WithFallback{Primary: p, Stub: market.NewStubProvider(), OnError: onError}, nil
	case "binance":
		return &market.WithFallback{
			Primary: market.NewBinanceProvider(l),
			Stub:    market.NewStubProvider(),
			OnError: onError,
		}, nil
	case "stub":
		return market.NewStubProvider(), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// buildLLM uses the OpenAI API when a key is present and the deterministic
// stub otherwise.
func buildLLM(l *logger.Logger) (llm.Service, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		l.Info("OPENAI_API_KEY not set, using stub language model")

		return llm.NewStubService(), nil
	}

	return llm.NewOpenAIService(apiKey, l)
}

// buildMemory assembles the long-term memory engine: Weaviate when
// WEAVIATE_URL is set, the in-process index otherwise, with embeddings
// matching the language model choice.
func buildMemory(ctx context.Context, svc llm.Service, l *logger.Logger) (*memory.Engine, error) {
	cfg := memory.DefaultConfig()

	var (
		index memory.Index
		err   error
	)

	if url := os.Getenv("WEAVIATE_URL"); url != "" {
		index, err = memory.NewWeaviateIndex(ctx, url, l)
		if err != nil {
			return nil, err
		}
	} else {
		index = memory.NewInMemIndex()
	}

	var embedder memory.Embedder
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		embedder, err = memory.NewOpenAIEmbedder(apiKey)
		if err != nil {
			return nil, err
		}
	} else {
		embedder = memory.NewHashEmbedder()
	}

	return memory.NewEngine(index, embedder, svc, cfg, l), nil
}
