// Command server exposes the backtest engine over HTTP and runs the
// background feedback sweeper.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moznion/go-optional"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/DGU-Capstone-Team5-Quant/backend/internal/agent"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/backtest"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/feedback"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/llm"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/logger"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/market"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/memory"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/server"
	"github.com/DGU-Capstone-Team5-Quant/backend/internal/types"
)

func main() {
	cmd := &cli.Command{
		Name:  "server",
		Usage: "Serve the backtest HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address",
				Value: ":8080",
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   "Market data provider (polygon, binance, stub)",
				Value:   "stub",
			},
			&cli.StringFlag{
				Name:  "feedback-db",
				Usage: "Path for the feedback schedule database",
				Value: "data/feedback.db",
			},
			&cli.DurationFlag{
				Name:  "sweep-interval",
				Usage: "How often the feedback sweeper polls for due checks",
				Value: time.Minute,
			},
		},
		Action: serveAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
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

	mem, err := buildMemory(ctx, svc, l)
	if err != nil {
		return err
	}

	runner := agent.NewRunner(svc, mem, agent.DefaultRoundConfig(), l)
	engine := backtest.NewEngine(provider, runner, mem, l)

	store, err := feedback.NewDuckStore(cmd.String("feedback-db"), l)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.NewServer(engine, store, l)
	if err := srv.Start(cmd.String("addr")); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sweeper := feedback.NewSweeper(
		store,
		mem,
		priceFunc(provider),
		l,
		feedback.WithSweepInterval(cmd.Duration("sweep-interval")),
	)

	go sweeper.Run(ctx)

	<-ctx.Done()
	l.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// priceFunc adapts the market provider for outcome checks: the close of the
// most recent daily bar at or before the check time.
func priceFunc(provider market.Provider) feedback.PriceFunc {
	return func(ctx context.Context, ticker string, at time.Time) (float64, error) {
		bars, err := provider.Fetch(ctx, market.FetchRequest{
			Symbol:   ticker,
			Window:   1,
			Interval: types.Interval1Day,
			End:      optional.Some(at),
		})
		if err != nil {
			return 0, err
		}

		if len(bars) == 0 {
			return 0, fmt.Errorf("no bars returned for %s at %s", ticker, at.Format("2006-01-02"))
		}

		return bars[len(bars)-1].Close, nil
	}
}

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

func buildLLM(l *logger.Logger) (llm.Service, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		l.Info("OPENAI_API_KEY not set, using stub language model")

		return llm.NewStubService(), nil
	}

	return llm.NewOpenAIService(apiKey, l)
}

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
