package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rxtech-lab/atlas-trading/internal/engine"
	"github.com/rxtech-lab/atlas-trading/internal/logger"
	"github.com/rxtech-lab/atlas-trading/mocks"
	"github.com/urfave/cli/v3"
)

// runAction loads the configuration, assembles the engine and runs it until
// interrupted.
func runAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config, err := engine.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	eng, err := engine.NewEngine(config, log)
	if err != nil {
		return fmt.Errorf("failed to assemble engine: %w", err)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// With --replay the engine consumes a deterministic generated quote
	// stream instead of a live feed. Useful for dry runs and demos.
	if cmd.Bool("replay") {
		go replayQuotes(runCtx, eng, config, int(cmd.Int("replay-count")))
	}

	return eng.Run(runCtx)
}

// replayQuotes feeds seeded quotes for every configured instrument.
func replayQuotes(ctx context.Context, eng *engine.Engine, config engine.Config, count int) {
	generator := mocks.NewDataGenerator(time.Now().UnixNano())

	generatorConfig := mocks.DefaultConfig()
	generatorConfig.StartTime = time.Now().UTC()
	generatorConfig.Count = count

	var symbols []string
	for _, instrument := range config.Instruments {
		symbols = append(symbols, instrument.Symbol)
	}

	for _, quote := range generator.GenerateMultiSymbol(symbols, generatorConfig) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
			eng.Bus().Publish(quote)
		}
	}
}

func main() {
	cmd := &cli.Command{
		Name:  "engine",
		Usage: "Run the trading engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "config",
				Aliases:  []string{"c"},
				Usage:    "Path to the engine YAML configuration",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "replay",
				Usage: "Feed a generated quote stream instead of a live feed",
			},
			&cli.IntFlag{
				Name:  "replay-count",
				Usage: "Number of quotes to generate per instrument with --replay",
				Value: 10000,
			},
		},
		Action: runAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
